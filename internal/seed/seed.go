package seed

import (
	"context"
	"database/sql"
	"fmt"
)

// Seed inserts the collection definitions and, when withSamples is set, the
// sample data set. It is idempotent: existing rows are left untouched.
func Seed(ctx context.Context, db *sql.DB, withSamples bool) error {
	if err := Collections(ctx, db); err != nil {
		return fmt.Errorf("seed collections: %w", err)
	}
	if !withSamples {
		return nil
	}
	if err := Samples(ctx, db); err != nil {
		return fmt.Errorf("seed samples: %w", err)
	}
	return nil
}
