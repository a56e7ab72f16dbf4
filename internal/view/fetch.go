// Package view implements the managed collection view: one generic screen
// that fetches a collection, joins foreign keys to display names, filters,
// paginates and exports the result, and drives the create/edit/view/delete
// modals. Each entity screen is a Config value.
package view

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/johnwards/dealerhub/internal/client"
	"github.com/johnwards/dealerhub/internal/domain"
)

// Source is the dealer API as a screen sees it. *client.Client implements it.
type Source interface {
	List(ctx context.Context, collection string, query url.Values) ([]domain.Record, error)
	Get(ctx context.Context, collection, id string) (domain.Record, error)
	Create(ctx context.Context, collection string, fields map[string]any) (domain.Record, error)
	Update(ctx context.Context, collection, id, method string, fields map[string]any) (domain.Record, error)
	Delete(ctx context.Context, collection, id string) error
	Download(ctx context.Context, path string, query url.Values) (*client.File, error)
}

var _ Source = (*client.Client)(nil)

// Reference is a collection loaded only to resolve foreign keys.
type Reference struct {
	// Name keys the resulting RefMap in Refs.
	Name       string
	Collection string
	// Field is the display field; records without it show their id.
	Field string
}

// Result is what one Fetch produced.
type Result struct {
	Records []domain.Record
	Refs    Refs
}

// Fetch lists the primary collection and every reference collection
// concurrently. It returns once all calls have settled; the first failure
// fails the whole fetch.
func Fetch(ctx context.Context, src Source, primary string, refs []Reference) (Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	var records []domain.Record
	g.Go(func() error {
		recs, err := src.List(gctx, primary, nil)
		if err != nil {
			return fmt.Errorf("list %s: %w", primary, err)
		}
		records = recs
		return nil
	})

	maps := make([]RefMap, len(refs))
	for i, ref := range refs {
		g.Go(func() error {
			recs, err := src.List(gctx, ref.Collection, nil)
			if err != nil {
				return fmt.Errorf("list %s: %w", ref.Collection, err)
			}
			maps[i] = BuildMap(recs, ByField(ref.Field))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	out := Result{Records: records, Refs: make(Refs, len(refs))}
	if out.Records == nil {
		out.Records = []domain.Record{}
	}
	for i, ref := range refs {
		out.Refs[ref.Name] = maps[i]
	}
	return out, nil
}

// LookupRef resolves a foreign key one id at a time, for collections too
// large to side-load.
type LookupRef struct {
	Name        string
	Collection  string
	Key         string // foreign-key field on the primary record
	Field       string // display field on the referenced record
	Placeholder string // shown when an id cannot be resolved
}

// lookupConcurrency bounds the per-id requests in flight for one Lookup.
const lookupConcurrency = 4

// Lookup fetches each distinct id with Get and returns a map of display
// names. An id whose fetch fails maps to placeholder; it never fails the
// others.
func Lookup(ctx context.Context, src Source, collection string, ids []string, field, placeholder string) RefMap {
	out := make(RefMap, len(ids))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(lookupConcurrency)

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		g.Go(func() error {
			name := placeholder
			if rec, err := src.Get(ctx, collection, id); err == nil {
				if v := rec.String(field); v != "" {
					name = v
				} else {
					name = id
				}
			}
			mu.Lock()
			out[id] = name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}
