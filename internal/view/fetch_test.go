package view_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnwards/dealerhub/internal/client"
	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/view"
)

func TestBuildMap(t *testing.T) {
	m := view.BuildMap([]domain.Record{
		{"id": "1", "name": "VinEV Hà Nội"},
		{"id": "2"},
		{"name": "no id"},
	}, view.ByField("name"))

	assert.Equal(t, view.RefMap{"1": "VinEV Hà Nội", "2": "2"}, m)
	assert.Equal(t, "VinEV Hà Nội", m.Lookup("1", "N/A"))
	assert.Equal(t, "N/A", m.Lookup("X", "N/A"))
	assert.Equal(t, "Unknown", m.Lookup("", "Unknown"))

	var empty view.RefMap
	assert.Equal(t, "N/A", empty.Lookup("1", "N/A"))
	assert.Equal(t, "N/A", view.Refs{}.Lookup("dealers", "1", "N/A"))
}

func TestFetchIsConcurrent(t *testing.T) {
	src := seededSource()
	src.set("customers", domain.Record{"id": "c1", "fullName": "Hoàng Gia Khang"})

	started := make(chan string, 3)
	release := make(chan struct{})
	src.listHook = func(ctx context.Context, _ string) error {
		started <- "x"
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	go func() {
		defer close(release)
		for range 3 {
			select {
			case <-started:
			case <-time.After(2 * time.Second):
				t.Error("list calls were not issued concurrently")
				return
			}
		}
	}()

	res, err := view.Fetch(context.Background(), src, "payments", []view.Reference{
		{Name: "dealers", Collection: "dealers", Field: "name"},
		{Name: "customers", Collection: "customers", Field: "fullName"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, "VinEV Sài Gòn", res.Refs.Lookup("dealers", "d2", "N/A"))
	assert.Equal(t, "Hoàng Gia Khang", res.Refs.Lookup("customers", "c1", "N/A"))
}

func TestFetchFailsOnAnyError(t *testing.T) {
	src := seededSource()
	src.listErr["dealers"] = &client.APIError{StatusCode: 500, Message: "boom"}

	_, err := view.Fetch(context.Background(), src, "payments", []view.Reference{
		{Name: "dealers", Collection: "dealers", Field: "name"},
	})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, err.Error(), "list dealers")
}

func TestFetchEmptyCollection(t *testing.T) {
	res, err := view.Fetch(context.Background(), newFakeSource(), "payments", nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)
}

func TestLookupToleratesPartialFailure(t *testing.T) {
	src := newFakeSource()
	src.set("users",
		domain.Record{"id": "1", "fullName": "Nguyễn Văn An"},
		domain.Record{"id": "2"},
	)
	src.getErr["users/3"] = &client.TransportError{Op: "GET /api/users/3", Err: errors.New("connection reset")}

	m := view.Lookup(context.Background(), src, "users", []string{"1", "2", "3", "1", "", "404"}, "fullName", "Unknown user")

	assert.Equal(t, view.RefMap{
		"1":   "Nguyễn Văn An",
		"2":   "2",
		"3":   "Unknown user",
		"404": "Unknown user",
	}, m)
}
