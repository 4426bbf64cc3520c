package infra_catalog_cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis"
	"github.com/humanbelnik/kinomatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T, prefix string) (*Driver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, prefix, time.Minute), mr
}

func samplePage() model.CatalogPage {
	return model.CatalogPage{
		Items:        []model.MovieSummary{{ID: 4977, Title: "Paprika", GenreIDs: []int{16}}},
		Page:         1,
		TotalPages:   3,
		TotalResults: 60,
	}
}

func TestSetGet(t *testing.T) {
	d, mr := newDriver(t, "catalog")
	ctx := context.Background()

	_, ok, err := d.Get(ctx, "8-35-12-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Set(ctx, "8-35-12-1", samplePage()))
	assert.True(t, mr.Exists("catalog:8-35-12-1"))
	assert.Equal(t, time.Minute, mr.TTL("catalog:8-35-12-1"))

	page, ok, err := d.Get(ctx, "8-35-12-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, samplePage(), page)
}

func TestExpiry(t *testing.T) {
	d, mr := newDriver(t, "catalog")
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "k", samplePage()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := d.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearOnlyTouchesPrefix(t *testing.T) {
	d, mr := newDriver(t, "catalog")
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, d.Set(ctx, key, samplePage()))
	}
	require.NoError(t, mr.Set("sessions:other", "keep"))

	require.NoError(t, d.Clear(ctx))

	for _, key := range []string{"a", "b", "c"} {
		_, ok, err := d.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.True(t, mr.Exists("sessions:other"))
}

func TestGetSurfacesOutage(t *testing.T) {
	d, mr := newDriver(t, "catalog")
	mr.Close()

	_, _, err := d.Get(context.Background(), "k")
	assert.Error(t, err)
}
