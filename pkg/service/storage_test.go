package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cimkit/ipldstore/pkg/cache"
	"github.com/cimkit/ipldstore/pkg/objectstore"
	"github.com/cimkit/ipldstore/pkg/service"
	"github.com/stretchr/testify/require"
)

type fixture struct{ Name string }

func (f fixture) CodecCode() uint64              { return 0x600001 }
func (f fixture) Bytes() ([]byte, error)          { return json.Marshal(f) }
func (f fixture) CanonicalBytes() ([]byte, error) { return f.Bytes() }

func decodeFixture(b []byte) (fixture, error) {
	var f fixture
	err := json.Unmarshal(b, &f)
	return f, err
}

func newStorage(t *testing.T) *service.ContentStorageService {
	t.Helper()
	ctx := context.Background()
	facade, err := objectstore.New(ctx, objectstore.NewMemStore())
	require.NoError(t, err)
	c, err := cache.New(10, 1<<20, time.Minute)
	require.NoError(t, err)
	return service.NewContentStorageService(facade, c)
}

func TestStorageStoreAndRetrieveUsesCache(t *testing.T) {
	storage := newStorage(t)
	ctx := context.Background()

	f := fixture{Name: "hello"}
	cid, dedup, err := storage.Store(ctx, f)
	require.NoError(t, err)
	require.False(t, dedup)

	got, err := service.Retrieve[fixture](ctx, storage, cid, f.CodecCode(), decodeFixture)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestStorageStoreDeduplicatesOnSecondWrite(t *testing.T) {
	storage := newStorage(t)
	ctx := context.Background()

	f := fixture{Name: "dup"}
	_, dedup1, err := storage.Store(ctx, f)
	require.NoError(t, err)
	require.False(t, dedup1)

	_, dedup2, err := storage.Store(ctx, f)
	require.NoError(t, err)
	require.True(t, dedup2)
}

func TestStorageDeleteRemovesFromFacadeAndCache(t *testing.T) {
	storage := newStorage(t)
	ctx := context.Background()

	f := fixture{Name: "gone"}
	cid, _, err := storage.Store(ctx, f)
	require.NoError(t, err)

	require.NoError(t, storage.Delete(ctx, cid, f.CodecCode()))

	exists, err := storage.Exists(ctx, cid, f.CodecCode())
	require.NoError(t, err)
	require.False(t, exists)
}
