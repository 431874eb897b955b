package service

import (
	"context"

	"github.com/cimkit/ipldstore/pkg/cache"
	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
	"github.com/cimkit/ipldstore/pkg/objectstore"
)

// ContentStorageService composes the object store facade with the cache
// layer: store checks existence first (dedup), then writes through and
// caches; get checks the cache first and falls back to the facade,
// caching on a miss.
type ContentStorageService struct {
	facade *objectstore.Facade
	cache  *cache.Cache
}

// NewContentStorageService returns a ContentStorageService over facade
// and cache.
func NewContentStorageService(facade *objectstore.Facade, c *cache.Cache) *ContentStorageService {
	return &ContentStorageService{facade: facade, cache: c}
}

// Store computes payload's CID, returning early with deduplicated=true
// if the facade already holds it; otherwise writes through the facade
// and populates the cache.
func (s *ContentStorageService) Store(ctx context.Context, payload cidpkg.TypedPayload) (cid cidpkg.Cid, deduplicated bool, err error) {
	cid, err = cidpkg.Of(payload)
	if err != nil {
		return cidpkg.Cid{}, false, err
	}

	exists, err := s.facade.Exists(ctx, cid, payload.CodecCode())
	if err != nil {
		return cidpkg.Cid{}, false, err
	}
	if exists {
		return cid, true, nil
	}

	cid, err = s.facade.Put(ctx, payload)
	if err != nil {
		return cidpkg.Cid{}, false, err
	}

	if raw, err := payload.Bytes(); err == nil {
		s.cache.Put(cid, raw, payload.CodecCode())
	}
	return cid, false, nil
}

// Retrieve checks the cache first, falling back to the facade on a miss
// and populating the cache on success.
func Retrieve[T cidpkg.TypedPayload](ctx context.Context, s *ContentStorageService, cid cidpkg.Cid, codecCode uint64, decode objectstore.Decoder[T]) (T, error) {
	var zero T
	if raw, cachedCodec, ok := s.cache.Get(cid); ok && cachedCodec == codecCode {
		value, err := decode(raw)
		if err != nil {
			return zero, err
		}
		return value, nil
	}

	value, err := objectstore.Get[T](ctx, s.facade, cid, codecCode, decode)
	if err != nil {
		return zero, err
	}
	if raw, err := value.Bytes(); err == nil {
		s.cache.Put(cid, raw, codecCode)
	}
	return value, nil
}

// Exists reports whether cid is present without touching the cache.
func (s *ContentStorageService) Exists(ctx context.Context, cid cidpkg.Cid, codecCode uint64) (bool, error) {
	return s.facade.Exists(ctx, cid, codecCode)
}

// Info returns metadata about cid via the facade.
func (s *ContentStorageService) Info(ctx context.Context, cid cidpkg.Cid, codecCode uint64) (objectstore.Info, error) {
	return s.facade.Info(ctx, cid, codecCode)
}

// Delete removes cid from both the facade and the cache.
func (s *ContentStorageService) Delete(ctx context.Context, cid cidpkg.Cid, codecCode uint64) error {
	if err := s.facade.Delete(ctx, cid, codecCode); err != nil {
		return err
	}
	s.cache.Remove(cid)
	return nil
}

// Facade exposes the underlying object store facade for operations the
// storage service doesn't wrap directly (listing, domain routing).
func (s *ContentStorageService) Facade() *objectstore.Facade { return s.facade }
