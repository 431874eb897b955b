// Package service implements the top-level content service: the
// orchestrator that ties together CID derivation, the object store
// facade, the cache, the secondary indices, and leaf transformers behind
// a single typed API.
package service

import (
	"context"
	"fmt"
	"time"

	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
	"github.com/cimkit/ipldstore/pkg/content"
	"github.com/cimkit/ipldstore/pkg/index"
	"github.com/cimkit/ipldstore/pkg/transform"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("service")

const defaultMaxContentSize = 100 * 1024 * 1024

// Config is the ContentService's configuration record.
type Config struct {
	AutoIndex           bool
	ValidateOnStore     bool
	MaxContentSize      int
	AllowedTypes        map[index.ContentType]bool
	EnableDeduplication bool
	BatchConcurrency    int
}

// DefaultConfig returns sane defaults: auto-indexing on, validate-on-store
// on, a 100 MiB size cap, every content type allowed, and deduplication on.
func DefaultConfig() Config {
	return Config{
		AutoIndex:           true,
		ValidateOnStore:     true,
		MaxContentSize:      defaultMaxContentSize,
		AllowedTypes:        nil,
		EnableDeduplication: true,
		BatchConcurrency:    10,
	}
}

// ContentService is the top-level orchestrator: store_document,
// store_image, retrieve, search, list_by_type, stats, transform,
// batch_store.
type ContentService struct {
	cfg        Config
	storage    *ContentStorageService
	index      *index.Index
	transforms *transform.Registry
}

// New returns a ContentService composing storage, index, and the
// transform registry under cfg.
func New(cfg Config, storage *ContentStorageService, idx *index.Index, transforms *transform.Registry) *ContentService {
	if cfg.MaxContentSize == 0 {
		cfg.MaxContentSize = defaultMaxContentSize
	}
	if cfg.BatchConcurrency == 0 {
		cfg.BatchConcurrency = 10
	}
	return &ContentService{cfg: cfg, storage: storage, index: idx, transforms: transforms}
}

// StoreResult reports the outcome of a store_document/store_image call.
type StoreResult struct {
	Cid          cidpkg.Cid
	Deduplicated bool
	Size         int
}

func (s *ContentService) typeAllowed(ct index.ContentType) bool {
	if len(s.cfg.AllowedTypes) == 0 {
		return true
	}
	return s.cfg.AllowedTypes[ct]
}

// StoreDocument constructs a Document from data (validating magic bytes
// for PDF and UTF-8 validity for Markdown/Text when ValidateOnStore is
// set), stores it with deduplication, and indexes it when AutoIndex is
// set.
func (s *ContentService) StoreDocument(ctx context.Context, data []byte, metadata content.DocumentMetadata, format string) (StoreResult, error) {
	if !s.typeAllowed(index.Document) {
		return StoreResult{}, content.ErrInvalidContent{Detail: fmt.Sprintf("content type %q is not permitted by configuration", index.Document)}
	}
	if len(data) > s.cfg.MaxContentSize {
		return StoreResult{}, content.ErrInvalidContent{Detail: fmt.Sprintf("content size %d exceeds max_content_size %d", len(data), s.cfg.MaxContentSize)}
	}

	f, ok := content.ParseDocumentFormat(format)
	if !ok {
		return StoreResult{}, content.ErrInvalidContent{Detail: fmt.Sprintf("unsupported document format %q", format)}
	}

	doc, err := content.NewDocument(data, metadata, f)
	if err != nil {
		if !s.cfg.ValidateOnStore {
			doc = content.Document{Format: f, Raw: data, Metadata: metadata}
		} else {
			return StoreResult{}, err
		}
	}

	return s.storeAndIndex(ctx, doc, func(cid cidpkg.Cid) error {
		if !s.cfg.AutoIndex {
			return nil
		}
		return s.index.IndexDocument(cid, index.DocumentMetadata{Title: metadata.Title, Tags: metadata.Tags}, string(doc.Raw))
	})
}

// StoreImage constructs an Image from data (validating magic bytes when
// ValidateOnStore is set), stores it with deduplication, and indexes it
// when AutoIndex is set.
func (s *ContentService) StoreImage(ctx context.Context, data []byte, metadata content.ImageMetadata, format string) (StoreResult, error) {
	if !s.typeAllowed(index.Image) {
		return StoreResult{}, content.ErrInvalidContent{Detail: fmt.Sprintf("content type %q is not permitted by configuration", index.Image)}
	}
	if len(data) > s.cfg.MaxContentSize {
		return StoreResult{}, content.ErrInvalidContent{Detail: fmt.Sprintf("content size %d exceeds max_content_size %d", len(data), s.cfg.MaxContentSize)}
	}

	f, ok := content.ParseImageFormat(format)
	if !ok {
		return StoreResult{}, content.ErrInvalidContent{Detail: fmt.Sprintf("unsupported image format %q", format)}
	}

	img, err := content.NewImage(data, metadata, f)
	if err != nil {
		if !s.cfg.ValidateOnStore {
			img = content.Image{Format: f, Raw: data, Metadata: metadata}
		} else {
			return StoreResult{}, err
		}
	}

	return s.storeAndIndex(ctx, img, func(cid cidpkg.Cid) error {
		if !s.cfg.AutoIndex {
			return nil
		}
		return s.index.IndexImage(cid, index.ImageMetadata{Tags: metadata.Tags})
	})
}

func (s *ContentService) storeAndIndex(ctx context.Context, payload cidpkg.TypedPayload, indexFn func(cidpkg.Cid) error) (StoreResult, error) {
	var cid cidpkg.Cid
	var dedup bool
	var err error

	if s.cfg.EnableDeduplication {
		cid, dedup, err = s.storage.Store(ctx, payload)
		if err != nil {
			return StoreResult{}, err
		}
	} else {
		cid, err = s.storage.facade.Put(ctx, payload)
		if err != nil {
			return StoreResult{}, err
		}
	}

	info, err := s.storage.Info(ctx, cid, payload.CodecCode())
	size := info.Size
	if err != nil {
		raw, berr := payload.Bytes()
		if berr == nil {
			size = len(raw)
		}
	}

	if !dedup {
		if err := indexFn(cid); err != nil {
			return StoreResult{}, fmt.Errorf("index content: %w", err)
		}
	}

	return StoreResult{Cid: cid, Deduplicated: dedup, Size: size}, nil
}

// RetrievedContent is the result of a Retrieve call: the decoded payload
// plus the CreatedAt value reported by the facade's Info, which is the
// time of the lookup rather than the time the object was written.
type RetrievedContent struct {
	Payload   cidpkg.TypedPayload
	CreatedAt time.Time
}

// Retrieve looks up cid's codec code from the CID itself, dispatches to
// the matching content decoder (document or image), and returns the
// decoded payload alongside Info's CreatedAt (the time of the lookup; no
// write time is recorded). It returns ErrUnsupportedCodec, before any
// backend access, if the CID's codec is not one of the document or image
// codecs pkg/content mints.
func (s *ContentService) Retrieve(ctx context.Context, cid cidpkg.Cid) (RetrievedContent, error) {
	codecCode := uint64(cid.Prefix().Codec)

	_, isDocument := content.DocumentFormatForCodec(codecCode)
	_, isImage := content.ImageFormatForCodec(codecCode)
	if !isDocument && !isImage {
		return RetrievedContent{}, ErrUnsupportedCodec{Code: codecCode}
	}

	info, err := s.storage.Info(ctx, cid, codecCode)
	if err != nil {
		return RetrievedContent{}, err
	}

	if format, ok := content.DocumentFormatForCodec(codecCode); ok {
		doc, err := Retrieve[content.Document](ctx, s.storage, cid, codecCode, func(raw []byte) (content.Document, error) {
			return content.DecodeDocument(raw, format)
		})
		if err != nil {
			return RetrievedContent{}, err
		}
		return RetrievedContent{Payload: doc, CreatedAt: info.CreatedAt}, nil
	}

	if format, ok := content.ImageFormatForCodec(codecCode); ok {
		img, err := Retrieve[content.Image](ctx, s.storage, cid, codecCode, func(raw []byte) (content.Image, error) {
			return content.DecodeImage(raw, format)
		})
		if err != nil {
			return RetrievedContent{}, err
		}
		return RetrievedContent{Payload: img, CreatedAt: info.CreatedAt}, nil
	}

	return RetrievedContent{}, ErrUnsupportedCodec{Code: codecCode}
}

// ErrUnsupportedCodec is returned by Retrieve when a CID's embedded codec
// is not one of the document or image codecs pkg/content mints.
type ErrUnsupportedCodec struct {
	Code uint64
}

func (e ErrUnsupportedCodec) Error() string {
	return fmt.Sprintf("no content decoder registered for codec %#x", e.Code)
}

// Search delegates to the secondary index.
func (s *ContentService) Search(q index.Query) ([]index.Hit, error) {
	return s.index.Search(q)
}

// ListOptions bounds a ListByType call.
type ListOptions struct {
	Limit int
}

// ListByType lists CIDs stored in the content-type bucket codecCode resolves to,
// truncated by options.Limit.
func (s *ContentService) ListByType(ctx context.Context, codecCode uint64, options ListOptions) ([]cidpkg.Cid, error) {
	cids, err := s.storage.facade.ListByContentType(ctx, codecCode, "")
	if err != nil {
		return nil, err
	}
	if options.Limit > 0 && options.Limit < len(cids) {
		cids = cids[:options.Limit]
	}
	return cids, nil
}

// Stats delegates to the secondary index.
func (s *ContentService) Stats() index.Stats {
	return s.index.Stats()
}

// Transform delegates to a registered leaf transformer.
func (s *ContentService) Transform(ctx context.Context, data []byte, target string, options transform.Options) ([]byte, error) {
	return s.transforms.Transform(ctx, target, data, options)
}

// BatchItemFailure reports the outcome of one failed item in a
// BatchStore call.
type BatchItemFailure struct {
	Index int
	Err   error
}

// BatchResult aggregates the outcome of a BatchStore call.
type BatchResult struct {
	Successful []StoreResult
	Failed     []BatchItemFailure
}

// BatchItem is one unit of work submitted to BatchStore.
type BatchItem struct {
	Data    []byte
	Format  string
	IsImage bool
	DocMeta content.DocumentMetadata
	ImgMeta content.ImageMetadata
}

// BatchStore processes items with bounded concurrency (Config.BatchConcurrency,
// default 10), collecting every success and every per-item failure rather
// than aborting the batch on the first error.
func (s *ContentService) BatchStore(ctx context.Context, items []BatchItem) BatchResult {
	batchID := uuid.New()
	results := make([]StoreResult, len(items))
	errs := make([]error, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			var res StoreResult
			var err error
			if item.IsImage {
				res, err = s.StoreImage(gctx, item.Data, item.ImgMeta, item.Format)
			} else {
				res, err = s.StoreDocument(gctx, item.Data, item.DocMeta, item.Format)
			}
			results[i] = res
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var out BatchResult
	for i, err := range errs {
		if err != nil {
			out.Failed = append(out.Failed, BatchItemFailure{Index: i, Err: err})
			continue
		}
		out.Successful = append(out.Successful, results[i])
	}
	if len(out.Failed) > 0 {
		log.Warnf("batch_store %s: %d succeeded, %d failed", batchID, len(out.Successful), len(out.Failed))
	}
	return out
}
