package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
	"github.com/cimkit/ipldstore/pkg/domain"
	"github.com/klauspost/compress/zstd"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("objectstore")

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

const defaultCompressionThreshold = 1024
const defaultRetentionDays = 365

// ErrBucketCreation wraps a failure encountered while provisioning a bucket.
type ErrBucketCreation struct {
	Bucket string
	Cause  error
}

func (e ErrBucketCreation) Error() string {
	return fmt.Sprintf("object store: create bucket %q: %v", e.Bucket, e.Cause)
}
func (e ErrBucketCreation) Unwrap() error { return e.Cause }

// ErrStorage wraps a backend failure not otherwise classified.
type ErrStorage struct{ Cause error }

func (e ErrStorage) Error() string { return fmt.Sprintf("object store: storage error: %v", e.Cause) }
func (e ErrStorage) Unwrap() error { return e.Cause }

// ErrSerialization wraps a failure encoding a value to bytes.
type ErrSerialization struct{ Cause error }

func (e ErrSerialization) Error() string {
	return fmt.Sprintf("object store: serialization error: %v", e.Cause)
}
func (e ErrSerialization) Unwrap() error { return e.Cause }

// ErrDeserialization wraps a failure decoding bytes into a value.
type ErrDeserialization struct{ Cause error }

func (e ErrDeserialization) Error() string {
	return fmt.Sprintf("object store: deserialization error: %v", e.Cause)
}
func (e ErrDeserialization) Unwrap() error { return e.Cause }

// ErrCompression wraps a compression or decompression failure.
type ErrCompression struct{ Cause error }

func (e ErrCompression) Error() string {
	return fmt.Sprintf("object store: compression error: %v", e.Cause)
}
func (e ErrCompression) Unwrap() error { return e.Cause }

// fixed content-type buckets, keyed by codec code, matching the resolution
// table exactly.
const (
	bucketGraphs      = "cim-graphs"
	bucketNodes       = "cim-nodes"
	bucketEdges       = "cim-edges"
	bucketConceptual  = "cim-conceptual"
	bucketWorkflows   = "cim-workflows"
	bucketEvents      = "cim-events"
	bucketDocumentsFx = "cim-documents"
	bucketMedia       = "cim-media"
)

var fixedBuckets = []string{
	bucketGraphs, bucketNodes, bucketEdges, bucketConceptual,
	bucketWorkflows, bucketEvents, bucketDocumentsFx, bucketMedia,
}

// bucketDescriptions supplies the human-readable description written into
// a bucket's sentinel on provisioning. Buckets not listed here (domain
// buckets created lazily by PutWithDomain) get a generic description.
var bucketDescriptions = map[string]string{
	bucketGraphs:      "workflow and context graph documents",
	bucketNodes:       "graph node collections",
	bucketEdges:       "graph edge collections",
	bucketConceptual:  "concept space and domain model documents",
	bucketWorkflows:   "workflow definitions, state, and history",
	bucketEvents:      "event streams and command batches",
	bucketDocumentsFx: "stored documents (PDF, Markdown, text)",
	bucketMedia:       "stored media (images, audio, video)",
}

func bucketDescription(bucket string) string {
	if d, ok := bucketDescriptions[bucket]; ok {
		return d
	}
	return fmt.Sprintf("domain bucket %s", bucket)
}

// BucketForContentType resolves a codec code to its fixed content-type
// bucket, defaulting to the documents bucket.
func BucketForContentType(codecCode uint64) string {
	switch codecCode {
	case 0x300100:
		return bucketGraphs
	case 0x300101:
		return bucketNodes
	case 0x300102:
		return bucketEdges
	case 0x300103:
		return bucketConceptual
	case 0x300104:
		return bucketWorkflows
	case 0x300105, 0x300106:
		return bucketEvents
	}
	switch {
	case codecCode >= 0x600001 && codecCode <= 0x60FFFF:
		return bucketDocumentsFx
	case codecCode >= 0x610001 && codecCode <= 0x63FFFF:
		return bucketMedia
	}
	return bucketDocumentsFx
}

// Info is the metadata record returned for a stored object. The payload
// bytes themselves live only in the backend; Info never carries them.
// CreatedAt is the time the Info call was made: the Store interface
// reports no creation time, so the object's actual write time is not
// available here.
type Info struct {
	Cid        cidpkg.Cid
	Size       int
	CreatedAt  time.Time
	Compressed bool
}

// bucketStats is the sidecar counter maintained per bucket: durable
// stores generally have no cheap "count objects in bucket" primitive, so
// the facade keeps its own running tally rather than re-listing on every
// Stats call.
type bucketStats struct {
	objects int
	bytes   int64
}

// Facade is the partitioned, compressing, CID-verifying object store. It
// owns no bytes itself — all persistence is delegated to the backend
// Store — but tracks bucket provisioning state, per-bucket counters, and
// the CID→domain assignments made by PutWithDomain.
type Facade struct {
	backend                 Store
	classifier               *domain.Classifier
	compressionThreshold     int
	encoder                  *zstd.Encoder
	decoder                  *zstd.Decoder

	mu           sync.Mutex
	knownBuckets map[string]bool
	stats        map[string]*bucketStats
	cidDomain    map[string]domain.Tag
}

// Option configures a Facade at construction.
type Option func(*Facade)

// WithCompressionThreshold overrides the default 1024-byte threshold
// above which payloads are zstd-compressed on write.
func WithCompressionThreshold(n int) Option {
	return func(f *Facade) { f.compressionThreshold = n }
}

// WithClassifier overrides the default domain classifier used by
// PutWithDomain.
func WithClassifier(c *domain.Classifier) Option {
	return func(f *Facade) { f.classifier = c }
}

// New constructs a Facade over backend, eagerly provisioning the fixed
// content-type buckets. A bucket-creation failure aborts construction.
func New(ctx context.Context, backend Store, opts ...Option) (*Facade, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, ErrCompression{Cause: err}
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, ErrCompression{Cause: err}
	}

	f := &Facade{
		backend:              backend,
		classifier:           domain.NewClassifier(),
		compressionThreshold: defaultCompressionThreshold,
		encoder:              enc,
		decoder:              dec,
		knownBuckets:         make(map[string]bool),
		stats:                make(map[string]*bucketStats),
		cidDomain:            make(map[string]domain.Tag),
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, b := range fixedBuckets {
		if err := f.ensureBucket(ctx, b); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ensureBucket provisions bucket in the backend the first time this
// Facade instance sees it, writing a sentinel key recording the fixed
// 365-day retention and a human-readable description. Gating on
// knownBuckets rather than probing the backend is deliberate: List
// returns an empty, error-free result for a bucket that has never been
// written to on both shipped backends, so it can never signal absence.
func (f *Facade) ensureBucket(ctx context.Context, bucket string) error {
	f.mu.Lock()
	if f.knownBuckets[bucket] {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	sentinel := fmt.Sprintf("retention_days=%d; description=%s", defaultRetentionDays, bucketDescription(bucket))
	if err := f.backend.Put(ctx, bucket, ".bucket", []byte(sentinel)); err != nil {
		return ErrBucketCreation{Bucket: bucket, Cause: err}
	}
	log.Infof("provisioned bucket %s", bucket)

	f.mu.Lock()
	f.knownBuckets[bucket] = true
	if f.stats[bucket] == nil {
		f.stats[bucket] = &bucketStats{}
	}
	f.mu.Unlock()
	return nil
}

func (f *Facade) compress(b []byte) ([]byte, bool, error) {
	if len(b) <= f.compressionThreshold {
		return b, false, nil
	}
	out := f.encoder.EncodeAll(b, make([]byte, 0, len(b)))
	return out, true, nil
}

func (f *Facade) decompress(b []byte, headerSaysCompressed *bool) ([]byte, error) {
	compressed := bytes.HasPrefix(b, zstdMagic)
	if headerSaysCompressed != nil {
		compressed = *headerSaysCompressed
	}
	if !compressed {
		return b, nil
	}
	out, err := f.decoder.DecodeAll(b, nil)
	if err != nil {
		return nil, ErrCompression{Cause: err}
	}
	return out, nil
}

func (f *Facade) recordPut(bucket string, size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats[bucket]
	if s == nil {
		s = &bucketStats{}
		f.stats[bucket] = s
	}
	s.objects++
	s.bytes += int64(size)
}

func (f *Facade) recordDelete(bucket string, size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats[bucket]
	if s == nil {
		return
	}
	s.objects--
	s.bytes -= int64(size)
}

// Put computes payload's CID, resolves its content-type bucket, and
// stores it, compressing when the serialized size exceeds the
// configured threshold.
func (f *Facade) Put(ctx context.Context, payload cidpkg.TypedPayload) (cidpkg.Cid, error) {
	cid, err := cidpkg.Of(payload)
	if err != nil {
		return cidpkg.Cid{}, err
	}
	raw, err := payload.Bytes()
	if err != nil {
		return cidpkg.Cid{}, ErrSerialization{Cause: err}
	}

	bucket := BucketForContentType(payload.CodecCode())
	if err := f.ensureBucket(ctx, bucket); err != nil {
		return cidpkg.Cid{}, err
	}

	stored, _, err := f.compress(raw)
	if err != nil {
		return cidpkg.Cid{}, ErrCompression{Cause: err}
	}
	if err := f.backend.Put(ctx, bucket, cid.String(), stored); err != nil {
		return cidpkg.Cid{}, ErrStorage{Cause: err}
	}
	f.recordPut(bucket, len(stored))
	return cid, nil
}

// PutWithDomain classifies payload via hints, ensures its domain bucket
// exists, stores it there, and records the CID→domain assignment.
func (f *Facade) PutWithDomain(ctx context.Context, payload cidpkg.TypedPayload, hints domain.Hints) (cidpkg.Cid, domain.Tag, error) {
	tag := f.classifier.Classify(hints)
	bucket := f.classifier.BucketFor(tag)

	cid, err := cidpkg.Of(payload)
	if err != nil {
		return cidpkg.Cid{}, tag, err
	}
	raw, err := payload.Bytes()
	if err != nil {
		return cidpkg.Cid{}, tag, ErrSerialization{Cause: err}
	}

	if err := f.ensureBucket(ctx, bucket); err != nil {
		return cidpkg.Cid{}, tag, err
	}

	stored, _, err := f.compress(raw)
	if err != nil {
		return cidpkg.Cid{}, tag, ErrCompression{Cause: err}
	}
	if err := f.backend.Put(ctx, bucket, cid.String(), stored); err != nil {
		return cidpkg.Cid{}, tag, ErrStorage{Cause: err}
	}
	f.recordPut(bucket, len(stored))

	f.mu.Lock()
	f.cidDomain[cid.String()] = tag
	f.mu.Unlock()

	return cid, tag, nil
}

// Decoder is implemented by TypedPayload values constructed from raw
// bytes, e.g. via a package-level FromBytes function supplied by the
// caller. Get takes such a function because Go generics have no way to
// construct an arbitrary T from bytes without one.
type Decoder[T cidpkg.TypedPayload] func([]byte) (T, error)

// Get resolves cid's bucket from codecCode, reads it back, decompresses
// if needed, decodes via decode, and verifies the recomputed CID matches
// cid before returning the value.
func Get[T cidpkg.TypedPayload](ctx context.Context, f *Facade, cid cidpkg.Cid, codecCode uint64, decode Decoder[T]) (T, error) {
	var zero T
	bucket := BucketForContentType(codecCode)

	raw, err := f.backend.Get(ctx, bucket, cid.String())
	if err != nil {
		if err == ErrNotFound {
			return zero, ErrNotFound
		}
		return zero, ErrStorage{Cause: err}
	}

	plain, err := f.decompress(raw, nil)
	if err != nil {
		return zero, err
	}

	value, err := decode(plain)
	if err != nil {
		return zero, ErrDeserialization{Cause: err}
	}

	actual, err := cidpkg.Of(value)
	if err != nil {
		return zero, err
	}
	if !actual.Equals(cid) {
		log.Errorf("cid mismatch in bucket %s: expected %s got %s", bucket, cid, actual)
		return zero, ErrCidMismatch{Expected: cid, Actual: actual}
	}
	return value, nil
}

// Exists reports whether cid is present in the bucket resolved from
// codecCode.
func (f *Facade) Exists(ctx context.Context, cid cidpkg.Cid, codecCode uint64) (bool, error) {
	bucket := BucketForContentType(codecCode)
	_, err := f.backend.Get(ctx, bucket, cid.String())
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, ErrStorage{Cause: err}
	}
	return true, nil
}

// Delete removes cid from the bucket resolved from codecCode.
func (f *Facade) Delete(ctx context.Context, cid cidpkg.Cid, codecCode uint64) error {
	bucket := BucketForContentType(codecCode)
	raw, err := f.backend.Get(ctx, bucket, cid.String())
	if err != nil && err != ErrNotFound {
		return ErrStorage{Cause: err}
	}
	if err := f.backend.Delete(ctx, bucket, cid.String()); err != nil {
		return ErrStorage{Cause: err}
	}
	if raw != nil {
		f.recordDelete(bucket, len(raw))
	}
	f.mu.Lock()
	delete(f.cidDomain, cid.String())
	f.mu.Unlock()
	return nil
}

// Info returns metadata about cid without returning its bytes.
func (f *Facade) Info(ctx context.Context, cid cidpkg.Cid, codecCode uint64) (Info, error) {
	bucket := BucketForContentType(codecCode)
	raw, err := f.backend.Get(ctx, bucket, cid.String())
	if err != nil {
		if err == ErrNotFound {
			return Info{}, ErrNotFound
		}
		return Info{}, ErrStorage{Cause: err}
	}
	return Info{
		Cid:        cid,
		Size:       len(raw),
		CreatedAt:  time.Now(),
		Compressed: bytes.HasPrefix(raw, zstdMagic),
	}, nil
}

// List enumerates every key in bucket that parses as a CID.
func (f *Facade) List(ctx context.Context, bucket string) ([]cidpkg.Cid, error) {
	keys, err := f.backend.List(ctx, bucket, "")
	if err != nil {
		return nil, ErrStorage{Cause: err}
	}
	var out []cidpkg.Cid
	for _, k := range keys {
		c, err := cidpkg.Parse(k)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// ListByContentType lists the bucket for codecCode, optionally filtering
// keys to those whose textual CID has the given prefix.
func (f *Facade) ListByContentType(ctx context.Context, codecCode uint64, prefix string) ([]cidpkg.Cid, error) {
	bucket := BucketForContentType(codecCode)
	keys, err := f.backend.List(ctx, bucket, prefix)
	if err != nil {
		return nil, ErrStorage{Cause: err}
	}
	var out []cidpkg.Cid
	for _, k := range keys {
		c, err := cidpkg.Parse(k)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// DomainFor returns the domain tag PutWithDomain classified cid under,
// if this Facade instance handled that write. The mapping is in-memory
// only and does not survive a restart.
func (f *Facade) DomainFor(cid cidpkg.Cid) (domain.Tag, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tag, ok := f.cidDomain[cid.String()]
	return tag, ok
}

// BucketStats reports the sidecar object-count and byte-total counters
// maintained for bucket.
type BucketStats struct {
	Objects int
	Bytes   int64
}

// Stats returns the running counters for bucket, or the zero value if the
// bucket hasn't been written to through this Facade instance.
func (f *Facade) Stats(bucket string) BucketStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats[bucket]
	if s == nil {
		return BucketStats{}
	}
	return BucketStats{Objects: s.objects, Bytes: s.bytes}
}
