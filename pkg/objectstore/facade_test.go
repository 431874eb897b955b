package objectstore_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
	"github.com/cimkit/ipldstore/pkg/domain"
	"github.com/cimkit/ipldstore/pkg/objectstore"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (d doc) CodecCode() uint64            { return 0x600001 }
func (d doc) Bytes() ([]byte, error)        { return json.Marshal(d) }
func (d doc) CanonicalBytes() ([]byte, error) { return d.Bytes() }

func decodeDoc(b []byte) (doc, error) {
	var d doc
	err := json.Unmarshal(b, &d)
	return d, err
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	f, err := objectstore.New(ctx, objectstore.NewMemStore())
	require.NoError(t, err)

	d := doc{Title: "hello", Body: "world"}
	cid, err := f.Put(ctx, d)
	require.NoError(t, err)

	got, err := objectstore.Get[doc](ctx, f, cid, d.CodecCode(), decodeDoc)
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	f, err := objectstore.New(ctx, objectstore.NewMemStore())
	require.NoError(t, err)

	bogus, err := cidpkg.Of(doc{Title: "x"})
	require.NoError(t, err)
	_, err = objectstore.Get[doc](ctx, f, bogus, 0x600001, decodeDoc)
	require.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestLargePayloadIsCompressed(t *testing.T) {
	ctx := context.Background()
	backend := objectstore.NewMemStore()
	f, err := objectstore.New(ctx, backend, objectstore.WithCompressionThreshold(16))
	require.NoError(t, err)

	d := doc{Title: "big", Body: string(bytes.Repeat([]byte("x"), 4096))}
	cid, err := f.Put(ctx, d)
	require.NoError(t, err)

	raw, err := backend.Get(ctx, objectstore.BucketForContentType(d.CodecCode()), cid.String())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte{0x28, 0xb5, 0x2f, 0xfd}))

	got, err := objectstore.Get[doc](ctx, f, cid, d.CodecCode(), decodeDoc)
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestSmallPayloadIsNotCompressed(t *testing.T) {
	ctx := context.Background()
	backend := objectstore.NewMemStore()
	f, err := objectstore.New(ctx, backend)
	require.NoError(t, err)

	d := doc{Title: "tiny", Body: "x"}
	cid, err := f.Put(ctx, d)
	require.NoError(t, err)

	raw, err := backend.Get(ctx, objectstore.BucketForContentType(d.CodecCode()), cid.String())
	require.NoError(t, err)
	require.False(t, bytes.HasPrefix(raw, []byte{0x28, 0xb5, 0x2f, 0xfd}))
}

func TestPutWithDomainRoutesToDomainBucket(t *testing.T) {
	ctx := context.Background()
	f, err := objectstore.New(ctx, objectstore.NewMemStore())
	require.NoError(t, err)

	d := doc{Title: "invoice", Body: "contract terms"}
	cid, tag, err := f.PutWithDomain(ctx, d, domain.Hints{Filename: "contract.pdf", ContentPreview: "this contract is entered into"})
	require.NoError(t, err)
	require.Equal(t, domain.Contracts, tag)

	gotTag, ok := f.DomainFor(cid)
	require.True(t, ok)
	require.Equal(t, domain.Contracts, gotTag)
}

func TestExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	f, err := objectstore.New(ctx, objectstore.NewMemStore())
	require.NoError(t, err)

	d := doc{Title: "a", Body: "b"}
	cid, err := f.Put(ctx, d)
	require.NoError(t, err)

	ok, err := f.Exists(ctx, cid, d.CodecCode())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.Delete(ctx, cid, d.CodecCode()))

	ok, err = f.Exists(ctx, cid, d.CodecCode())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListByContentType(t *testing.T) {
	ctx := context.Background()
	f, err := objectstore.New(ctx, objectstore.NewMemStore())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.Put(ctx, doc{Title: "t", Body: string(rune('a' + i))})
		require.NoError(t, err)
	}
	cids, err := f.ListByContentType(ctx, (doc{}).CodecCode(), "")
	require.NoError(t, err)
	require.Len(t, cids, 3)
}

func TestBucketForContentTypeTable(t *testing.T) {
	require.Equal(t, "cim-graphs", objectstore.BucketForContentType(0x300100))
	require.Equal(t, "cim-nodes", objectstore.BucketForContentType(0x300101))
	require.Equal(t, "cim-events", objectstore.BucketForContentType(0x300105))
	require.Equal(t, "cim-events", objectstore.BucketForContentType(0x300106))
	require.Equal(t, "cim-documents", objectstore.BucketForContentType(0x600001))
	require.Equal(t, "cim-media", objectstore.BucketForContentType(0x610001))
	require.Equal(t, "cim-documents", objectstore.BucketForContentType(0x999999))
}

func TestNewProvisionsFixedBucketsWithRetentionAndDescription(t *testing.T) {
	ctx := context.Background()
	backend := objectstore.NewMemStore()
	_, err := objectstore.New(ctx, backend)
	require.NoError(t, err)

	sentinel, err := backend.Get(ctx, "cim-documents", ".bucket")
	require.NoError(t, err)
	require.Contains(t, string(sentinel), "retention_days=365")
	require.Contains(t, string(sentinel), "description=")
	require.Contains(t, string(sentinel), "stored documents")
}

func TestPutWithDomainProvisionsDomainBucketWithGenericDescription(t *testing.T) {
	ctx := context.Background()
	backend := objectstore.NewMemStore()
	f, err := objectstore.New(ctx, backend)
	require.NoError(t, err)

	d := doc{Title: "invoice", Body: "contract terms"}
	_, tag, err := f.PutWithDomain(ctx, d, domain.Hints{Filename: "contract.pdf", ContentPreview: "this contract is entered into"})
	require.NoError(t, err)
	require.Equal(t, domain.Contracts, tag)

	sentinel, err := backend.Get(ctx, "cim-legal-contracts", ".bucket")
	require.NoError(t, err)
	require.Contains(t, string(sentinel), "retention_days=365")
	require.Contains(t, string(sentinel), "description=domain bucket cim-legal-contracts")
}

func TestStatsTrackPutAndDelete(t *testing.T) {
	ctx := context.Background()
	f, err := objectstore.New(ctx, objectstore.NewMemStore())
	require.NoError(t, err)

	d := doc{Title: "a", Body: "b"}
	cid, err := f.Put(ctx, d)
	require.NoError(t, err)

	bucket := objectstore.BucketForContentType(d.CodecCode())
	stats := f.Stats(bucket)
	require.Equal(t, 1, stats.Objects)

	require.NoError(t, f.Delete(ctx, cid, d.CodecCode()))
	stats = f.Stats(bucket)
	require.Equal(t, 0, stats.Objects)
}
