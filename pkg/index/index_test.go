package index_test

import (
	"encoding/json"
	"testing"

	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
	"github.com/cimkit/ipldstore/pkg/index"
	"github.com/stretchr/testify/require"
)

type fixture struct{ ID string }

func (f fixture) CodecCode() uint64              { return 0x600001 }
func (f fixture) Bytes() ([]byte, error)          { return json.Marshal(f) }
func (f fixture) CanonicalBytes() ([]byte, error) { return f.Bytes() }

func mustCid(t *testing.T, id string) cidpkg.Cid {
	t.Helper()
	c, err := cidpkg.Of(fixture{ID: id})
	require.NoError(t, err)
	return c
}

func TestIndexDocumentAndSearchByText(t *testing.T) {
	idx := index.New()
	cid := mustCid(t, "doc1")
	require.NoError(t, idx.IndexDocument(cid, index.DocumentMetadata{Title: "quarterly report", Tags: []string{"finance"}}, "revenue grew this quarter"))

	hits, err := idx.Search(index.Query{Text: "quarterly revenue"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, cid, hits[0].Cid)
}

func TestIndexImageHasNoText(t *testing.T) {
	idx := index.New()
	cid := mustCid(t, "img1")
	require.NoError(t, idx.IndexImage(cid, index.ImageMetadata{Tags: []string{"sunset"}}))

	hits, err := idx.Search(index.Query{Tags: []string{"sunset"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, index.Image, hits[0].ContentType)
}

func TestSearchIntersectsTextAndTags(t *testing.T) {
	idx := index.New()
	a := mustCid(t, "a")
	b := mustCid(t, "b")
	require.NoError(t, idx.IndexDocument(a, index.DocumentMetadata{Title: "invoice", Tags: []string{"legal"}}, "payment due"))
	require.NoError(t, idx.IndexDocument(b, index.DocumentMetadata{Title: "invoice", Tags: []string{"finance"}}, "payment due"))

	hits, err := idx.Search(index.Query{Text: "payment", Tags: []string{"legal"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, a, hits[0].Cid)
}

func TestSearchFiltersByType(t *testing.T) {
	idx := index.New()
	doc := mustCid(t, "doc")
	img := mustCid(t, "img")
	require.NoError(t, idx.IndexDocument(doc, index.DocumentMetadata{Tags: []string{"shared"}}, "content"))
	require.NoError(t, idx.IndexImage(img, index.ImageMetadata{Tags: []string{"shared"}}))

	hits, err := idx.Search(index.Query{Tags: []string{"shared"}, Types: []index.ContentType{index.Image}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, img, hits[0].Cid)
}

func TestSearchPagination(t *testing.T) {
	idx := index.New()
	for i := 0; i < 5; i++ {
		cid := mustCid(t, string(rune('a'+i)))
		require.NoError(t, idx.IndexDocument(cid, index.DocumentMetadata{Tags: []string{"page"}}, "content"))
	}
	hits, err := idx.Search(index.Query{Tags: []string{"page"}, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestStats(t *testing.T) {
	idx := index.New()
	require.NoError(t, idx.IndexDocument(mustCid(t, "d"), index.DocumentMetadata{Tags: []string{"x"}}, "hello world"))
	require.NoError(t, idx.IndexImage(mustCid(t, "i"), index.ImageMetadata{Tags: []string{"y"}}))

	stats := idx.Stats()
	require.Equal(t, 1, stats.Documents)
	require.Equal(t, 1, stats.Images)
	require.Equal(t, 2, stats.UniqueTags)
}

type memKV struct{ data map[string][]byte }

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Put(key string, data []byte) error {
	m.data[key] = data
	return nil
}

func (m *memKV) Get(key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func TestPersistenceRoundTripPlaintext(t *testing.T) {
	kv := newMemKV()
	idx := index.New()
	idx.AttachPersistence(index.NewPersistence(kv))

	cid := mustCid(t, "persisted")
	require.NoError(t, idx.IndexDocument(cid, index.DocumentMetadata{Title: "x", Tags: []string{"t"}}, "body text"))

	reloaded := index.New()
	reloaded.AttachPersistence(index.NewPersistence(kv))
	require.NoError(t, reloaded.LoadFromPersistence())

	hits, err := reloaded.Search(index.Query{Tags: []string{"t"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, cid, hits[0].Cid)
}

func TestPersistenceRoundTripEncrypted(t *testing.T) {
	kv := newMemKV()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, err := index.NewCipher(key, index.ChaCha20Poly1305, nil)
	require.NoError(t, err)

	idx := index.New()
	idx.AttachPersistence(index.NewEncryptedPersistence(kv, cipher))
	cid := mustCid(t, "secret")
	require.NoError(t, idx.IndexDocument(cid, index.DocumentMetadata{Tags: []string{"classified"}}, "body"))

	reloaded := index.New()
	reloaded.AttachPersistence(index.NewEncryptedPersistence(kv, cipher))
	require.NoError(t, reloaded.LoadFromPersistence())

	hits, err := reloaded.Search(index.Query{Tags: []string{"classified"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestPersistenceRoundTripEncryptedXChaCha20(t *testing.T) {
	kv := newMemKV()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, err := index.NewCipher(key, index.XChaCha20Poly1305, nil)
	require.NoError(t, err)

	idx := index.New()
	idx.AttachPersistence(index.NewEncryptedPersistence(kv, cipher))
	cid := mustCid(t, "secret-xchacha")
	require.NoError(t, idx.IndexDocument(cid, index.DocumentMetadata{Tags: []string{"classified"}}, "body"))

	reloaded := index.New()
	reloaded.AttachPersistence(index.NewEncryptedPersistence(kv, cipher))
	require.NoError(t, reloaded.LoadFromPersistence())

	hits, err := reloaded.Search(index.Query{Tags: []string{"classified"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, cid, hits[0].Cid)
}

func TestDecryptionFailsOnKeyMismatch(t *testing.T) {
	kv := newMemKV()
	key1 := make([]byte, 32)
	key2 := make([]byte, 32)
	for i := range key2 {
		key2[i] = byte(255 - i)
	}
	c1, err := index.NewCipher(key1, index.AES256GCM, nil)
	require.NoError(t, err)
	c2, err := index.NewCipher(key2, index.AES256GCM, nil)
	require.NoError(t, err)

	idx := index.New()
	idx.AttachPersistence(index.NewEncryptedPersistence(kv, c1))
	require.NoError(t, idx.IndexDocument(mustCid(t, "x"), index.DocumentMetadata{}, "body"))

	reloaded := index.New()
	reloaded.AttachPersistence(index.NewEncryptedPersistence(kv, c2))
	err = reloaded.LoadFromPersistence()
	require.Error(t, err)
	var decErr index.ErrDecryption
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, "Key mismatch", decErr.Reason)
}

func TestDecryptionFailsOnAlgorithmMismatch(t *testing.T) {
	kv := newMemKV()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	c1, err := index.NewCipher(key, index.ChaCha20Poly1305, nil)
	require.NoError(t, err)
	c2, err := index.NewCipher(key, index.AES256GCM, nil)
	require.NoError(t, err)

	idx := index.New()
	idx.AttachPersistence(index.NewEncryptedPersistence(kv, c1))
	require.NoError(t, idx.IndexDocument(mustCid(t, "x"), index.DocumentMetadata{}, "body"))

	reloaded := index.New()
	reloaded.AttachPersistence(index.NewEncryptedPersistence(kv, c2))
	err = reloaded.LoadFromPersistence()
	require.Error(t, err)
	var decErr index.ErrDecryption
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, "Algorithm mismatch", decErr.Reason)
}
