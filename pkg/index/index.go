// Package index implements the secondary indices the content service
// maintains alongside the object store: an inverted text index, a tag
// index, a content-type index, and a per-kind metadata cache, plus an
// optional durable persistence mirror.
package index

import (
	"sort"
	"strings"
	"sync"

	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("index")

// ContentType names the kind of content a CID was indexed under.
type ContentType string

const (
	Document ContentType = "document"
	Image    ContentType = "image"
	Audio    ContentType = "audio"
	Video    ContentType = "video"
)

// DocumentMetadata is the indexed shape for a stored document.
type DocumentMetadata struct {
	Title string
	Tags  []string
}

// ImageMetadata is the indexed shape for a stored image.
type ImageMetadata struct {
	Tags []string
}

// Index owns the four collaborating structures: text, tags, types, and
// per-kind metadata caches. All mutation is serialized by mu;
// cross-index consistency is eventual by design (a writer updates the
// type index before text/tags, matching the service's write order).
type Index struct {
	mu sync.RWMutex

	textToCids map[string]map[string]bool
	cidToText  map[string]string

	tagToCids map[string]map[string]bool
	cidToTags map[string][]string

	typeToCids map[ContentType]map[string]bool

	documents map[string]DocumentMetadata
	images    map[string]ImageMetadata

	persistence Persistence
}

// New returns an empty Index with no attached persistence adapter.
func New() *Index {
	return &Index{
		textToCids: make(map[string]map[string]bool),
		cidToText:  make(map[string]string),
		tagToCids:  make(map[string]map[string]bool),
		cidToTags:  make(map[string][]string),
		typeToCids: make(map[ContentType]map[string]bool),
		documents:  make(map[string]DocumentMetadata),
		images:     make(map[string]ImageMetadata),
	}
}

// AttachPersistence wires an optional durable mirror. Every mutating
// operation after this call schedules a write-through encode.
func (idx *Index) AttachPersistence(p Persistence) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.persistence = p
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if len(word) > 2 {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// IndexDocument adds cid to the type index under Document, tokenizes
// body and metadata.Title into the text index, and adds metadata.Tags to
// the tag index.
func (idx *Index) IndexDocument(cid cidpkg.Cid, metadata DocumentMetadata, body string) error {
	idx.mu.Lock()
	key := cid.String()
	idx.addToType(Document, key)

	for _, tok := range tokenize(body + " " + metadata.Title) {
		idx.addToText(tok, key)
	}
	idx.cidToText[key] = body

	for _, tag := range metadata.Tags {
		idx.addToTag(tag, key)
	}
	idx.cidToTags[key] = metadata.Tags
	idx.documents[key] = metadata
	idx.mu.Unlock()

	if err := idx.persist(); err != nil {
		log.Warnf("persisting index after IndexDocument(%s): %s", key, err)
		return err
	}
	return nil
}

// IndexImage adds cid to the type index under Image and indexes its
// tags; images carry no text.
func (idx *Index) IndexImage(cid cidpkg.Cid, metadata ImageMetadata) error {
	idx.mu.Lock()
	key := cid.String()
	idx.addToType(Image, key)
	for _, tag := range metadata.Tags {
		idx.addToTag(tag, key)
	}
	idx.cidToTags[key] = metadata.Tags
	idx.images[key] = metadata
	idx.mu.Unlock()

	if err := idx.persist(); err != nil {
		log.Warnf("persisting index after IndexImage(%s): %s", key, err)
		return err
	}
	return nil
}

func (idx *Index) addToType(ct ContentType, key string) {
	set, ok := idx.typeToCids[ct]
	if !ok {
		set = make(map[string]bool)
		idx.typeToCids[ct] = set
	}
	set[key] = true
}

func (idx *Index) addToText(token, key string) {
	set, ok := idx.textToCids[token]
	if !ok {
		set = make(map[string]bool)
		idx.textToCids[token] = set
	}
	set[key] = true
}

func (idx *Index) addToTag(tag, key string) {
	tag = strings.ToLower(tag)
	set, ok := idx.tagToCids[tag]
	if !ok {
		set = make(map[string]bool)
		idx.tagToCids[tag] = set
	}
	set[key] = true
}

// Query describes a search request across the indices.
type Query struct {
	Text   string
	Tags   []string
	Types  []ContentType
	Limit  int
	Offset int
}

// Hit is one search result.
type Hit struct {
	Cid         cidpkg.Cid
	Score       float64
	ContentType ContentType
}

// Search scores text hits by the number of distinct query tokens each CID
// was indexed under, normalized by the highest such count; the text index
// stores sets, so repeated occurrences of a word within one document do
// not raise its score. Text hits are intersected with tag hits if both
// are present, further intersected with the union of the requested
// types, sorted by score descending (ties by CID string), then paginated.
func (idx *Index) Search(q Query) ([]Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var textHits map[string]float64
	if q.Text != "" {
		counts := make(map[string]int)
		for _, tok := range tokenize(q.Text) {
			for key := range idx.textToCids[tok] {
				counts[key]++
			}
		}
		max := 0
		for _, c := range counts {
			if c > max {
				max = c
			}
		}
		textHits = make(map[string]float64, len(counts))
		if max > 0 {
			for key, c := range counts {
				textHits[key] = float64(c) / float64(max)
			}
		}
	}

	var tagHits map[string]bool
	if len(q.Tags) > 0 {
		for i, tag := range q.Tags {
			set := idx.tagToCids[strings.ToLower(tag)]
			if i == 0 {
				tagHits = make(map[string]bool, len(set))
				for k := range set {
					tagHits[k] = true
				}
				continue
			}
			for k := range tagHits {
				if !set[k] {
					delete(tagHits, k)
				}
			}
		}
	}

	var candidates map[string]float64
	switch {
	case q.Text != "" && len(q.Tags) > 0:
		candidates = make(map[string]float64)
		for k, score := range textHits {
			if tagHits[k] {
				candidates[k] = score
			}
		}
	case q.Text != "":
		candidates = textHits
	case len(q.Tags) > 0:
		candidates = make(map[string]float64, len(tagHits))
		for k := range tagHits {
			candidates[k] = 1
		}
	default:
		candidates = make(map[string]float64)
	}

	if len(q.Types) > 0 {
		union := make(map[string]bool)
		for _, t := range q.Types {
			for k := range idx.typeToCids[t] {
				union[k] = true
			}
		}
		for k := range candidates {
			if !union[k] {
				delete(candidates, k)
			}
		}
	}

	hits := make([]Hit, 0, len(candidates))
	for key, score := range candidates {
		c, err := cidpkg.Parse(key)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{Cid: c, Score: score, ContentType: idx.contentTypeOf(key)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Cid.String() < hits[j].Cid.String()
	})

	if q.Offset > 0 {
		if q.Offset >= len(hits) {
			return []Hit{}, nil
		}
		hits = hits[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(hits) {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

func (idx *Index) contentTypeOf(key string) ContentType {
	for _, ct := range []ContentType{Document, Image, Audio, Video} {
		if idx.typeToCids[ct][key] {
			return ct
		}
	}
	return ""
}

// Stats reports index-wide counts.
type Stats struct {
	Documents     int
	Images        int
	Audio         int
	Video         int
	UniqueWords   int
	UniqueTags    int
	ContentTypes  int
}

func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		Documents:    len(idx.typeToCids[Document]),
		Images:       len(idx.typeToCids[Image]),
		Audio:        len(idx.typeToCids[Audio]),
		Video:        len(idx.typeToCids[Video]),
		UniqueWords:  len(idx.textToCids),
		UniqueTags:   len(idx.tagToCids),
		ContentTypes: len(idx.typeToCids),
	}
}
