package index

import (
	"encoding/json"
	"fmt"
)

// KV is the durable key-value store the persistence adapter requires,
// matching the host's required external capability set exactly.
type KV interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, bool, error)
}

// snapshot is the JSON-serializable form of all four index structures.
type snapshot struct {
	TextToCids map[string][]string            `json:"text_to_cids"`
	CidToText  map[string]string               `json:"cid_to_text"`
	TagToCids  map[string][]string              `json:"tag_to_cids"`
	CidToTags  map[string][]string              `json:"cid_to_tags"`
	TypeToCids map[ContentType][]string         `json:"type_to_cids"`
	Documents  map[string]DocumentMetadata      `json:"documents"`
	Images     map[string]ImageMetadata         `json:"images"`
}

func (idx *Index) snapshotLocked() snapshot {
	s := snapshot{
		TextToCids: make(map[string][]string, len(idx.textToCids)),
		CidToText:  idx.cidToText,
		TagToCids:  make(map[string][]string, len(idx.tagToCids)),
		CidToTags:  idx.cidToTags,
		TypeToCids: make(map[ContentType][]string, len(idx.typeToCids)),
		Documents:  idx.documents,
		Images:     idx.images,
	}
	for token, set := range idx.textToCids {
		s.TextToCids[token] = keysOf(set)
	}
	for tag, set := range idx.tagToCids {
		s.TagToCids[tag] = keysOf(set)
	}
	for ct, set := range idx.typeToCids {
		s.TypeToCids[ct] = keysOf(set)
	}
	return s
}

func keysOf(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func setOf(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

const persistenceKey = "index-snapshot"

// Persistence is the write-through/load-from adapter wired between Index
// and a KV backend, with an optional AEAD envelope for the encoded bytes.
type Persistence struct {
	kv     KV
	cipher *Cipher
}

// NewPersistence returns a Persistence adapter writing plaintext JSON.
func NewPersistence(kv KV) Persistence {
	return Persistence{kv: kv}
}

// NewEncryptedPersistence returns a Persistence adapter that wraps every
// snapshot in an AEAD envelope using cipher.
func NewEncryptedPersistence(kv KV, cipher *Cipher) Persistence {
	return Persistence{kv: kv, cipher: cipher}
}

func (idx *Index) persist() error {
	idx.mu.RLock()
	p := idx.persistence
	if p.kv == nil {
		idx.mu.RUnlock()
		return nil
	}
	s := idx.snapshotLocked()
	idx.mu.RUnlock()

	plain, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode index snapshot: %w", err)
	}

	payload := plain
	if p.cipher != nil {
		envelope, err := p.cipher.Seal(plain)
		if err != nil {
			return fmt.Errorf("seal index snapshot: %w", err)
		}
		payload, err = json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}
	}

	if err := p.kv.Put(persistenceKey, payload); err != nil {
		return fmt.Errorf("persist index snapshot: %w", err)
	}
	return nil
}

// LoadFromPersistence repopulates every structure from the attached KV
// backend. It is a no-op if no persistence adapter is attached or if no
// snapshot has been written yet.
func (idx *Index) LoadFromPersistence() error {
	idx.mu.RLock()
	p := idx.persistence
	idx.mu.RUnlock()
	if p.kv == nil {
		return nil
	}

	raw, ok, err := p.kv.Get(persistenceKey)
	if err != nil {
		return fmt.Errorf("load index snapshot: %w", err)
	}
	if !ok {
		return nil
	}

	plain := raw
	if p.cipher != nil {
		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}
		plain, err = p.cipher.Open(envelope)
		if err != nil {
			return err
		}
	}

	var s snapshot
	if err := json.Unmarshal(plain, &s); err != nil {
		return fmt.Errorf("decode index snapshot: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.textToCids = make(map[string]map[string]bool, len(s.TextToCids))
	for token, keys := range s.TextToCids {
		idx.textToCids[token] = setOf(keys)
	}
	idx.cidToText = s.CidToText
	if idx.cidToText == nil {
		idx.cidToText = make(map[string]string)
	}
	idx.tagToCids = make(map[string]map[string]bool, len(s.TagToCids))
	for tag, keys := range s.TagToCids {
		idx.tagToCids[tag] = setOf(keys)
	}
	idx.cidToTags = s.CidToTags
	if idx.cidToTags == nil {
		idx.cidToTags = make(map[string][]string)
	}
	idx.typeToCids = make(map[ContentType]map[string]bool, len(s.TypeToCids))
	for ct, keys := range s.TypeToCids {
		idx.typeToCids[ct] = setOf(keys)
	}
	idx.documents = s.Documents
	if idx.documents == nil {
		idx.documents = make(map[string]DocumentMetadata)
	}
	idx.images = s.Images
	if idx.images == nil {
		idx.images = make(map[string]ImageMetadata)
	}
	idx.persistence = p
	return nil
}
