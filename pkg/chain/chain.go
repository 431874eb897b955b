// Package chain implements the append-only content chain: a sequence of
// ChainedLink values each carrying its own CID, its predecessor's CID, and
// a monotonic sequence number.
package chain

import (
	"encoding/json"
	"fmt"
	"time"

	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
)

// ChainedLink is one element of a ContentChain. Its CID is derived from
// {Content, PreviousCid, Sequence} only — Timestamp never participates in
// CID derivation or validation; it is purely informational.
type ChainedLink[T cidpkg.TypedPayload] struct {
	Content     T
	Cid         cidpkg.Cid
	PreviousCid *cidpkg.Cid
	Sequence    uint64
	Timestamp   time.Time
}

// linkData is the canonical representation hashed to derive a link's CID.
// It deliberately excludes Timestamp.
type linkData struct {
	Content     json.RawMessage `json:"content"`
	PreviousCid *string         `json:"previous_cid"`
	Sequence    uint64          `json:"sequence"`
}

func (l ChainedLink[T]) canonicalBytes() ([]byte, error) {
	contentBytes, err := l.Content.CanonicalBytes()
	if err != nil {
		return nil, err
	}
	var prev *string
	if l.PreviousCid != nil {
		s := l.PreviousCid.String()
		prev = &s
	}
	return json.Marshal(linkData{
		Content:     json.RawMessage(contentBytes),
		PreviousCid: prev,
		Sequence:    l.Sequence,
	})
}

func (l ChainedLink[T]) codecCode() uint64 {
	return l.Content.CodecCode()
}

func (l ChainedLink[T]) computeCid() (cidpkg.Cid, error) {
	canonical, err := l.canonicalBytes()
	if err != nil {
		return cidpkg.Cid{}, cidpkg.ErrSerialization{Reason: err.Error()}
	}
	return cidpkg.OfBytes(canonical, l.codecCode())
}

// ErrChainValidation indicates a broken previous-CID link.
type ErrChainValidation struct {
	Expected string
	Actual   string
}

func (e ErrChainValidation) Error() string {
	return fmt.Sprintf("chain validation failed: expected previous cid %q, got %q", e.Expected, e.Actual)
}

// ErrSequenceValidation indicates broken sequence numbering.
type ErrSequenceValidation struct {
	Expected uint64
	Actual   uint64
}

func (e ErrSequenceValidation) Error() string {
	return fmt.Sprintf("sequence validation failed: expected %d, got %d", e.Expected, e.Actual)
}

// ErrCidNotFound is returned by ItemsSince when the requested CID is not
// present in the chain.
var ErrCidNotFound = fmt.Errorf("cid not found in chain")

// ContentChain is an ordered, append-only sequence of ChainedLink values.
// It is owned by its constructor and performs no internal
// synchronization; concurrent callers must serialize access themselves.
type ContentChain[T cidpkg.TypedPayload] struct {
	items []ChainedLink[T]
}

// New returns an empty chain.
func New[T cidpkg.TypedPayload]() *ContentChain[T] {
	return &ContentChain[T]{}
}

// Append derives the next link's CID from {content, previousCid,
// sequence}, validates it against the current head, and — on success —
// pushes it onto the chain, returning a pointer to the new head.
func (c *ContentChain[T]) Append(content T) (*ChainedLink[T], error) {
	var previous *ChainedLink[T]
	if len(c.items) > 0 {
		previous = &c.items[len(c.items)-1]
	}

	var sequence uint64
	var previousCid *cidpkg.Cid
	if previous != nil {
		sequence = previous.Sequence + 1
		pc := previous.Cid
		previousCid = &pc
	}

	candidate := ChainedLink[T]{
		Content:     content,
		PreviousCid: previousCid,
		Sequence:    sequence,
		Timestamp:   time.Now(),
	}

	derived, err := candidate.computeCid()
	if err != nil {
		return nil, err
	}
	candidate.Cid = derived

	if err := ValidateLink(candidate, previous); err != nil {
		return nil, err
	}

	c.items = append(c.items, candidate)
	return &c.items[len(c.items)-1], nil
}

// ValidateLink checks link against its claimed predecessor: sequence and
// previous-CID linkage, then recomputes link.Cid and compares.
func ValidateLink[T cidpkg.TypedPayload](link ChainedLink[T], previous *ChainedLink[T]) error {
	if previous == nil {
		if link.PreviousCid != nil {
			return ErrChainValidation{Expected: "<none>", Actual: link.PreviousCid.String()}
		}
		if link.Sequence != 0 {
			return ErrSequenceValidation{Expected: 0, Actual: link.Sequence}
		}
	} else {
		if link.PreviousCid == nil || !link.PreviousCid.Equals(previous.Cid) {
			actual := "<none>"
			if link.PreviousCid != nil {
				actual = link.PreviousCid.String()
			}
			return ErrChainValidation{Expected: previous.Cid.String(), Actual: actual}
		}
		if link.Sequence != previous.Sequence+1 {
			return ErrSequenceValidation{Expected: previous.Sequence + 1, Actual: link.Sequence}
		}
	}

	computed, err := link.computeCid()
	if err != nil {
		return err
	}
	if !computed.Equals(link.Cid) {
		return cidpkg.ErrCidMismatch{Expected: link.Cid, Actual: computed}
	}
	return nil
}

// Validate walks the whole chain, verifying every link against its
// predecessor.
func (c *ContentChain[T]) Validate() error {
	var previous *ChainedLink[T]
	for i := range c.items {
		if err := ValidateLink(c.items[i], previous); err != nil {
			return err
		}
		previous = &c.items[i]
	}
	return nil
}

// ItemsSince returns every link strictly after the one identified by cid.
func (c *ContentChain[T]) ItemsSince(target cidpkg.Cid) ([]ChainedLink[T], error) {
	for i := range c.items {
		if c.items[i].Cid.Equals(target) {
			return append([]ChainedLink[T]{}, c.items[i+1:]...), nil
		}
	}
	return nil, ErrCidNotFound
}

// Head returns the most recently appended link, or nil if the chain is
// empty.
func (c *ContentChain[T]) Head() *ChainedLink[T] {
	if len(c.items) == 0 {
		return nil
	}
	return &c.items[len(c.items)-1]
}

// Len returns the number of links in the chain.
func (c *ContentChain[T]) Len() int {
	return len(c.items)
}

// IsEmpty reports whether the chain has no links.
func (c *ContentChain[T]) IsEmpty() bool {
	return len(c.items) == 0
}

// Items returns every link in append order. The returned slice is owned by
// the chain and must not be mutated by the caller.
func (c *ContentChain[T]) Items() []ChainedLink[T] {
	return c.items
}
