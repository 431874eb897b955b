// Package codec implements the registry of numeric codec codes used to tag
// every CID minted by this module. A code identifies the serialization
// format of the payload it was derived from.
package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/multiformats/go-multicodec"
)

// Standard IPLD / external codec codes, taken from the multicodec table
// rather than hand-copied numbers.
var (
	Raw        = uint64(multicodec.Raw)
	CBOR       = uint64(multicodec.Cbor)
	DagPB      = uint64(multicodec.DagPb)
	DagCBOR    = uint64(multicodec.DagCbor)
	DagJSON    = uint64(multicodec.DagJson)
	JSON       = uint64(multicodec.Json)
	Libp2pKey  = uint64(multicodec.Libp2pKey)
	GitRaw     = uint64(multicodec.GitRaw)
	BitcoinBlk = uint64(multicodec.BitcoinBlock)
	BitcoinTx  = uint64(multicodec.BitcoinTx)
	EthBlock   = uint64(multicodec.EthBlock)
	EthTx      = uint64(multicodec.EthTx)
)

// CIM custom range: only codes in this inclusive range may be registered
// through RegisterCustom.
const (
	CustomRangeStart uint64 = 0x300000
	CustomRangeEnd   uint64 = 0x3FFFFF
)

// CIM JSON subtype codes, a sub-range of the custom range.
const (
	Alchemist       uint64 = 0x340000
	WorkflowGraph   uint64 = 0x340001
	ContextGraph    uint64 = 0x340002
	ConceptSpace    uint64 = 0x340003
	DomainModel     uint64 = 0x340004
	EventStream     uint64 = 0x340005
	CommandBatch    uint64 = 0x340006
	QueryResult     uint64 = 0x340007
	GraphLayout     uint64 = 0x340100
	GraphMetadata   uint64 = 0x340101
	NodeCollection  uint64 = 0x340102
	EdgeCollection  uint64 = 0x340103
	WorkflowDef     uint64 = 0x340200
	WorkflowState   uint64 = 0x340201
	WorkflowHistory uint64 = 0x340202
	WorkflowTmpl    uint64 = 0x340203
)

// Content-type code ranges produced by pkg/content.
const (
	DocumentRangeStart uint64 = 0x600001
	DocumentRangeEnd   uint64 = 0x60FFFF
	ImageRangeStart    uint64 = 0x610001
	ImageRangeEnd      uint64 = 0x61FFFF
	AudioRangeStart    uint64 = 0x620001
	AudioRangeEnd      uint64 = 0x62FFFF
	VideoRangeStart    uint64 = 0x630001
	VideoRangeEnd      uint64 = 0x63FFFF
)

// Descriptor describes a single registered codec.
type Descriptor struct {
	Code uint64
	Name string
}

// ErrInvalidCodecRange is returned by RegisterCustom when the supplied code
// falls outside [CustomRangeStart, CustomRangeEnd].
type ErrInvalidCodecRange struct {
	Code uint64
}

func (e ErrInvalidCodecRange) Error() string {
	return fmt.Sprintf("codec code %#x is outside the custom range [%#x, %#x]", e.Code, CustomRangeStart, CustomRangeEnd)
}

// ErrCodecNotFound is returned by Lookup when no descriptor is registered
// under the requested code.
type ErrCodecNotFound struct {
	Code uint64
}

func (e ErrCodecNotFound) Error() string {
	return fmt.Sprintf("no codec registered for code %#x", e.Code)
}

// Registry holds the custom and standard codec maps. Custom entries are
// consulted before standard ones on Lookup, so a custom registration can
// shadow a standard descriptor sharing the same code. All access is
// synchronized internally.
type Registry struct {
	mu       sync.RWMutex
	custom   map[uint64]Descriptor
	standard map[uint64]Descriptor
}

// New returns a Registry pre-populated with the standard IPLD codecs and
// the CIM JSON subtype range.
func New() *Registry {
	r := &Registry{
		custom:   make(map[uint64]Descriptor),
		standard: make(map[uint64]Descriptor),
	}
	for _, d := range []Descriptor{
		{Raw, "raw"},
		{CBOR, "cbor"},
		{DagPB, "dag-pb"},
		{DagCBOR, "dag-cbor"},
		{DagJSON, "dag-json"},
		{JSON, "json"},
		{Libp2pKey, "libp2p-key"},
		{GitRaw, "git-raw"},
		{BitcoinBlk, "bitcoin-block"},
		{BitcoinTx, "bitcoin-tx"},
		{EthBlock, "eth-block"},
		{EthTx, "eth-tx"},
	} {
		r.standard[d.Code] = d
	}
	for _, d := range []Descriptor{
		{Alchemist, "cim-alchemist-json"},
		{WorkflowGraph, "cim-workflow-graph-json"},
		{ContextGraph, "cim-context-graph-json"},
		{ConceptSpace, "cim-concept-space-json"},
		{DomainModel, "cim-domain-model-json"},
		{EventStream, "cim-event-stream-json"},
		{CommandBatch, "cim-command-batch-json"},
		{QueryResult, "cim-query-result-json"},
		{GraphLayout, "cim-graph-layout-json"},
		{GraphMetadata, "cim-graph-metadata-json"},
		{NodeCollection, "cim-node-collection-json"},
		{EdgeCollection, "cim-edge-collection-json"},
		{WorkflowDef, "cim-workflow-definition-json"},
		{WorkflowState, "cim-workflow-state-json"},
		{WorkflowHistory, "cim-workflow-history-json"},
		{WorkflowTmpl, "cim-workflow-template-json"},
	} {
		r.custom[d.Code] = d
	}
	return r
}

// RegisterCustom inserts d into the custom range map, replacing any prior
// entry under the same code. It rejects codes outside
// [CustomRangeStart, CustomRangeEnd].
func (r *Registry) RegisterCustom(d Descriptor) error {
	if d.Code < CustomRangeStart || d.Code > CustomRangeEnd {
		return ErrInvalidCodecRange{Code: d.Code}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[d.Code] = d
	return nil
}

// RegisterStandard inserts d into the standard map unconditionally.
func (r *Registry) RegisterStandard(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.standard[d.Code] = d
}

// Lookup returns the descriptor registered under code, consulting the
// custom map first.
func (r *Registry) Lookup(code uint64) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.custom[code]; ok {
		return d, nil
	}
	if d, ok := r.standard[code]; ok {
		return d, nil
	}
	return Descriptor{}, ErrCodecNotFound{Code: code}
}

// Contains reports whether code is registered under either map.
func (r *Registry) Contains(code uint64) bool {
	_, err := r.Lookup(code)
	return err == nil
}

// ListCodes returns the de-duplicated, sorted union of every registered
// code across both maps.
func (r *Registry) ListCodes() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[uint64]struct{}, len(r.custom)+len(r.standard))
	for c := range r.custom {
		seen[c] = struct{}{}
	}
	for c := range r.standard {
		seen[c] = struct{}{}
	}
	codes := make([]uint64, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
