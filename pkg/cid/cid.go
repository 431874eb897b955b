// Package cid implements the CID derivation and verification protocol: a
// payload is reduced to a canonical byte sequence, hashed with BLAKE3-256,
// wrapped as a self-describing content identifier, and round-trip
// verifiable on retrieval.
package cid

import (
	"fmt"

	ipfscid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"lukechampine.com/blake3"
)

// Blake3Code is the multihash function code this module uses to produce
// every CID it mints. Other codes are accepted on Parse but this module
// never produces them.
const Blake3Code = 0x1e

// Blake3DigestSize is the digest length, in bytes, this module always
// produces for Blake3Code.
const Blake3DigestSize = 32

// Cid is the content identifier type used throughout this module: a CIDv1
// with a codec code and a multihash.
type Cid = ipfscid.Cid

// TypedPayload is a value that can produce its own codec code, a stable
// byte serialization, and a canonical byte subset used only for CID
// derivation.
type TypedPayload interface {
	// CodecCode returns the numeric codec code embedded in CIDs derived
	// from this payload.
	CodecCode() uint64
	// Bytes returns the full, stable byte serialization of the payload.
	Bytes() ([]byte, error)
	// CanonicalBytes returns the subset of Bytes that determines content
	// identity. By default this equals Bytes(); implementations override
	// it to exclude envelope metadata (timestamps, per-instance fields)
	// that should not affect the derived CID.
	CanonicalBytes() ([]byte, error)
}

// ErrInvalidCid is returned when multihash construction rejects the
// supplied bytes, or a CID fails to parse.
type ErrInvalidCid struct {
	Reason string
}

func (e ErrInvalidCid) Error() string {
	return fmt.Sprintf("invalid cid: %s", e.Reason)
}

// ErrSerialization is returned when canonical byte extraction fails.
type ErrSerialization struct {
	Reason string
}

func (e ErrSerialization) Error() string {
	return fmt.Sprintf("serialization failed: %s", e.Reason)
}

// ErrCidMismatch is returned when a recomputed CID diverges from the one
// under which a value was stored.
type ErrCidMismatch struct {
	Expected Cid
	Actual   Cid
}

func (e ErrCidMismatch) Error() string {
	return fmt.Sprintf("cid mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Of computes the content identifier for payload: canonicalize, hash with
// BLAKE3-256, wrap in a multihash, and build a CIDv1 tagged with the
// payload's codec code.
func Of(payload TypedPayload) (Cid, error) {
	canonical, err := payload.CanonicalBytes()
	if err != nil {
		return Cid{}, ErrSerialization{Reason: err.Error()}
	}
	return ofBytes(canonical, payload.CodecCode())
}

// OfBytes computes a CID directly from already-canonicalized bytes tagged
// with the given codec code. Useful for chain links and other composite
// canonical forms that don't themselves implement TypedPayload.
func OfBytes(canonical []byte, codecCode uint64) (Cid, error) {
	return ofBytes(canonical, codecCode)
}

func ofBytes(canonical []byte, codecCode uint64) (Cid, error) {
	digest := blake3.Sum256(canonical)
	multihash, err := mh.Encode(digest[:], Blake3Code)
	if err != nil {
		return Cid{}, ErrInvalidCid{Reason: err.Error()}
	}
	return ipfscid.NewCidV1(codecCode, multihash), nil
}

// Verify recomputes the CID of payload and compares it against expected,
// returning ErrCidMismatch on divergence.
func Verify(payload TypedPayload, expected Cid) error {
	actual, err := Of(payload)
	if err != nil {
		return err
	}
	if !actual.Equals(expected) {
		return ErrCidMismatch{Expected: expected, Actual: actual}
	}
	return nil
}

// Parse decodes the textual form of a CID. Parse(c.String()) always yields
// a CID byte-equal to c.
func Parse(s string) (Cid, error) {
	c, err := ipfscid.Decode(s)
	if err != nil {
		return Cid{}, ErrInvalidCid{Reason: err.Error()}
	}
	return c, nil
}
