package cid

import (
	"fmt"

	"github.com/multiformats/go-multibase"
	mh "github.com/multiformats/go-multihash"
)

// FormatDigest renders a multihash digest as a Base58BTC multibase string,
// independent of the codec code carried by any CID built from it. Useful
// for logging or displaying a content digest without the full CID.
func FormatDigest(digest mh.Multihash) string {
	s, _ := multibase.Encode(multibase.Base58BTC, digest)
	return s
}

// ParseDigest is the inverse of FormatDigest.
func ParseDigest(s string) (mh.Multihash, error) {
	_, raw, err := multibase.Decode(s)
	if err != nil {
		return nil, ErrInvalidCid{Reason: fmt.Sprintf("decoding multibase digest: %s", err)}
	}
	digest, err := mh.Cast(raw)
	if err != nil {
		return nil, ErrInvalidCid{Reason: fmt.Sprintf("invalid multihash digest: %s", err)}
	}
	return digest, nil
}

// Digest extracts the multihash embedded in c.
func Digest(c Cid) (mh.Multihash, error) {
	if _, err := mh.Decode(c.Hash()); err != nil {
		return nil, ErrInvalidCid{Reason: err.Error()}
	}
	return c.Hash(), nil
}
