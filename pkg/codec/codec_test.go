package codec_test

import (
	"testing"

	"github.com/cimkit/ipldstore/pkg/codec"
	"github.com/stretchr/testify/require"
)

func TestRegisterCustomRejectsOutOfRange(t *testing.T) {
	r := codec.New()
	err := r.RegisterCustom(codec.Descriptor{Code: 0x2FFFFF, Name: "too-low"})
	require.Error(t, err)
	var rangeErr codec.ErrInvalidCodecRange
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, uint64(0x2FFFFF), rangeErr.Code)
}

func TestRegisterCustomAcceptsLowerBound(t *testing.T) {
	r := codec.New()
	require.NoError(t, r.RegisterCustom(codec.Descriptor{Code: codec.CustomRangeStart, Name: "custom-lower"}))
	d, err := r.Lookup(codec.CustomRangeStart)
	require.NoError(t, err)
	require.Equal(t, "custom-lower", d.Name)
}

func TestRegisterCustomAcceptsUpperBound(t *testing.T) {
	r := codec.New()
	require.NoError(t, r.RegisterCustom(codec.Descriptor{Code: codec.CustomRangeEnd, Name: "custom-upper"}))
	require.True(t, r.Contains(codec.CustomRangeEnd))
}

func TestCustomOverridesStandardOnSameCode(t *testing.T) {
	r := codec.New()
	r.RegisterStandard(codec.Descriptor{Code: codec.CustomRangeStart + 1, Name: "standard-name"})
	require.NoError(t, r.RegisterCustom(codec.Descriptor{Code: codec.CustomRangeStart + 1, Name: "custom-name"}))

	// RegisterStandard is unchecked, so the same in-range code now exists
	// in both maps; Lookup must return the custom entry.
	d, err := r.Lookup(codec.CustomRangeStart + 1)
	require.NoError(t, err)
	require.Equal(t, "custom-name", d.Name)
}

func TestLookupMiss(t *testing.T) {
	r := codec.New()
	_, err := r.Lookup(0xDEADBEEF)
	require.Error(t, err)
	var nf codec.ErrCodecNotFound
	require.ErrorAs(t, err, &nf)
}

func TestListCodesDeduplicatedAndSorted(t *testing.T) {
	r := codec.New()
	codes := r.ListCodes()
	require.NotEmpty(t, codes)
	for i := 1; i < len(codes); i++ {
		require.Less(t, codes[i-1], codes[i])
	}
}

func TestPreregisteredStandardCodecs(t *testing.T) {
	r := codec.New()
	for _, code := range []uint64{codec.Raw, codec.CBOR, codec.DagPB, codec.DagCBOR, codec.DagJSON} {
		require.True(t, r.Contains(code))
	}
}
