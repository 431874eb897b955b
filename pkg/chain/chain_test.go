package chain_test

import (
	"encoding/json"
	"fmt"
	"testing"

	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
	"github.com/cimkit/ipldstore/pkg/chain"
	"github.com/stretchr/testify/require"
)

// testItem is a minimal TypedPayload used to exercise the chain in
// isolation from pkg/content.
type testItem struct {
	ID    string `json:"id"`
	Data  string `json:"data"`
	Value int    `json:"value"`
}

func (t testItem) CodecCode() uint64 { return 0x340006 }
func (t testItem) Bytes() ([]byte, error) {
	return json.Marshal(t)
}
func (t testItem) CanonicalBytes() ([]byte, error) {
	return t.Bytes()
}

func TestAppendAndValidate(t *testing.T) {
	c := chain.New[testItem]()
	for i := 0; i < 3; i++ {
		_, err := c.Append(testItem{ID: fmt.Sprintf("t-%d", i), Data: fmt.Sprintf("d-%d", i), Value: i})
		require.NoError(t, err)
	}
	require.Equal(t, 3, c.Len())
	require.NoError(t, c.Validate())

	head := c.Head()
	require.NotNil(t, head)
	require.Equal(t, uint64(2), head.Sequence)
}

func TestFirstLinkHasNilPreviousAndZeroSequence(t *testing.T) {
	c := chain.New[testItem]()
	link, err := c.Append(testItem{ID: "only"})
	require.NoError(t, err)
	require.Nil(t, link.PreviousCid)
	require.Equal(t, uint64(0), link.Sequence)
}

func TestTamperedSequenceFailsValidation(t *testing.T) {
	c := chain.New[testItem]()
	for i := 0; i < 3; i++ {
		_, err := c.Append(testItem{ID: fmt.Sprintf("t-%d", i), Data: fmt.Sprintf("d-%d", i), Value: i})
		require.NoError(t, err)
	}
	items := c.Items()
	tampered := items[1]
	tampered.Sequence = 999

	err := chain.ValidateLink(tampered, &items[0])
	require.Error(t, err)
	var seqErr chain.ErrSequenceValidation
	if require.ErrorAs(t, err, &seqErr) {
		require.Equal(t, uint64(1), seqErr.Expected)
		require.Equal(t, uint64(999), seqErr.Actual)
	}
}

func TestTamperedPreviousCidFailsValidation(t *testing.T) {
	c := chain.New[testItem]()
	for i := 0; i < 2; i++ {
		_, err := c.Append(testItem{ID: fmt.Sprintf("t-%d", i)})
		require.NoError(t, err)
	}
	items := c.Items()
	tampered := items[1]
	bogus, err := cidpkg.Of(testItem{ID: "bogus"})
	require.NoError(t, err)
	tampered.PreviousCid = &bogus

	err = chain.ValidateLink(tampered, &items[0])
	require.Error(t, err)
	var chainErr chain.ErrChainValidation
	require.ErrorAs(t, err, &chainErr)
}

func TestItemsSince(t *testing.T) {
	c := chain.New[testItem]()
	var firstCid cidpkg.Cid
	for i := 0; i < 4; i++ {
		link, err := c.Append(testItem{ID: fmt.Sprintf("t-%d", i)})
		require.NoError(t, err)
		if i == 0 {
			firstCid = link.Cid
		}
	}
	rest, err := c.ItemsSince(firstCid)
	require.NoError(t, err)
	require.Len(t, rest, 3)
}

func TestItemsSinceUnknownCid(t *testing.T) {
	c := chain.New[testItem]()
	_, err := c.Append(testItem{ID: "only"})
	require.NoError(t, err)
	unknown, err := cidpkg.Of(testItem{ID: "never-appended"})
	require.NoError(t, err)
	_, err = c.ItemsSince(unknown)
	require.ErrorIs(t, err, chain.ErrCidNotFound)
}

func TestTimestampExcludedFromCid(t *testing.T) {
	c1 := chain.New[testItem]()
	link1, err := c1.Append(testItem{ID: "same"})
	require.NoError(t, err)

	c2 := chain.New[testItem]()
	link2, err := c2.Append(testItem{ID: "same"})
	require.NoError(t, err)

	require.True(t, link1.Cid.Equals(link2.Cid))
}

func TestEmptyChain(t *testing.T) {
	c := chain.New[testItem]()
	require.True(t, c.IsEmpty())
	require.Nil(t, c.Head())
	require.NoError(t, c.Validate())
}
