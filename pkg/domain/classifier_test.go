package domain_test

import (
	"testing"

	"github.com/cimkit/ipldstore/pkg/domain"
	"github.com/stretchr/testify/require"
)

func TestMetadataHintOverridesEverything(t *testing.T) {
	c := domain.NewClassifier()
	tag := c.Classify(domain.Hints{
		Filename:       "invoice.pdf",
		MIME:           "application/pdf",
		ContentPreview: "patient diagnosis treatment",
		MetadataHints:  map[string]string{"content_domain": "Music"},
	})
	require.Equal(t, domain.Music, tag)
}

func TestPatternMatchHigherCountWinsRegardlessOfPriority(t *testing.T) {
	c := domain.NewClassifier()
	// "meme" matcher has lower priority (60) than "medical" (95), but we
	// engineer more meme keyword hits than medical hits.
	preview := "meme lol funny viral trending patient"
	tag := c.Classify(domain.Hints{ContentPreview: preview})
	require.Equal(t, domain.Memes, tag)
}

func TestPatternMatchTieBrokenByPriority(t *testing.T) {
	c := domain.NewClassifier()
	// One medical keyword, one invoice keyword: tie at count=1; medical
	// (95) has higher priority than invoice (90), so medical wins.
	preview := "patient invoice"
	tag := c.Classify(domain.Hints{ContentPreview: preview})
	require.Equal(t, domain.Medical, tag)
}

func TestMimeFallback(t *testing.T) {
	c := domain.NewClassifier()
	tag := c.Classify(domain.Hints{MIME: "audio/flac"})
	require.Equal(t, domain.Music, tag)
}

func TestExtensionFallback(t *testing.T) {
	c := domain.NewClassifier()
	tag := c.Classify(domain.Hints{Filename: "notes.MD"})
	require.Equal(t, domain.Documents, tag)

	tag = c.Classify(domain.Hints{Filename: "photo.PNG"})
	require.Equal(t, domain.Images, tag)
}

func TestDefaultIsDocuments(t *testing.T) {
	c := domain.NewClassifier()
	require.Equal(t, domain.Documents, c.Classify(domain.Hints{}))
}

func TestContractScenario(t *testing.T) {
	c := domain.NewClassifier()
	tag := c.Classify(domain.Hints{
		Filename:       "service_agreement.pdf",
		MIME:           "application/pdf",
		ContentPreview: "This contract is entered into between Party A and Party B",
	})
	require.Equal(t, domain.Contracts, tag)
	require.Equal(t, "cim-legal-contracts", c.BucketFor(tag))
}

func TestBucketForUnknownTagFallsBackToGeneral(t *testing.T) {
	strategy := domain.NewStrategyBuilder().Build()
	c := domain.NewClassifierWithStrategy(strategy)
	require.Equal(t, domain.GeneralBucket, c.BucketFor(domain.Music))
}

func TestUpdateStrategySwapsWholesale(t *testing.T) {
	c := domain.NewClassifier()
	next := domain.NewStrategyBuilder().WithBucket(domain.Music, "custom-music-bucket").Build()
	c.UpdateStrategy(next)
	require.Equal(t, "custom-music-bucket", c.BucketFor(domain.Music))
	require.Equal(t, domain.GeneralBucket, c.BucketFor(domain.Contracts))
}
