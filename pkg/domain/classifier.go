package domain

import (
	"path/filepath"
	"strings"
	"sync"
)

// Hints bundles the optional classification signals a caller may supply.
// MetadataHints carries arbitrary caller-supplied hints; the key
// "content_domain", if present and parseable as a Tag, wins outright.
type Hints struct {
	Filename       string
	MIME           string
	ContentPreview string
	MetadataHints  map[string]string
}

// Classifier wraps a PartitionStrategy behind a mutex so it can be swapped
// wholesale at runtime via UpdateStrategy while concurrent Classify calls
// read a consistent snapshot.
type Classifier struct {
	mu       sync.RWMutex
	strategy PartitionStrategy
}

// NewClassifier returns a Classifier seeded with DefaultStrategy.
func NewClassifier() *Classifier {
	return &Classifier{strategy: DefaultStrategy()}
}

// NewClassifierWithStrategy returns a Classifier seeded with strategy.
func NewClassifierWithStrategy(strategy PartitionStrategy) *Classifier {
	return &Classifier{strategy: strategy}
}

// UpdateStrategy swaps the classifier's strategy exclusively. It never
// mutates the previous strategy's fields.
func (c *Classifier) UpdateStrategy(next PartitionStrategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategy = next
}

// Strategy returns a read-only snapshot of the classifier's current
// strategy value (PartitionStrategy is immutable once built, so the
// returned value is safe to retain).
func (c *Classifier) Strategy() PartitionStrategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategy
}

// Classify returns a DomainTag for hints by priority order: metadata hint,
// then pattern match, then MIME map, then extension map, defaulting to
// Documents.
func (c *Classifier) Classify(hints Hints) Tag {
	c.mu.RLock()
	s := c.strategy
	c.mu.RUnlock()

	if hints.MetadataHints != nil {
		if raw, ok := hints.MetadataHints["content_domain"]; ok {
			if tag, ok := ParseTag(raw); ok {
				return tag
			}
		}
	}

	if hints.ContentPreview != "" {
		previewLower := strings.ToLower(hints.ContentPreview)
		var bestMatcher *PatternMatcher
		bestCount := 0
		for i := range s.matchers {
			m := &s.matchers[i]
			count := 0
			for _, kw := range m.Keywords {
				if strings.Contains(previewLower, strings.ToLower(kw)) {
					count++
				}
			}
			if count == 0 {
				continue
			}
			switch {
			case bestMatcher == nil:
				bestMatcher, bestCount = m, count
			case count > bestCount:
				bestMatcher, bestCount = m, count
			case count == bestCount && m.Priority > bestMatcher.Priority:
				bestMatcher, bestCount = m, count
			}
		}
		if bestMatcher != nil {
			return bestMatcher.Target
		}
	}

	if hints.MIME != "" {
		if tag, ok := s.mimeDomain[strings.ToLower(hints.MIME)]; ok {
			return tag
		}
	}

	if hints.Filename != "" {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(hints.Filename), "."))
		if ext != "" {
			if tag, ok := s.extensionDomain[ext]; ok {
				return tag
			}
		}
	}

	return Documents
}

// BucketFor resolves a tag to a bucket name using the classifier's current
// strategy.
func (c *Classifier) BucketFor(tag Tag) string {
	return c.Strategy().BucketFor(tag)
}
