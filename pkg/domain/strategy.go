package domain

import "strings"

// PatternMatcher counts keyword occurrences (case-insensitive substring) in
// a content preview; the matcher with the highest count wins, ties broken
// by Priority.
type PatternMatcher struct {
	Name     string
	Keywords []string
	Target   Tag
	Priority int
}

// PartitionStrategy is an immutable rule set mapping hints to a domain tag
// and a bucket name. It is never mutated field-by-field once built — a
// runtime update swaps the entire value under exclusive access (see
// Classifier.UpdateStrategy).
type PartitionStrategy struct {
	domainBuckets   map[Tag]string
	extensionDomain map[string]Tag
	mimeDomain      map[string]Tag
	matchers        []PatternMatcher
}

// StrategyBuilder assembles a PartitionStrategy value by value; it has no
// exported mutators beyond the With* methods, each of which returns the
// builder to allow chaining, so a strategy can only be constructed whole
// and then frozen with Build.
type StrategyBuilder struct {
	s PartitionStrategy
}

// NewStrategyBuilder returns an empty builder.
func NewStrategyBuilder() *StrategyBuilder {
	return &StrategyBuilder{s: PartitionStrategy{
		domainBuckets:   make(map[Tag]string),
		extensionDomain: make(map[string]Tag),
		mimeDomain:      make(map[string]Tag),
	}}
}

// WithBucket maps a domain tag to a bucket name.
func (b *StrategyBuilder) WithBucket(tag Tag, bucket string) *StrategyBuilder {
	b.s.domainBuckets[tag] = bucket
	return b
}

// WithExtensions maps every extension in exts (without the leading dot) to
// tag.
func (b *StrategyBuilder) WithExtensions(tag Tag, exts ...string) *StrategyBuilder {
	for _, ext := range exts {
		b.s.extensionDomain[strings.ToLower(ext)] = tag
	}
	return b
}

// WithMimeTypes maps every MIME type in mimes to tag.
func (b *StrategyBuilder) WithMimeTypes(tag Tag, mimes ...string) *StrategyBuilder {
	for _, m := range mimes {
		b.s.mimeDomain[strings.ToLower(m)] = tag
	}
	return b
}

// WithMatcher appends a pattern matcher. Matchers are evaluated in the
// order added; ties are broken by Priority, not insertion order.
func (b *StrategyBuilder) WithMatcher(m PatternMatcher) *StrategyBuilder {
	b.s.matchers = append(b.s.matchers, m)
	return b
}

// Build freezes the builder into a PartitionStrategy value.
func (b *StrategyBuilder) Build() PartitionStrategy {
	return b.s
}

// DefaultStrategy returns the strategy this module ships with: the default
// bucket mappings, pattern matchers, and priorities.
func DefaultStrategy() PartitionStrategy {
	b := NewStrategyBuilder()

	buckets := map[Tag]string{
		Music: "cim-media-music", Video: "cim-media-video", Images: "cim-media-images", Graphics: "cim-media-graphics",
		Documents: "cim-docs-general", Spreadsheets: "cim-docs-sheets", Presentations: "cim-docs-presentations", Reports: "cim-docs-reports",
		Contracts: "cim-legal-contracts", Agreements: "cim-legal-agreements", Policies: "cim-legal-policies", Compliance: "cim-legal-compliance",
		SocialMedia: "cim-social-media", Memes: "cim-social-memes", Messages: "cim-social-messages", Posts: "cim-social-posts",
		SourceCode: "cim-tech-code", Configuration: "cim-tech-config", Documentation: "cim-tech-docs", Schemas: "cim-tech-schemas",
		Personal: "cim-personal-general", Private: "cim-personal-private", Encrypted: "cim-personal-encrypted", Sensitive: "cim-personal-sensitive",
		Research: "cim-academic-research", Papers: "cim-academic-papers", Studies: "cim-academic-studies", Educational: "cim-academic-educational",
		Financial: "cim-finance-general", Invoices: "cim-finance-invoices", Receipts: "cim-finance-receipts", Statements: "cim-finance-statements",
		Medical: "cim-health-medical", HealthRecords: "cim-health-records", Prescriptions: "cim-health-prescriptions", LabResults: "cim-health-lab",
		Government: "cim-gov-general", PublicRecords: "cim-gov-public", Licenses: "cim-gov-licenses", Permits: "cim-gov-permits",
	}
	for tag, bucket := range buckets {
		b.WithBucket(tag, bucket)
	}

	b.WithExtensions(Music, "mp3", "wav", "flac", "ogg", "m4a", "aac", "wma", "opus").
		WithExtensions(Video, "mp4", "avi", "mkv", "mov", "wmv", "flv", "webm", "m4v").
		WithExtensions(Images, "jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp", "ico").
		WithExtensions(Graphics, "svg", "ai", "psd", "xcf", "sketch", "fig", "xd").
		WithExtensions(Documents, "doc", "docx", "odt", "rtf", "txt", "md", "tex").
		WithExtensions(Spreadsheets, "xls", "xlsx", "ods", "csv", "tsv").
		WithExtensions(Presentations, "ppt", "pptx", "odp", "key").
		WithExtensions(SourceCode, "rs", "py", "js", "ts", "go", "java", "c", "cpp", "h", "hpp", "cs", "rb", "php").
		WithExtensions(Configuration, "json", "yaml", "yml", "toml", "ini", "conf", "cfg", "xml").
		WithExtensions(Financial, "ofx", "qfx", "qif", "aba")

	b.WithMimeTypes(Music, "audio/mpeg", "audio/wav", "audio/flac", "audio/ogg").
		WithMimeTypes(Video, "video/mp4", "video/x-msvideo", "video/quicktime", "video/webm").
		WithMimeTypes(Images, "image/jpeg", "image/png", "image/gif", "image/webp").
		WithMimeTypes(Graphics, "image/svg+xml").
		WithMimeTypes(Documents, "application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/pdf", "text/plain", "text/markdown").
		WithMimeTypes(Spreadsheets, "application/vnd.ms-excel",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "text/csv").
		WithMimeTypes(Presentations, "application/vnd.ms-powerpoint",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation")

	b.WithMatcher(PatternMatcher{
		Name:     "contract_detector",
		Keywords: []string{"contract", "agreement", "terms and conditions", "hereby agree", "party of the first part"},
		Target:   Contracts,
		Priority: 100,
	}).WithMatcher(PatternMatcher{
		Name:     "invoice_detector",
		Keywords: []string{"invoice", "bill to", "payment due", "invoice number", "subtotal", "tax", "total due"},
		Target:   Invoices,
		Priority: 90,
	}).WithMatcher(PatternMatcher{
		Name:     "medical_detector",
		Keywords: []string{"patient", "diagnosis", "prescription", "medical record", "lab results", "treatment"},
		Target:   Medical,
		Priority: 95,
	}).WithMatcher(PatternMatcher{
		Name:     "social_detector",
		Keywords: []string{"#", "@", "retweet", "like", "share", "comment", "post", "follow"},
		Target:   SocialMedia,
		Priority: 70,
	}).WithMatcher(PatternMatcher{
		Name:     "meme_detector",
		Keywords: []string{"meme", "lol", "funny", "viral", "trending"},
		Target:   Memes,
		Priority: 60,
	})

	return b.Build()
}

// BucketFor is a total function over Tag; a tag with no mapping entry
// returns GeneralBucket.
func (s PartitionStrategy) BucketFor(tag Tag) string {
	if bucket, ok := s.domainBuckets[tag]; ok {
		return bucket
	}
	return GeneralBucket
}
