package harbor

import "context"

// Finding is one span of personally identifying text located by a
// Redactor's analyzer.
type Finding struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Redactor locates and masks personally identifying information in
// free text before it is persisted.
type Redactor interface {
	Analyze(ctx context.Context, text, language string) ([]Finding, error)
	Anonymize(ctx context.Context, text string, findings []Finding) (string, error)
}

// NopRedactor passes text through unchanged. Used when redaction is
// disabled in the configuration.
type NopRedactor struct{}

func NewNopRedactor() *NopRedactor { return &NopRedactor{} }

func (*NopRedactor) Analyze(context.Context, string, string) ([]Finding, error) {
	return nil, nil
}

func (*NopRedactor) Anonymize(_ context.Context, text string, _ []Finding) (string, error) {
	return text, nil
}
