package redact

import (
	"fmt"

	"harbor-go/internal/config"
	"harbor-go/internal/harbor"
)

// NewFromConfig creates a Redactor implementation based on the
// redaction config type.
func NewFromConfig(cfg config.RedactionConfig) (harbor.Redactor, error) {
	switch cfg.Type {
	case "", "none":
		return harbor.NewNopRedactor(), nil
	case "presidio":
		return NewPresidio(cfg.AnalyzerURL, cfg.AnonymizerURL)
	default:
		return nil, fmt.Errorf("unknown redaction type: %s", cfg.Type)
	}
}
