// Package redact masks personally identifying information in harvested
// text. The presidio backend delegates to a Microsoft Presidio
// analyzer/anonymizer pair running as HTTP services.
package redact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"harbor-go/internal/harbor"
)

// Presidio implements harbor.Redactor against Presidio's REST API.
type Presidio struct {
	httpClient    *http.Client
	analyzerURL   string
	anonymizerURL string
}

var _ harbor.Redactor = (*Presidio)(nil)

func NewPresidio(analyzerURL, anonymizerURL string) (*Presidio, error) {
	if analyzerURL == "" || anonymizerURL == "" {
		return nil, fmt.Errorf("analyzer and anonymizer URLs are required")
	}
	return &Presidio{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		analyzerURL:   strings.TrimSuffix(analyzerURL, "/"),
		anonymizerURL: strings.TrimSuffix(anonymizerURL, "/"),
	}, nil
}

func (p *Presidio) Analyze(ctx context.Context, text, language string) ([]harbor.Finding, error) {
	payload := map[string]any{
		"text":     text,
		"language": language,
	}
	var findings []harbor.Finding
	if err := p.post(ctx, p.analyzerURL+"/analyze", payload, &findings); err != nil {
		return nil, fmt.Errorf("presidio analyze: %w", err)
	}
	return findings, nil
}

func (p *Presidio) Anonymize(ctx context.Context, text string, findings []harbor.Finding) (string, error) {
	payload := map[string]any{
		"text":             text,
		"analyzer_results": findings,
		"anonymizers": map[string]any{
			// Replace each span with its entity type, e.g. <EMAIL_ADDRESS>.
			"DEFAULT": map[string]string{"type": "replace"},
		},
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := p.post(ctx, p.anonymizerURL+"/anonymize", payload, &result); err != nil {
		return "", fmt.Errorf("presidio anonymize: %w", err)
	}
	return result.Text, nil
}

func (p *Presidio) post(ctx context.Context, url string, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
