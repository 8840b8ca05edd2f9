package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"crosslight/pkg/logger"
)

// FallbackProvider is the secondary HTTP translation service used when the
// reasoning service fails or its output flunks the quality gate. Speaks the
// LibreTranslate request shape.
type FallbackProvider struct {
	endpoint string
	client   *http.Client
	logger   *logger.Logger
}

func NewFallbackProvider(endpoint string, log *logger.Logger) *FallbackProvider {
	return &FallbackProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   log.WithComponent("translate-fallback"),
	}
}

func (p *FallbackProvider) Available() bool {
	return p != nil && p.endpoint != ""
}

type fallbackRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type fallbackResponse struct {
	TranslatedText string `json:"translatedText"`
}

func (p *FallbackProvider) Translate(ctx context.Context, text, target string) (string, error) {
	body, err := json.Marshal(fallbackRequest{
		Q:      text,
		Source: "auto",
		Target: target,
		Format: "text",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("fallback translator returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out fallbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode fallback response: %w", err)
	}
	if out.TranslatedText == "" {
		return "", fmt.Errorf("fallback translator returned empty text")
	}
	return out.TranslatedText, nil
}
