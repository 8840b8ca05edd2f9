package reasoning

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"crosslight/pkg/logger"
)

// ErrUnavailable is returned when no reasoning endpoint is configured.
// Callers fall back to deterministic derivation instead of failing.
var ErrUnavailable = errors.New("reasoning service not configured")

const (
	defaultMaxRetries   = 3
	baseTimeout         = 30 * time.Second
	defaultTimeoutPerKB = 2 * time.Second
	maxTimeout          = 5 * time.Minute
	defaultTemperature  = 0.2
)

// Config configures the reasoning client.
type Config struct {
	Endpoint    string
	Model       string
	StageModels map[string]string
	MaxRetries  int
	Timeout     time.Duration

	// TimeoutPerKB extends the request timeout proportionally to the
	// prompt size, up to maxTimeout.
	TimeoutPerKB time.Duration
}

// Client talks to a single-endpoint reasoning service that accepts
// {model, prompt, stream} and returns either a whole-text JSON body or a
// line-delimited token stream. The contract is best-effort structured text;
// callers must be prepared to fall back when parsing fails.
type Client struct {
	endpoint     string
	model        string
	stageModels  map[string]string
	maxRetries   int
	baseTimeout  time.Duration
	timeoutPerKB time.Duration
	httpClient   *http.Client
	logger       *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	base := cfg.Timeout
	if base <= 0 {
		base = baseTimeout
	}
	perKB := cfg.TimeoutPerKB
	if perKB <= 0 {
		perKB = defaultTimeoutPerKB
	}
	return &Client{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		model:        cfg.Model,
		stageModels:  cfg.StageModels,
		maxRetries:   retries,
		baseTimeout:  base,
		timeoutPerKB: perKB,
		httpClient:   &http.Client{Timeout: maxTimeout},
		logger:       log.WithComponent("reasoning"),
	}
}

// Available reports whether an endpoint is configured.
func (c *Client) Available() bool {
	return c.endpoint != ""
}

// ModelFor returns the model configured for a stage, falling back to the
// client default.
func (c *Client) ModelFor(stage string) string {
	if m, ok := c.stageModels[stage]; ok && m != "" {
		return m
	}
	return c.model
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends a prompt for the given stage and returns the full response
// text. It retries transient failures with exponential backoff, bounded by
// MaxRetries, under a timeout proportional to the prompt size.
func (c *Client) Generate(ctx context.Context, stage, prompt string) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	timeout := c.baseTimeout + c.timeoutPerKB*time.Duration(len(prompt)/1024)
	if timeout > maxTimeout {
		timeout = maxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := c.ModelFor(stage)
	body, err := json.Marshal(generateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]any{"temperature": defaultTemperature},
	})
	if err != nil {
		return "", err
	}

	var text string
	operation := func() error {
		var opErr error
		text, opErr = c.doGenerate(ctx, body)
		return opErr
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.Warn().Err(err).Str("stage", stage).Str("model", model).Msg("generation failed")
		return "", err
	}
	return text, nil
}

func (c *Client) doGenerate(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("reasoning service returned status %d: %s", resp.StatusCode, string(raw))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	return readResponse(resp.Body)
}

// readResponse handles both response shapes: a single JSON object with a
// "response" field, or newline-delimited chunks of the same shape when the
// service streams regardless of the stream flag. Bodies that are neither
// are returned verbatim.
func readResponse(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	var single generateResponse
	if err := json.Unmarshal(raw, &single); err == nil {
		return single.Response, nil
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sawChunk := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			sawChunk = false
			break
		}
		sawChunk = true
		sb.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if sawChunk {
		return sb.String(), nil
	}
	return string(raw), nil
}

// ExtractJSON pulls the first JSON object out of model output that may wrap
// it in markdown fences or surrounding prose.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

// ParseJSON extracts and unmarshals a JSON object from model output.
func ParseJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}
