package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"crosslight/pkg/logger"
)

func newTestClient(endpoint string) *Client {
	return NewClient(Config{
		Endpoint:    endpoint,
		Model:       "default-model",
		StageModels: map[string]string{"extraction": "extract-model"},
		MaxRetries:  2,
	}, logger.Nop())
}

func TestGenerateWholeResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "extract-model" {
			t.Errorf("model = %q, want stage override", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		fmt.Fprint(w, `{"response": "hello from model", "done": true}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	got, err := c.Generate(context.Background(), "extraction", "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "hello from model" {
		t.Errorf("got %q", got)
	}
}

func TestGenerateStreamedChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response": "part one ", "done": false}`)
		fmt.Fprintln(w, `{"response": "part two", "done": true}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	got, err := c.Generate(context.Background(), "report", "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "part one part two" {
		t.Errorf("got %q", got)
	}
}

func TestGenerateRetriesTransientErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"response": "recovered", "done": true}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	got, err := c.Generate(context.Background(), "assessment", "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "recovered" {
		t.Errorf("got %q", got)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestGenerateClientErrorNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.Generate(context.Background(), "report", "prompt"); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("attempts = %d, want 1 (4xx is permanent)", attempts)
	}
}

func TestGenerateUnavailableWithoutEndpoint(t *testing.T) {
	c := NewClient(Config{}, logger.Nop())
	if c.Available() {
		t.Error("client without endpoint should be unavailable")
	}
	if _, err := c.Generate(context.Background(), "extraction", "prompt"); err != ErrUnavailable {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			"bare object",
			`{"a": 1}`,
			`{"a": 1}`,
			true,
		},
		{
			"fenced json",
			"Here you go:\n```json\n{\"a\": 1}\n```\nHope that helps!",
			"{\"a\": 1}",
			true,
		},
		{
			"generic fence",
			"```\n{\"a\": 1}\n```",
			"{\"a\": 1}",
			true,
		},
		{
			"prose around object",
			`Sure! The result is {"a": {"b": 2}} as requested.`,
			`{"a": {"b": 2}}`,
			true,
		},
		{
			"braces inside strings",
			`{"text": "literal } brace"}`,
			`{"text": "literal } brace"}`,
			true,
		},
		{
			"no object",
			"no json here",
			"",
			false,
		},
		{
			"unbalanced",
			`{"a": 1`,
			"",
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.ok && err != nil {
				t.Fatalf("ExtractJSON: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestModelFor(t *testing.T) {
	c := newTestClient("http://localhost:11434")
	if got := c.ModelFor("extraction"); got != "extract-model" {
		t.Errorf("stage model = %q", got)
	}
	if got := c.ModelFor("unknown"); got != "default-model" {
		t.Errorf("fallback model = %q", got)
	}
}

func TestTimeoutPerKBConfigurable(t *testing.T) {
	c := NewClient(Config{
		Endpoint:     "http://localhost:11434",
		TimeoutPerKB: 5 * time.Second,
	}, logger.Nop())
	if c.timeoutPerKB != 5*time.Second {
		t.Errorf("timeoutPerKB = %v, want 5s", c.timeoutPerKB)
	}

	c = NewClient(Config{Endpoint: "http://localhost:11434"}, logger.Nop())
	if c.timeoutPerKB != defaultTimeoutPerKB {
		t.Errorf("default timeoutPerKB = %v, want %v", c.timeoutPerKB, defaultTimeoutPerKB)
	}
}
