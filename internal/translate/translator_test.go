package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crosslight/internal/artifact"
	"crosslight/internal/infrastructure/cache"
	"crosslight/pkg/logger"
)

// echoReasoner "translates" by prefixing, keeping placeholders intact.
type echoReasoner struct {
	calls     int32
	err       error
	transform func(masked string) string
}

func (r *echoReasoner) Generate(_ context.Context, _, prompt string) (string, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.err != nil {
		return "", r.err
	}
	// The text to translate follows the blank line in the prompt.
	idx := strings.Index(prompt, "\n\n")
	masked := prompt[idx+2:]
	if r.transform != nil {
		return r.transform(masked), nil
	}
	return "[fr] " + masked, nil
}

func (r *echoReasoner) Available() bool { return true }

func newTranslator(t *testing.T, reasoner Reasoner, fallback *FallbackProvider) *Translator {
	t.Helper()
	return New(reasoner, fallback, nil, Options{
		TargetLanguage: "fr",
		BatchSize:      2,
		MinLengthRatio: 0.3,
		MaxLengthRatio: 3.0,
	}, logger.Nop())
}

func TestTranslateTreePreservesShape(t *testing.T) {
	input := `{"meta":{"version":"1.0"},"executive":{"headline":"Ransomware campaign expanding","keyFindings":["Multiple victims reported this week","Multiple victims reported this week"]},"status":{"riskScore":61}}`
	root, err := artifact.Parse([]byte(input))
	if err != nil {
		t.Fatal(err)
	}

	tr := newTranslator(t, &echoReasoner{}, nil)
	if err := tr.TranslateTree(context.Background(), root); err != nil {
		t.Fatalf("TranslateTree: %v", err)
	}

	out, _ := root.MarshalJSON()
	s := string(out)

	if !strings.Contains(s, `"headline":"[fr] Ransomware campaign expanding"`) {
		t.Errorf("headline not translated: %s", s)
	}
	// Every occurrence of a repeated string is replaced.
	if strings.Count(s, "[fr] Multiple victims reported this week") != 2 {
		t.Errorf("repeated string not replaced everywhere: %s", s)
	}
	// Non-eligible leaves and numbers untouched.
	if !strings.Contains(s, `"version":"1.0"`) || !strings.Contains(s, `"riskScore":61`) {
		t.Errorf("protected values changed: %s", s)
	}
	// Key order preserved.
	if strings.Index(s, "meta") > strings.Index(s, "executive") {
		t.Errorf("key order changed: %s", s)
	}
}

func TestTranslateProtectsTechnicalTokens(t *testing.T) {
	input := `{"executive":{"summary":"Exploitation of CVE-2026-1000 from 203.0.113.7:4444 using Cobalt Strike beacons"}}`
	root, err := artifact.Parse([]byte(input))
	if err != nil {
		t.Fatal(err)
	}

	tr := newTranslator(t, &echoReasoner{}, nil)
	if err := tr.TranslateTree(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	out, _ := root.MarshalJSON()
	s := string(out)
	for _, token := range []string{"CVE-2026-1000", "203.0.113.7:4444", "Cobalt Strike"} {
		if !strings.Contains(s, token) {
			t.Errorf("protected token %q mangled: %s", token, s)
		}
	}
	if !strings.Contains(s, "[fr] ") {
		t.Errorf("prose around tokens not translated: %s", s)
	}
}

func TestTranslateDroppedPlaceholderFailsGate(t *testing.T) {
	// Model "loses" all placeholders; no fallback configured, so the
	// original text must survive.
	reasoner := &echoReasoner{transform: func(masked string) string {
		return "traduction sans jetons de longueur comparable"
	}}
	input := `{"executive":{"summary":"Scanning from 203.0.113.7 continues daily"}}`
	root, _ := artifact.Parse([]byte(input))

	tr := newTranslator(t, reasoner, nil)
	if err := tr.TranslateTree(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	out, _ := root.MarshalJSON()
	if !strings.Contains(string(out), "Scanning from 203.0.113.7 continues daily") {
		t.Errorf("original should survive a failed gate: %s", out)
	}
}

func TestTranslateLengthRatioTriggersFallback(t *testing.T) {
	var fallbackCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fallbackCalls, 1)
		fmt.Fprint(w, `{"translatedText": "traduction de secours plausible ici"}`)
	}))
	defer server.Close()

	// Primary returns an implausibly short "translation".
	reasoner := &echoReasoner{transform: func(string) string { return "x" }}
	fallback := NewFallbackProvider(server.URL, logger.Nop())

	input := `{"executive":{"summary":"A reasonably long sentence that should translate to something comparable"}}`
	root, _ := artifact.Parse([]byte(input))

	tr := newTranslator(t, reasoner, fallback)
	if err := tr.TranslateTree(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	if atomic.LoadInt32(&fallbackCalls) != 1 {
		t.Errorf("fallback calls = %d, want 1", fallbackCalls)
	}
	out, _ := root.MarshalJSON()
	if !strings.Contains(string(out), "traduction de secours plausible ici") {
		t.Errorf("fallback translation not applied: %s", out)
	}
}

func TestTranslateUsesCache(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir(), "translation", logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	reasoner := &echoReasoner{}
	tr := New(reasoner, nil, store, Options{
		TargetLanguage: "fr",
		BatchSize:      2,
		CacheTTL:       time.Hour,
	}, logger.Nop())

	input := `{"executive":{"summary":"Persistent scanning activity was observed"}}`

	root1, _ := artifact.Parse([]byte(input))
	if err := tr.TranslateTree(context.Background(), root1); err != nil {
		t.Fatal(err)
	}
	first := atomic.LoadInt32(&reasoner.calls)
	if first == 0 {
		t.Fatal("expected a provider call on cold cache")
	}

	root2, _ := artifact.Parse([]byte(input))
	if err := tr.TranslateTree(context.Background(), root2); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&reasoner.calls) != first {
		t.Error("second run should be served from cache")
	}

	out, _ := root2.MarshalJSON()
	if !strings.Contains(string(out), "[fr] Persistent scanning activity was observed") {
		t.Errorf("cached translation not applied: %s", out)
	}
}

func TestTranslateNoTargetIsNoop(t *testing.T) {
	reasoner := &echoReasoner{}
	tr := New(reasoner, nil, nil, Options{}, logger.Nop())
	root, _ := artifact.Parse([]byte(`{"executive":{"summary":"untouched text here"}}`))
	if err := tr.TranslateTree(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&reasoner.calls) != 0 {
		t.Error("no target language should mean no provider calls")
	}
}

// stallReasoner blocks until the per-string deadline cancels it.
type stallReasoner struct{}

func (r *stallReasoner) Generate(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (r *stallReasoner) Available() bool { return true }

func TestTranslateTimeoutScalesWithLength(t *testing.T) {
	tr := New(&echoReasoner{}, nil, nil, Options{
		TargetLanguage: "fr",
		TimeoutPerKB:   20 * time.Second,
	}, logger.Nop())

	if got := tr.timeoutFor("short"); got != 20*time.Second {
		t.Errorf("sub-KB string: timeout = %v, want 20s", got)
	}
	if got := tr.timeoutFor(strings.Repeat("a", 3000)); got != 60*time.Second {
		t.Errorf("3000-byte string: timeout = %v, want 60s", got)
	}
}

func TestTranslateSlowProviderHitsDeadline(t *testing.T) {
	tr := New(&stallReasoner{}, nil, nil, Options{
		TargetLanguage: "fr",
		TimeoutPerKB:   10 * time.Millisecond,
	}, logger.Nop())

	root, _ := artifact.Parse([]byte(`{"executive":{"summary":"a sentence long enough to translate"}}`))
	done := make(chan error, 1)
	go func() { done <- tr.TranslateTree(context.Background(), root) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("deadline not applied, translation still blocked")
	}
	out, _ := root.MarshalJSON()
	if !strings.Contains(string(out), "a sentence long enough to translate") {
		t.Errorf("original lost: %s", out)
	}
}

func TestTranslateReasonerErrorKeepsOriginal(t *testing.T) {
	reasoner := &echoReasoner{err: errors.New("connection refused")}
	root, _ := artifact.Parse([]byte(`{"executive":{"summary":"original sentence stays intact"}}`))
	tr := newTranslator(t, reasoner, nil)
	if err := tr.TranslateTree(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	out, _ := root.MarshalJSON()
	if !strings.Contains(string(out), "original sentence stays intact") {
		t.Errorf("original lost: %s", out)
	}
}
