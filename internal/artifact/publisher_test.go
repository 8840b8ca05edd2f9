package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crosslight/pkg/logger"
)

func TestPublishWritesLatestAndHistory(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, 10, logger.Nop())

	tree, err := Parse([]byte(`{"meta":{"version":"1.0"},"status":{"riskScore":10}}`))
	if err != nil {
		t.Fatal(err)
	}

	generated := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	historyPath, err := p.Publish(tree, generated)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if filepath.Base(historyPath) != "artifact-20260820T060000Z.json" {
		t.Errorf("history name = %s", filepath.Base(historyPath))
	}

	latest, err := p.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(latest, &parsed); err != nil {
		t.Fatalf("latest.json not valid JSON: %v", err)
	}

	history, err := os.ReadFile(historyPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(history) != string(latest) {
		t.Error("history and latest copies differ")
	}
}

func TestPublishRetention(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, 3, logger.Nop())

	tree, _ := Parse([]byte(`{"a":1}`))
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		if _, err := p.Publish(tree, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "artifact-*.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Errorf("history files = %d, want 3", len(matches))
	}

	// Newest survives.
	found := false
	for _, m := range matches {
		if filepath.Base(m) == "artifact-20260820T050000Z.json" {
			found = true
		}
	}
	if !found {
		t.Error("newest artifact was pruned")
	}

	if _, err := p.Latest(); err != nil {
		t.Errorf("latest.json missing after prune: %v", err)
	}
}

func TestLatestMissing(t *testing.T) {
	p := NewPublisher(t.TempDir(), 3, logger.Nop())
	if _, err := p.Latest(); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
