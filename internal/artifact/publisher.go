package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"crosslight/pkg/logger"
)

const (
	latestName     = "latest.json"
	historyPattern = "artifact-*.json"
)

// Publisher writes the artifact to disk: a timestamped history copy plus an
// atomically replaced latest.json the HTTP layer serves. Old history files
// beyond the retention count are removed.
type Publisher struct {
	dir       string
	retention int
	logger    *logger.Logger
}

func NewPublisher(dir string, retention int, log *logger.Logger) *Publisher {
	if retention <= 0 {
		retention = 10
	}
	return &Publisher{dir: dir, retention: retention, logger: log.WithComponent("artifact")}
}

// Publish writes the rendered tree. The tree form is used rather than the
// document so translated output keeps its key order on disk.
func (p *Publisher) Publish(tree *Value, generatedAt time.Time) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	raw, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return "", err
	}
	raw = append(raw, '\n')

	name := fmt.Sprintf("artifact-%s.json", generatedAt.UTC().Format("20060102T150405Z"))
	historyPath := filepath.Join(p.dir, name)
	if err := os.WriteFile(historyPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	latest := filepath.Join(p.dir, latestName)
	tmp := latest + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write latest artifact: %w", err)
	}
	if err := os.Rename(tmp, latest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to replace latest artifact: %w", err)
	}

	p.prune()
	p.logger.Info().Str("path", historyPath).Msg("artifact published")
	return historyPath, nil
}

// Latest reads the current artifact. os.ErrNotExist when none published yet.
func (p *Publisher) Latest() ([]byte, error) {
	return os.ReadFile(filepath.Join(p.dir, latestName))
}

func (p *Publisher) prune() {
	matches, err := filepath.Glob(filepath.Join(p.dir, historyPattern))
	if err != nil || len(matches) <= p.retention {
		return
	}
	// Timestamped names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for _, path := range matches[p.retention:] {
		if !strings.HasSuffix(path, latestName) {
			if err := os.Remove(path); err != nil {
				p.logger.Warn().Err(err).Str("path", path).Msg("failed to prune artifact")
			}
		}
	}
}
