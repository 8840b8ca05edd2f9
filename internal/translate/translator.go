package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"crosslight/internal/artifact"
	"crosslight/internal/infrastructure/cache"
	"crosslight/pkg/logger"
)

// Reasoner is the reasoning-service surface the translator uses.
type Reasoner interface {
	Generate(ctx context.Context, stage, prompt string) (string, error)
	Available() bool
}

// Options configures a Translator.
type Options struct {
	TargetLanguage string
	BatchSize      int
	CacheTTL       time.Duration
	// TimeoutPerKB bounds each per-string translation proportionally
	// to its length, counting partial kilobytes as whole ones.
	TimeoutPerKB   time.Duration
	MinLengthRatio float64
	MaxLengthRatio float64
}

// Translator localizes the prose leaves of an artifact tree in place,
// leaving structure, ordering, and technical values untouched. Per-string
// work fans out with bounded concurrency and fans back in before the tree
// is reconstructed.
type Translator struct {
	reasoner Reasoner
	fallback *FallbackProvider
	store    cache.Store
	opts     Options
	logger   *logger.Logger
}

func New(reasoner Reasoner, fallback *FallbackProvider, store cache.Store, opts Options, log *logger.Logger) *Translator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 4
	}
	if opts.MinLengthRatio <= 0 {
		opts.MinLengthRatio = 0.3
	}
	if opts.TimeoutPerKB <= 0 {
		opts.TimeoutPerKB = 20 * time.Second
	}
	if opts.MaxLengthRatio <= 0 {
		opts.MaxLengthRatio = 3.0
	}
	return &Translator{
		reasoner: reasoner,
		fallback: fallback,
		store:    store,
		opts:     opts,
		logger:   log.WithComponent("translate"),
	}
}

// TranslateTree translates every eligible string leaf of the tree in place.
// Failures leave the original string; the tree's shape never changes.
func (t *Translator) TranslateTree(ctx context.Context, root *artifact.Value) error {
	if t.opts.TargetLanguage == "" {
		return nil
	}

	leaves := root.StringLeaves()
	pending := make(map[string]bool)
	for _, leaf := range leaves {
		if eligible(leaf.Field, leaf.Path, leaf.Value.StringValue()) {
			pending[leaf.Value.StringValue()] = true
		}
	}
	if len(pending) == 0 {
		return nil
	}

	translated := make(map[string]string, len(pending))
	var mu sync.Mutex

	// Cache pass first; only misses go to the providers.
	var misses []string
	for original := range pending {
		if t.store != nil {
			key := cache.Hash(t.opts.TargetLanguage + "\x00" + original)
			if val, ok, err := t.store.Get(ctx, key); err == nil && ok {
				translated[original] = val
				continue
			}
		}
		misses = append(misses, original)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.BatchSize)
	for _, original := range misses {
		original := original
		g.Go(func() error {
			result, err := t.translateString(gctx, original)
			if err != nil {
				t.logger.Debug().Err(err).Msg("string left untranslated")
				return nil
			}
			mu.Lock()
			translated[original] = result
			mu.Unlock()
			if t.store != nil {
				key := cache.Hash(t.opts.TargetLanguage + "\x00" + original)
				if err := t.store.Set(ctx, key, result, t.opts.CacheTTL); err != nil {
					t.logger.Warn().Err(err).Msg("failed to cache translation")
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Reconstruction: every occurrence of a translated original is
	// replaced, not just the first.
	replaced := 0
	for _, leaf := range leaves {
		if result, ok := translated[leaf.Value.StringValue()]; ok &&
			eligible(leaf.Field, leaf.Path, leaf.Value.StringValue()) {
			leaf.Value.SetString(result)
			replaced++
		}
	}

	t.logger.Info().
		Int("eligible", len(pending)).
		Int("cache_hits", len(pending)-len(misses)).
		Int("replaced", replaced).
		Str("target", t.opts.TargetLanguage).
		Msg("tree translation completed")
	return nil
}

// translateString runs the full per-string path: protect, translate,
// restore, quality-gate, with the fallback provider as second chance.
func (t *Translator) translateString(ctx context.Context, original string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeoutFor(original))
	defer cancel()

	masked, tokens := protect(original)

	var primaryErr error
	if t.reasoner != nil && t.reasoner.Available() {
		raw, err := t.reasoner.Generate(ctx, "translation", t.prompt(masked))
		if err == nil {
			if out, ok := t.gate(masked, raw, tokens, original); ok {
				return out, nil
			}
			primaryErr = fmt.Errorf("translation failed quality gate")
		} else {
			primaryErr = err
		}
	} else {
		primaryErr = fmt.Errorf("reasoning service unavailable")
	}

	if t.fallback.Available() {
		raw, err := t.fallback.Translate(ctx, masked, t.opts.TargetLanguage)
		if err == nil {
			if out, ok := t.gate(masked, raw, tokens, original); ok {
				return out, nil
			}
			return "", fmt.Errorf("fallback translation failed quality gate")
		}
		return "", fmt.Errorf("fallback translation failed: %w (primary: %v)", err, primaryErr)
	}
	return "", primaryErr
}

// timeoutFor scales the per-string deadline with the string's size, so a
// paragraph gets more room than a headline.
func (t *Translator) timeoutFor(s string) time.Duration {
	kb := (len(s) + 1023) / 1024
	if kb < 1 {
		kb = 1
	}
	return t.opts.TimeoutPerKB * time.Duration(kb)
}

// gate validates a raw translation: placeholders intact and a plausible
// length ratio. Returns the restored text on success.
func (t *Translator) gate(masked, raw string, tokens []string, original string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !allPlaceholdersPresent(raw, masked) {
		return "", false
	}
	restored := restore(raw, tokens)
	ratio := float64(len(restored)) / float64(len(original))
	if ratio < t.opts.MinLengthRatio || ratio > t.opts.MaxLengthRatio {
		return "", false
	}
	return restored, true
}

func (t *Translator) prompt(masked string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following text to %s. ", t.opts.TargetLanguage)
	sb.WriteString("Keep every ")
	sb.WriteString(placeholderOpen)
	sb.WriteString("Tn")
	sb.WriteString(placeholderClose)
	sb.WriteString(" token exactly as written. Respond with only the translated text, no explanations.\n\n")
	sb.WriteString(masked)
	return sb.String()
}
