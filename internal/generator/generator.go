// Package generator produces marketing copy and image descriptions via
// a generative backend, with bounded retry on overload and deterministic
// fallbacks when the backend quota is exhausted.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/YuvaAi/promoforge/internal/metrics"
	"github.com/YuvaAi/promoforge/internal/platform"
)

const (
	defaultBaseDelay   = 3 * time.Second
	defaultMaxAttempts = 5
)

// Generator calls the generative backend with retry and fallback rules
type Generator struct {
	backend     Backend
	baseDelay   time.Duration
	maxAttempts int
	tables      *FallbackTables
	pools       *ImagePools
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Config contains generator tuning knobs
type Config struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// New creates a Generator. Nil tables/pools fall back to the built-in
// dictionaries; metrics are optional.
func New(backend Backend, cfg Config, tables *FallbackTables, pools *ImagePools, m *metrics.Metrics, logger *slog.Logger) *Generator {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if tables == nil {
		tables = DefaultFallbackTables()
	}
	if pools == nil {
		pools = DefaultImagePools()
	}
	return &Generator{
		backend:     backend,
		baseDelay:   cfg.BaseDelay,
		maxAttempts: cfg.MaxAttempts,
		tables:      tables,
		pools:       pools,
		metrics:     m,
		logger:      logger,
	}
}

// GenerateText produces marketing copy for the prompt. Overloaded
// backend responses are retried with exponential backoff up to the
// attempt ceiling; quota exhaustion fails immediately.
func (g *Generator) GenerateText(ctx context.Context, prompt, category string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", platform.NewError("", platform.KindInvalidInput, "prompt must not be empty")
	}

	full := buildTextPrompt(prompt, category)
	out, err := g.generateWithRetry(ctx, full)
	if err != nil {
		g.metrics.ObserveGeneration("text", string(platform.KindOf(err)))
		return "", err
	}
	g.metrics.ObserveGeneration("text", "success")
	return Sanitize(out), nil
}

// GenerateImageDescription produces an image description for the
// prompt. Quota exhaustion does not fail: it falls back to the
// deterministic keyword description, then to the category generic.
func (g *Generator) GenerateImageDescription(ctx context.Context, prompt, category string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", platform.NewError("", platform.KindInvalidInput, "prompt must not be empty")
	}

	full := buildImagePrompt(prompt, category)
	out, err := g.generateWithRetry(ctx, full)
	if err != nil {
		if platform.KindOf(err) == platform.KindQuotaExceeded {
			desc := g.tables.Describe(prompt, category)
			g.logger.Info("backend quota exhausted, using fallback description",
				"category", category)
			g.metrics.ObserveGeneration("image_description", "fallback")
			return desc, nil
		}
		g.metrics.ObserveGeneration("image_description", string(platform.KindOf(err)))
		return "", err
	}
	g.metrics.ObserveGeneration("image_description", "success")
	return Sanitize(out), nil
}

// ResolveImageURL maps a description to a curated image URL
func (g *Generator) ResolveImageURL(description string) string {
	return g.pools.Resolve(description)
}

// generateWithRetry is the bounded retry loop. The only suspension
// point is the backoff sleep; attempts are strictly sequential.
func (g *Generator) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		out, err := g.backend.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		switch classifyBackendError(err) {
		case classQuota:
			return "", platform.NewError("", platform.KindQuotaExceeded, "backend quota exceeded: %v", err)
		case classOverloaded:
			if attempt == g.maxAttempts {
				break
			}
			delay := g.baseDelay * (1 << (attempt - 1))
			g.logger.Warn("backend overloaded, backing off",
				"attempt", attempt, "delay", delay)
			g.metrics.ObserveGenerationRetry()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		default:
			return "", fmt.Errorf("generation failed: %w", err)
		}
	}
	return "", platform.NewError("", platform.KindOverloaded,
		"backend overloaded after %d attempts: %v", g.maxAttempts, lastErr)
}

func buildTextPrompt(prompt, category string) string {
	if category == "" {
		return "Write a short, engaging social media post about: " + prompt
	}
	return fmt.Sprintf("Write a short, engaging social media post for the %s category about: %s", category, prompt)
}

func buildImagePrompt(prompt, category string) string {
	if category == "" {
		return "Describe a single striking marketing image for: " + prompt
	}
	return fmt.Sprintf("Describe a single striking %s marketing image for: %s", category, prompt)
}

var (
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	emphasisRe = regexp.MustCompile(`\*{1,2}|_{2}|` + "`")
)

// Sanitize strips markdown control characters the model tends to emit
// (emphasis markers, heading markers, code fences) from generated text
func Sanitize(s string) string {
	s = headingRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
