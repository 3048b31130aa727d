package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/YuvaAi/promoforge/internal/metrics"
	"github.com/YuvaAi/promoforge/internal/platform"
)

// stubBackend returns scripted results per call
type stubBackend struct {
	calls   int
	results []stubResult
}

type stubResult struct {
	text string
	err  error
}

func (b *stubBackend) Generate(ctx context.Context, prompt string) (string, error) {
	i := b.calls
	b.calls++
	if i >= len(b.results) {
		i = len(b.results) - 1
	}
	return b.results[i].text, b.results[i].err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestGenerator(backend Backend, cfg Config) *Generator {
	return New(backend, cfg, nil, nil, nil, testLogger())
}

func TestGenerateTextEmptyPrompt(t *testing.T) {
	backend := &stubBackend{}
	gen := newTestGenerator(backend, Config{})

	_, err := gen.GenerateText(context.Background(), "   ", "")
	if err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if kind := platform.KindOf(err); kind != platform.KindInvalidInput {
		t.Errorf("kind = %s, want %s", kind, platform.KindInvalidInput)
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times for empty prompt, want 0", backend.calls)
	}
}

func TestGenerateTextSuccess(t *testing.T) {
	backend := &stubBackend{results: []stubResult{
		{text: "## Fresh Coffee\n**Try our new roast** today!"},
	}}
	gen := newTestGenerator(backend, Config{})

	out, err := gen.GenerateText(context.Background(), "coffee shop promo", "food")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	want := "Fresh Coffee\nTry our new roast today!"
	if out != want {
		t.Errorf("GenerateText() = %q, want %q", out, want)
	}
	if backend.calls != 1 {
		t.Errorf("backend calls = %d, want 1", backend.calls)
	}
}

func TestGenerateTextRetriesOverload(t *testing.T) {
	overload := errors.New("rpc error: code 503, model overloaded")
	backend := &stubBackend{results: []stubResult{
		{err: overload},
		{err: overload},
		{text: "Great post"},
	}}
	gen := newTestGenerator(backend, Config{BaseDelay: time.Millisecond, MaxAttempts: 5})

	out, err := gen.GenerateText(context.Background(), "coffee", "")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if out != "Great post" {
		t.Errorf("GenerateText() = %q", out)
	}
	if backend.calls != 3 {
		t.Errorf("backend calls = %d, want 3", backend.calls)
	}
}

func TestGenerateTextBackoffGrows(t *testing.T) {
	overload := errors.New("service unavailable")
	backend := &stubBackend{results: []stubResult{
		{err: overload},
		{err: overload},
		{text: "ok"},
	}}
	base := 20 * time.Millisecond
	gen := newTestGenerator(backend, Config{BaseDelay: base, MaxAttempts: 5})

	start := time.Now()
	if _, err := gen.GenerateText(context.Background(), "coffee", ""); err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	elapsed := time.Since(start)

	// Two backoffs: base and 2*base.
	if min := 3 * base; elapsed < min {
		t.Errorf("elapsed = %v, want at least %v", elapsed, min)
	}
}

func TestGenerateTextOverloadExhausted(t *testing.T) {
	backend := &stubBackend{results: []stubResult{
		{err: errors.New("model overloaded")},
	}}
	gen := newTestGenerator(backend, Config{BaseDelay: time.Millisecond, MaxAttempts: 3})

	_, err := gen.GenerateText(context.Background(), "coffee", "")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if kind := platform.KindOf(err); kind != platform.KindOverloaded {
		t.Errorf("kind = %s, want %s", kind, platform.KindOverloaded)
	}
	if backend.calls != 3 {
		t.Errorf("backend calls = %d, want 3", backend.calls)
	}
}

func TestGenerateTextQuotaFailsImmediately(t *testing.T) {
	backend := &stubBackend{results: []stubResult{
		{err: errors.New("429 RESOURCE_EXHAUSTED: quota exceeded")},
	}}
	gen := newTestGenerator(backend, Config{BaseDelay: time.Millisecond, MaxAttempts: 5})

	_, err := gen.GenerateText(context.Background(), "coffee", "")
	if err == nil {
		t.Fatal("expected quota error")
	}
	if kind := platform.KindOf(err); kind != platform.KindQuotaExceeded {
		t.Errorf("kind = %s, want %s", kind, platform.KindQuotaExceeded)
	}
	if backend.calls != 1 {
		t.Errorf("backend calls = %d, want 1 (quota must not retry)", backend.calls)
	}
}

func TestGenerateTextTerminalErrorNotRetried(t *testing.T) {
	backend := &stubBackend{results: []stubResult{
		{err: errors.New("invalid argument")},
	}}
	gen := newTestGenerator(backend, Config{BaseDelay: time.Millisecond, MaxAttempts: 5})

	if _, err := gen.GenerateText(context.Background(), "coffee", ""); err == nil {
		t.Fatal("expected error")
	}
	if backend.calls != 1 {
		t.Errorf("backend calls = %d, want 1", backend.calls)
	}
}

func TestGenerateTextCancelledDuringBackoff(t *testing.T) {
	backend := &stubBackend{results: []stubResult{
		{err: errors.New("model overloaded")},
	}}
	gen := newTestGenerator(backend, Config{BaseDelay: time.Second, MaxAttempts: 5})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := gen.GenerateText(ctx, "coffee", "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestGenerateImageDescriptionQuotaFallback(t *testing.T) {
	backend := &stubBackend{results: []stubResult{
		{err: errors.New("quota exceeded for this project")},
	}}
	gen := newTestGenerator(backend, Config{BaseDelay: time.Millisecond, MaxAttempts: 3})

	desc, err := gen.GenerateImageDescription(context.Background(), "luxury golden watch", "fashion")
	if err != nil {
		t.Fatalf("GenerateImageDescription() error = %v, want fallback", err)
	}
	if desc == "" {
		t.Fatal("fallback description is empty")
	}
	// Must be the deterministic table output, not backend text.
	want := gen.tables.Describe("luxury golden watch", "fashion")
	if desc != want {
		t.Errorf("fallback = %q, want %q", desc, want)
	}
}

func TestGenerateImageDescriptionOverloadStillFails(t *testing.T) {
	backend := &stubBackend{results: []stubResult{
		{err: errors.New("model overloaded")},
	}}
	gen := newTestGenerator(backend, Config{BaseDelay: time.Millisecond, MaxAttempts: 2})

	_, err := gen.GenerateImageDescription(context.Background(), "coffee", "food")
	if err == nil {
		t.Fatal("expected error: overload must not use quota fallback")
	}
	if kind := platform.KindOf(err); kind != platform.KindOverloaded {
		t.Errorf("kind = %s, want %s", kind, platform.KindOverloaded)
	}
}

func TestClassifyBackendError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errorClass
	}{
		{"status in message 503", errors.New("got 503 from upstream"), classOverloaded},
		{"unavailable keyword", errors.New("service UNAVAILABLE"), classOverloaded},
		{"overloaded keyword", errors.New("the model is overloaded"), classOverloaded},
		{"status in message 429", errors.New("http 429"), classQuota},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), classQuota},
		{"quota keyword", errors.New("daily quota reached"), classQuota},
		{"plain failure", errors.New("connection refused"), classTerminal},
		{"wrapped", fmt.Errorf("call failed: %w", errors.New("model overloaded")), classOverloaded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyBackendError(tt.err); got != tt.want {
				t.Errorf("classifyBackendError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"**bold** and *italic*", "bold and italic"},
		{"# Heading\nbody", "Heading\nbody"},
		{"### Deep heading", "Deep heading"},
		{"`code` and __underline__", "code and underline"},
		{"  padded  ", "padded"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateTextRecordsMetrics(t *testing.T) {
	backend := &stubBackend{results: []stubResult{
		{err: errors.New("model overloaded")},
		{text: "Great post"},
	}}
	m := metrics.New()
	gen := New(backend, Config{BaseDelay: time.Millisecond, MaxAttempts: 5}, nil, nil, m, testLogger())

	if _, err := gen.GenerateText(context.Background(), "coffee", ""); err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`promoforge_generations_total{kind="text",outcome="success"} 1`,
		`promoforge_generation_retries_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestGenerateImageDescriptionRecordsFallbackMetric(t *testing.T) {
	backend := &stubBackend{results: []stubResult{
		{err: errors.New("quota exceeded for this project")},
	}}
	m := metrics.New()
	gen := New(backend, Config{BaseDelay: time.Millisecond}, nil, nil, m, testLogger())

	if _, err := gen.GenerateImageDescription(context.Background(), "coffee", "food"); err != nil {
		t.Fatalf("GenerateImageDescription() error = %v", err)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	want := `promoforge_generations_total{kind="image_description",outcome="fallback"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics output missing %q", want)
	}
}
