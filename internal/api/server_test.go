package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/YuvaAi/promoforge/internal/campaign"
	"github.com/YuvaAi/promoforge/internal/config"
	"github.com/YuvaAi/promoforge/internal/contentlog"
	"github.com/YuvaAi/promoforge/internal/credstore"
	"github.com/YuvaAi/promoforge/internal/generator"
	"github.com/YuvaAi/promoforge/internal/platform"
	"github.com/YuvaAi/promoforge/internal/publisher"
)

// scriptedBackend returns fixed text or a fixed error
type scriptedBackend struct {
	text string
	err  error
}

func (b *scriptedBackend) Generate(ctx context.Context, prompt string) (string, error) {
	return b.text, b.err
}

type serverFixture struct {
	server *Server
	creds  *credstore.BoltStore
	log    *contentlog.BoltLog
	graph  *httptest.Server
}

// newFixture assembles a server backed by an in-process graph stub and
// a temp database
func newFixture(t *testing.T, backend generator.Backend, apiKey string) *serverFixture {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "stub-id"})
	})
	graph := httptest.NewServer(mux)
	t.Cleanup(graph.Close)

	db, err := bolt.Open(filepath.Join(t.TempDir(), "api.db"), 0600, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	creds, err := credstore.NewBoltStoreWithDB(db)
	if err != nil {
		t.Fatalf("credstore: %v", err)
	}
	clog, err := contentlog.NewBoltLog(db)
	if err != nil {
		t.Fatalf("contentlog: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	gen := generator.New(backend, generator.Config{BaseDelay: time.Millisecond, MaxAttempts: 2}, nil, nil, nil, logger)

	adapters := platform.NewRegistry(
		platform.NewFacebookAdapter(graph.URL, 0, logger),
		platform.NewInstagramAdapter(graph.URL, 0, logger),
		platform.NewLinkedInAdapter(graph.URL, 0, logger),
	)
	pub := publisher.New(adapters, publisher.Config{AttemptTimeout: 2 * time.Second}, clog, nil, nil, logger)
	builder := campaign.NewBuilder(campaign.NewAPIClient(graph.URL, 0), nil, logger)

	cfg := &config.APIConfig{ListenAddr: ":0", APIKey: apiKey}
	srv := NewServer(gen, pub, builder, creds, clog, cfg, logger)

	return &serverFixture{server: srv, creds: creds, log: clog, graph: graph}
}

func (f *serverFixture) request(t *testing.T, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthNoAuth(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "ok"}, "secret")

	rec := f.request(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 without auth", rec.Code)
	}
	resp := decode[HealthResponse](t, rec)
	if resp.Status != "ok" {
		t.Errorf("status field = %q", resp.Status)
	}
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "ok"}, "secret")

	rec := f.request(t, http.MethodPost, "/api/v1/generate", GenerateRequest{Prompt: "x"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without key", rec.Code)
	}

	rec = f.request(t, http.MethodPost, "/api/v1/generate", GenerateRequest{Prompt: "x"}, "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 with wrong key", rec.Code)
	}
}

func TestAuthXAPIKeyHeader(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "generated copy"}, "secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewBufferString(`{"prompt":"coffee"}`))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 via X-API-Key", rec.Code)
	}
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "**Great** coffee"}, "secret")

	rec := f.request(t, http.MethodPost, "/api/v1/generate", GenerateRequest{Prompt: "coffee shop", Category: "food"}, "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[GenerateResponse](t, rec)
	if resp.Text != "Great coffee" {
		t.Errorf("Text = %q, want sanitized output", resp.Text)
	}
	if resp.ImageDescription == "" || resp.ImageURL == "" {
		t.Errorf("resp = %+v, want description and url", resp)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "x"}, "secret")

	rec := f.request(t, http.MethodPost, "/api/v1/generate", GenerateRequest{Prompt: ""}, "secret")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Kind != platform.KindInvalidInput {
		t.Errorf("kind = %s", resp.Kind)
	}
}

func TestGenerateQuotaMapsTo429(t *testing.T) {
	f := newFixture(t, &scriptedBackend{err: errors.New("429 RESOURCE_EXHAUSTED: quota exceeded")}, "secret")

	rec := f.request(t, http.MethodPost, "/api/v1/generate", GenerateRequest{Prompt: "coffee"}, "secret")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestPublishReportsPerPlatform(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "x"}, "secret")

	// Only a LinkedIn credential: the other targets must be reported as
	// skipped, and the call still returns 200.
	err := f.creds.Put("u1", platform.Credential{Platform: platform.LinkedIn, AccessToken: "tok"})
	if err != nil {
		t.Fatalf("put credential: %v", err)
	}

	rec := f.request(t, http.MethodPost, "/api/v1/publish", PublishRequest{UserID: "u1", Text: "hello"}, "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[PublishResponse](t, rec)
	if len(resp.Results) != 3 {
		t.Fatalf("results = %d, want one per target", len(resp.Results))
	}
	if res := resp.Results[platform.Facebook]; res.ErrorKind != platform.KindNoCredential {
		t.Errorf("facebook = %+v, want no_credential", res)
	}
	if res := resp.Results[platform.Instagram]; res.ErrorKind != platform.KindNoCredential {
		t.Errorf("instagram = %+v, want no_credential", res)
	}
}

func TestPublishValidation(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "x"}, "secret")

	rec := f.request(t, http.MethodPost, "/api/v1/publish", PublishRequest{Text: "hello"}, "secret")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing user_id", rec.Code)
	}

	rec = f.request(t, http.MethodPost, "/api/v1/publish", PublishRequest{UserID: "u1"}, "secret")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing text", rec.Code)
	}
}

func TestCampaignInvalidTargeting(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "x"}, "secret")

	err := f.creds.Put("u1", platform.Credential{
		Platform:    platform.FacebookAds,
		AccessToken: "tok",
		IDs:         map[string]string{platform.IDAdAccount: "900"},
	})
	if err != nil {
		t.Fatalf("put credential: %v", err)
	}

	req := CampaignRequest{UserID: "u1", Params: campaign.Params{
		Name:      "Bad",
		Countries: []string{"Atlantis"},
		AgeMin:    18, AgeMax: 40,
		OptimizationGoal: "REACH", BillingEvent: "IMPRESSIONS",
	}}
	rec := f.request(t, http.MethodPost, "/api/v1/campaigns", req, "secret")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[CampaignResponse](t, rec)
	if resp.State == nil {
		t.Fatal("state missing from failure response")
	}
	if resp.Error == "" {
		t.Error("error message missing")
	}
	if resp.State.Stage != campaign.StageInit {
		t.Errorf("Stage = %s, want init", resp.State.Stage)
	}
}

func TestCampaignNoAdsCredential(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "x"}, "secret")

	req := CampaignRequest{UserID: "u1", Params: campaign.Params{Name: "x"}}
	rec := f.request(t, http.MethodPost, "/api/v1/campaigns", req, "secret")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Kind != platform.KindNoCredential {
		t.Errorf("kind = %s", resp.Kind)
	}
}

func TestCredentialLifecycle(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "x"}, "secret")

	cred := platform.Credential{
		AccessToken: "tok-123",
		IDs:         map[string]string{platform.IDPage: "12345"},
	}
	rec := f.request(t, http.MethodPut, "/api/v1/credentials/u1/facebook", cred, "secret")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = f.request(t, http.MethodGet, "/api/v1/credentials/u1", nil, "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	body := rec.Body.String()
	summaries := decode[[]CredentialSummary](t, rec)
	if len(summaries) != 1 {
		t.Fatalf("len(summaries) = %d, want 1", len(summaries))
	}
	if summaries[0].Platform != platform.Facebook {
		t.Errorf("platform = %s", summaries[0].Platform)
	}
	if strings.Contains(body, "tok-123") {
		t.Error("access token leaked in listing")
	}

	rec = f.request(t, http.MethodDelete, "/api/v1/credentials/u1/facebook", nil, "secret")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}

	rec = f.request(t, http.MethodGet, "/api/v1/credentials/u1", nil, "secret")
	if got := decode[[]CredentialSummary](t, rec); len(got) != 0 {
		t.Errorf("len after delete = %d, want 0", len(got))
	}
}

func TestPutCredentialValidation(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "x"}, "secret")

	rec := f.request(t, http.MethodPut, "/api/v1/credentials/u1/myspace",
		platform.Credential{AccessToken: "x"}, "secret")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown platform", rec.Code)
	}

	rec = f.request(t, http.MethodPut, "/api/v1/credentials/u1/facebook",
		platform.Credential{}, "secret")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing token", rec.Code)
	}
}

func TestListContent(t *testing.T) {
	f := newFixture(t, &scriptedBackend{text: "x"}, "secret")

	for i := 0; i < 3; i++ {
		err := f.log.Append("u1", contentlog.Entry{Content: "post", Status: "published"})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rec := f.request(t, http.MethodGet, "/api/v1/content/u1?limit=2", nil, "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	entries := decode[[]contentlog.Entry](t, rec)
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want limit applied", len(entries))
	}
}
