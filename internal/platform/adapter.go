package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Adapter is the uniform capability surface of one platform integration.
// Implementations encapsulate that platform's request shapes and error
// vocabulary; adding a platform means adding an adapter, not editing
// dispatch sites.
type Adapter interface {
	// Platform returns the platform this adapter serves
	Platform() Platform

	// ValidateCredentials checks the credential against the platform and
	// resolves account info (including a page-scoped token where the
	// platform distinguishes token kinds).
	ValidateCredentials(ctx context.Context, cred Credential) (*AccountInfo, error)

	// Publish posts the asset and returns the externally-assigned id.
	// No retries happen inside an adapter call; a caller-level retry is
	// a fresh attempt.
	Publish(ctx context.Context, asset Asset, cred Credential, media []MediaFile) (string, error)

	// FetchMetrics returns engagement counters for a published post.
	// It never fails: on any error it returns a zeroed record with
	// Degraded set.
	FetchMetrics(ctx context.Context, remoteID string, cred Credential) Metrics
}

// Registry maps publish targets to their adapters
type Registry map[Platform]Adapter

// NewRegistry builds a registry from adapters, keyed by their platform
func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Platform()] = a
	}
	return r
}

// graphError is the nested error object in Graph API failure bodies
type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// httpDoer issues JSON-over-HTTPS requests shared by the Meta adapters
type httpDoer struct {
	client *http.Client
}

func newHTTPDoer(timeout time.Duration) *httpDoer {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &httpDoer{client: &http.Client{Timeout: timeout}}
}

// getJSON issues a GET and decodes the body into result. Non-2xx
// responses are classified from the Graph error message.
func (d *httpDoer) getJSON(ctx context.Context, p Platform, rawURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return d.do(p, req, result)
}

// postForm issues a form-encoded POST and decodes the body into result
func (d *httpDoer) postForm(ctx context.Context, p Platform, rawURL string, form url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return d.do(p, req, result)
}

func (d *httpDoer) do(p Platform, req *http.Request, result any) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge graphError
		if json.Unmarshal(body, &ge) == nil && ge.Error.Message != "" {
			return ClassifyRemote(p, resp.StatusCode, ge.Error.Message)
		}
		return ClassifyRemote(p, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// insightsResponse is the shared Graph insights shape used by Facebook
// and Instagram metric lookups
type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int64 `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

// metricValue returns the first value of a named metric, or 0
func (r *insightsResponse) metricValue(name string) int64 {
	for _, d := range r.Data {
		if d.Name == name && len(d.Values) > 0 {
			return d.Values[0].Value
		}
	}
	return 0
}
