package platform

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLinkedInPublishPersonalPost(t *testing.T) {
	var postBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(t, w, http.StatusOK, map[string]string{"sub": "abc123", "name": "Pat Doe"})
	})
	mux.HandleFunc("/v2/ugcPosts", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Restli-Protocol-Version"); got != "2.0.0" {
			t.Errorf("X-Restli-Protocol-Version = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&postBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		writeJSON(t, w, http.StatusCreated, map[string]string{"id": "urn:li:share:42"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewLinkedInAdapter(srv.URL, 0, slog.New(slog.DiscardHandler))
	id, err := a.Publish(context.Background(), Asset{Text: "Hello network"}, testCred(LinkedIn, nil), nil)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id != "urn:li:share:42" {
		t.Errorf("id = %q", id)
	}
	if got := postBody["author"]; got != "urn:li:person:abc123" {
		t.Errorf("author = %v", got)
	}
}

func TestLinkedInPublishOrganizationPost(t *testing.T) {
	var postBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/organizations/555", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"id": 555, "localizedName": "Acme Corp"})
	})
	mux.HandleFunc("/v2/ugcPosts", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&postBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		writeJSON(t, w, http.StatusCreated, map[string]string{"id": "urn:li:share:43"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewLinkedInAdapter(srv.URL, 0, slog.New(slog.DiscardHandler))
	cred := testCred(LinkedIn, map[string]string{IDOrganization: "555"})
	if _, err := a.Publish(context.Background(), Asset{Text: "Company news"}, cred, nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := postBody["author"]; got != "urn:li:organization:555" {
		t.Errorf("author = %v", got)
	}
}

func TestLinkedInPublishDropsMedia(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{"sub": "abc123", "name": "Pat Doe"})
	})
	mux.HandleFunc("/v2/ugcPosts", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		content := body["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
		if got := content["shareMediaCategory"]; got != "NONE" {
			t.Errorf("shareMediaCategory = %v, want NONE for degraded text post", got)
		}
		writeJSON(t, w, http.StatusCreated, map[string]string{"id": "urn:li:share:44"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewLinkedInAdapter(srv.URL, 0, slog.New(slog.DiscardHandler))
	asset := Asset{Text: "with image", ImageURL: "https://img.example/x.jpg"}
	id, err := a.Publish(context.Background(), asset, testCred(LinkedIn, nil), nil)
	if err != nil {
		t.Fatalf("Publish() error = %v, want degraded text-only success", err)
	}
	if id != "urn:li:share:44" {
		t.Errorf("id = %q", id)
	}
}

func TestLinkedInPublishAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]any{
			"message": "Invalid access token", "status": 401, "serviceErrorCode": 65600,
		})
	}))
	defer srv.Close()

	a := NewLinkedInAdapter(srv.URL, 0, slog.New(slog.DiscardHandler))
	_, err := a.Publish(context.Background(), Asset{Text: "Hello"}, testCred(LinkedIn, nil), nil)
	if kind := KindOf(err); kind != KindAuth {
		t.Errorf("kind = %s, want %s", kind, KindAuth)
	}
}

func TestLinkedInFetchMetricsEstimated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/socialActions/urn:li:share:42", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"likesSummary":    map[string]int64{"totalLikes": 7},
			"commentsSummary": map[string]int64{"aggregatedTotalComments": 3},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewLinkedInAdapter(srv.URL, 0, slog.New(slog.DiscardHandler))
	m := a.FetchMetrics(context.Background(), "urn:li:share:42", testCred(LinkedIn, nil))
	if !m.Estimated {
		t.Error("Estimated = false, want true: linkedin impressions are heuristic")
	}
	if m.Likes != 7 || m.Comments != 3 {
		t.Errorf("metrics = %+v", m)
	}
	want := int64((7 + 3) * linkedInReachMultiplier)
	if m.Impressions != want || m.Reach != want {
		t.Errorf("impressions/reach = %d/%d, want %d", m.Impressions, m.Reach, want)
	}
}

func TestLinkedInFetchMetricsDegradesOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "not found", "status": 404})
	}))
	defer srv.Close()

	a := NewLinkedInAdapter(srv.URL, 0, slog.New(slog.DiscardHandler))
	m := a.FetchMetrics(context.Background(), "urn:li:share:42", testCred(LinkedIn, nil))
	if !m.Degraded {
		t.Error("Degraded = false, want true")
	}
	if m.Impressions != 0 || m.Likes != 0 {
		t.Errorf("metrics not zeroed: %+v", m)
	}
}
