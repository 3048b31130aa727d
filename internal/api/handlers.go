package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/YuvaAi/promoforge/internal/campaign"
	"github.com/YuvaAi/promoforge/internal/platform"
)

// GenerateRequest is the request body for POST /generate
type GenerateRequest struct {
	Prompt   string `json:"prompt"`
	Category string `json:"category,omitempty"`
}

// GenerateResponse is the response for POST /generate
type GenerateResponse struct {
	Text             string `json:"text"`
	ImageDescription string `json:"image_description"`
	ImageURL         string `json:"image_url"`
}

// PublishRequest is the request body for POST /publish
type PublishRequest struct {
	UserID    string   `json:"user_id"`
	Text      string   `json:"text"`
	ImageURL  string   `json:"image_url,omitempty"`
	Prompt    string   `json:"prompt,omitempty"`
	Platforms []string `json:"platforms,omitempty"` // empty = all with credentials
}

// PublishResponse is the response for POST /publish
type PublishResponse struct {
	Results map[platform.Platform]platform.PublishResult `json:"results"`
}

// CampaignRequest is the request body for POST /campaigns
type CampaignRequest struct {
	UserID string          `json:"user_id"`
	Params campaign.Params `json:"params"`
}

// ResumeCampaignRequest is the request body for POST /campaigns/resume
type ResumeCampaignRequest struct {
	UserID string          `json:"user_id"`
	State  campaign.State  `json:"state"`
	Params campaign.Params `json:"params"`
}

// CampaignResponse is the response for campaign build calls
type CampaignResponse struct {
	State *campaign.State `json:"state"`
	Error string          `json:"error,omitempty"`
}

// CredentialSummary is a credential with the token redacted
type CredentialSummary struct {
	Platform        platform.Platform `json:"platform"`
	IDs             map[string]string `json:"ids,omitempty"`
	IssuedAt        time.Time         `json:"issued_at"`
	LastValidatedAt time.Time         `json:"last_validated_at,omitempty"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string             `json:"error"`
	Kind  platform.ErrorKind `json:"kind,omitempty"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleGenerate handles POST /api/v1/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	text, err := s.generator.GenerateText(r.Context(), req.Prompt, req.Category)
	if err != nil {
		s.sendGeneratorError(w, err)
		return
	}

	desc, err := s.generator.GenerateImageDescription(r.Context(), req.Prompt, req.Category)
	if err != nil {
		s.sendGeneratorError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, GenerateResponse{
		Text:             text,
		ImageDescription: desc,
		ImageURL:         s.generator.ResolveImageURL(desc),
	})
}

// handlePublish handles POST /api/v1/publish
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.UserID == "" {
		s.sendError(w, http.StatusBadRequest, "user_id is required", "")
		return
	}
	if req.Text == "" {
		s.sendError(w, http.StatusBadRequest, "text is required", platform.KindInvalidInput)
		return
	}

	creds, err := s.creds.GetAll(req.UserID)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "credential lookup failed", "")
		return
	}
	if len(req.Platforms) > 0 {
		creds = filterCredentials(creds, req.Platforms)
	}

	asset := platform.Asset{Text: req.Text, ImageURL: req.ImageURL, SourcePrompt: req.Prompt}
	results := s.publisher.PublishToAll(r.Context(), req.UserID, asset, nil, creds)

	// Partial failure is the expected common case: the call itself
	// always succeeds and reports per-platform outcomes.
	s.sendJSON(w, http.StatusOK, PublishResponse{Results: results})
}

func filterCredentials(creds map[platform.Platform]platform.Credential, names []string) map[platform.Platform]platform.Credential {
	keep := make(map[platform.Platform]bool, len(names))
	for _, n := range names {
		keep[platform.Platform(n)] = true
	}
	// The ads credential rides along for the auto-boost side effect
	keep[platform.FacebookAds] = true

	filtered := make(map[platform.Platform]platform.Credential)
	for p, c := range creds {
		if keep[p] {
			filtered[p] = c
		}
	}
	return filtered
}

// handleCreateCampaign handles POST /api/v1/campaigns
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	state := campaign.NewState(uuid.New().String())
	s.runCampaignBuild(w, r, req.UserID, state, req.Params)
}

// handleResumeCampaign handles POST /api/v1/campaigns/resume. The
// caller supplies known stage ids; verified stages are never re-created.
func (s *Server) handleResumeCampaign(w http.ResponseWriter, r *http.Request) {
	var req ResumeCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	state := req.State
	if state.ID == "" {
		state.ID = uuid.New().String()
	}
	state.Sync()
	s.runCampaignBuild(w, r, req.UserID, &state, req.Params)
}

func (s *Server) runCampaignBuild(w http.ResponseWriter, r *http.Request, userID string, state *campaign.State, params campaign.Params) {
	if userID == "" {
		s.sendError(w, http.StatusBadRequest, "user_id is required", "")
		return
	}

	cred, err := s.creds.Get(userID, platform.FacebookAds)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "credential lookup failed", "")
		return
	}
	if cred == nil {
		s.sendError(w, http.StatusBadRequest, "no ads credential configured", platform.KindNoCredential)
		return
	}

	if err := s.builder.Build(r.Context(), state, *cred, params); err != nil {
		var se *campaign.StageError
		status := http.StatusBadGateway
		if errors.As(err, &se) {
			switch se.Kind {
			case platform.KindInvalidTargeting, platform.KindInvalidConfiguration, platform.KindInvalidInput:
				status = http.StatusUnprocessableEntity
			case platform.KindAuth:
				status = http.StatusUnauthorized
			}
		}
		// The state travels with the error so the caller can resume
		// rather than restart.
		s.sendJSON(w, status, CampaignResponse{State: state, Error: err.Error()})
		return
	}

	s.sendJSON(w, http.StatusOK, CampaignResponse{State: state})
}

// handlePutCredential handles PUT /api/v1/credentials/{userID}/{platform}
func (s *Server) handlePutCredential(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	p := platform.Platform(chi.URLParam(r, "platform"))
	if !p.Valid() {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("unknown platform: %s", p), "")
		return
	}

	var cred platform.Credential
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if cred.AccessToken == "" {
		s.sendError(w, http.StatusBadRequest, "access_token is required", "")
		return
	}
	cred.Platform = p

	if err := s.creds.Put(userID, cred); err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to store credential", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListCredentials handles GET /api/v1/credentials/{userID}
func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	creds, err := s.creds.GetAll(userID)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "credential lookup failed", "")
		return
	}

	summaries := make([]CredentialSummary, 0, len(creds))
	for _, c := range creds {
		summaries = append(summaries, CredentialSummary{
			Platform:        c.Platform,
			IDs:             c.IDs,
			IssuedAt:        c.IssuedAt,
			LastValidatedAt: c.LastValidatedAt,
		})
	}
	s.sendJSON(w, http.StatusOK, summaries)
}

// handleDeleteCredential handles DELETE /api/v1/credentials/{userID}/{platform}
func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	p := platform.Platform(chi.URLParam(r, "platform"))

	if err := s.creds.Delete(userID, p); err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to delete credential", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListContent handles GET /api/v1/content/{userID}
func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.log.List(userID, limit)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "content log lookup failed", "")
		return
	}
	s.sendJSON(w, http.StatusOK, entries)
}

// handleFetchMetrics handles GET /api/v1/metrics/{userID}/{platform}/{remoteID}
func (s *Server) handleFetchMetrics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	p := platform.Platform(chi.URLParam(r, "platform"))
	remoteID := chi.URLParam(r, "remoteID")

	cred, err := s.creds.Get(userID, p)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "credential lookup failed", "")
		return
	}
	if cred == nil {
		s.sendError(w, http.StatusBadRequest, "no credential configured", platform.KindNoCredential)
		return
	}

	m, ok := s.publisher.FetchMetrics(r.Context(), p, remoteID, *cred)
	if !ok {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("no adapter for platform: %s", p), "")
		return
	}
	s.sendJSON(w, http.StatusOK, m)
}

// sendGeneratorError maps a generation failure to an HTTP status
func (s *Server) sendGeneratorError(w http.ResponseWriter, err error) {
	kind := platform.KindOf(err)
	status := http.StatusBadGateway
	switch kind {
	case platform.KindInvalidInput:
		status = http.StatusBadRequest
	case platform.KindQuotaExceeded:
		status = http.StatusTooManyRequests
	case platform.KindOverloaded:
		status = http.StatusServiceUnavailable
	}
	s.sendError(w, status, err.Error(), kind)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, msg string, kind platform.ErrorKind) {
	s.sendJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}
