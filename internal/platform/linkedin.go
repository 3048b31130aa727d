package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// linkedInReachMultiplier converts raw engagement counts into an
// estimated impressions figure. LinkedIn exposes no impressions API for
// UGC posts; this is a heuristic with no platform-backed precision and
// the resulting metrics are tagged Estimated.
const linkedInReachMultiplier = 20

// LinkedInAdapter publishes text posts to a LinkedIn profile or
// organization page. Media upload is not supported and degrades to a
// text-only post with a logged warning.
type LinkedInAdapter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewLinkedInAdapter creates a LinkedIn adapter
func NewLinkedInAdapter(baseURL string, timeout time.Duration, logger *slog.Logger) *LinkedInAdapter {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &LinkedInAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Platform returns LinkedIn
func (a *LinkedInAdapter) Platform() Platform { return LinkedIn }

// liError is the LinkedIn REST failure body
type liError struct {
	Message          string `json:"message"`
	Status           int    `json:"status"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
}

func (a *LinkedInAdapter) do(ctx context.Context, method, path string, token string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var le liError
		if json.Unmarshal(data, &le) == nil && le.Message != "" {
			return ClassifyRemote(LinkedIn, resp.StatusCode, le.Message)
		}
		return ClassifyRemote(LinkedIn, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type liUserInfo struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

type liOrganization struct {
	ID            json.Number `json:"id"`
	LocalizedName string      `json:"localizedName"`
}

// ValidateCredentials resolves the posting target. Organization
// credentials are checked against the organization endpoint, personal
// ones against the member userinfo endpoint.
func (a *LinkedInAdapter) ValidateCredentials(ctx context.Context, cred Credential) (*AccountInfo, error) {
	if orgID := cred.ID(IDOrganization); orgID != "" {
		var org liOrganization
		if err := a.do(ctx, http.MethodGet, "/v2/organizations/"+orgID, cred.AccessToken, nil, &org); err != nil {
			return nil, err
		}
		return &AccountInfo{ID: orgID, Name: org.LocalizedName}, nil
	}

	var user liUserInfo
	if err := a.do(ctx, http.MethodGet, "/v2/userinfo", cred.AccessToken, nil, &user); err != nil {
		return nil, err
	}
	return &AccountInfo{ID: user.Sub, Name: user.Name}, nil
}

// authorURN builds the UGC author URN for the credential target
func (a *LinkedInAdapter) authorURN(cred Credential, info *AccountInfo) string {
	if orgID := cred.ID(IDOrganization); orgID != "" {
		return "urn:li:organization:" + orgID
	}
	if personID := cred.ID(IDPerson); personID != "" {
		return "urn:li:person:" + personID
	}
	return "urn:li:person:" + info.ID
}

type liPostResponse struct {
	ID string `json:"id"`
}

// Publish creates a text UGC post. Supplied images or media files are
// dropped with a warning; LinkedIn media upload is out of scope.
func (a *LinkedInAdapter) Publish(ctx context.Context, asset Asset, cred Credential, media []MediaFile) (string, error) {
	info, err := a.ValidateCredentials(ctx, cred)
	if err != nil {
		return "", err
	}

	if asset.ImageURL != "" || len(media) > 0 {
		a.logger.Warn("linkedin media upload unsupported, publishing text only",
			"author", a.authorURN(cred, info))
	}

	body := map[string]any{
		"author":         a.authorURN(cred, info),
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]any{"text": asset.Text},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	var resp liPostResponse
	if err := a.do(ctx, http.MethodPost, "/v2/ugcPosts", cred.AccessToken, body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", NewError(LinkedIn, KindPlatform, "ugc post response has no id")
	}
	return resp.ID, nil
}

type liSocialActions struct {
	LikesSummary struct {
		TotalLikes int64 `json:"totalLikes"`
	} `json:"likesSummary"`
	CommentsSummary struct {
		AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
	} `json:"commentsSummary"`
}

// FetchMetrics reads social action counts and derives an estimated
// impressions figure from them. The estimate is tagged as such; any
// fetch failure degrades to a zeroed record.
func (a *LinkedInAdapter) FetchMetrics(ctx context.Context, remoteID string, cred Credential) Metrics {
	var actions liSocialActions
	if err := a.do(ctx, http.MethodGet, "/v2/socialActions/"+remoteID, cred.AccessToken, nil, &actions); err != nil {
		a.logger.Warn("linkedin social actions fetch failed", "post_id", remoteID, "error", err)
		return Metrics{Degraded: true, Estimated: true}
	}

	likes := actions.LikesSummary.TotalLikes
	comments := actions.CommentsSummary.AggregatedTotalComments
	engagement := likes + comments

	return Metrics{
		Impressions: engagement * linkedInReachMultiplier,
		Reach:       engagement * linkedInReachMultiplier,
		Likes:       likes,
		Comments:    comments,
		Estimated:   true,
	}
}
