package platform

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// FacebookAdapter publishes to a Facebook page via the Graph API
type FacebookAdapter struct {
	baseURL string
	doer    *httpDoer
	logger  *slog.Logger
}

// NewFacebookAdapter creates a Facebook adapter. baseURL points at the
// Graph API root and is overridable for tests.
func NewFacebookAdapter(baseURL string, timeout time.Duration, logger *slog.Logger) *FacebookAdapter {
	return &FacebookAdapter{
		baseURL: baseURL,
		doer:    newHTTPDoer(timeout),
		logger:  logger,
	}
}

// Platform returns Facebook
func (a *FacebookAdapter) Platform() Platform { return Facebook }

type fbPageInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

type fbAccountsResponse struct {
	Data []fbPageInfo `json:"data"`
}

// ValidateCredentials resolves the page-scoped token for the credential.
// The supplied token may be account-level or already page-scoped; the
// Graph API exposes no reliable way to tell them apart, so we probe with
// a direct page fetch and fall back to the account-pages listing with an
// id match, then a name match.
func (a *FacebookAdapter) ValidateCredentials(ctx context.Context, cred Credential) (*AccountInfo, error) {
	pageID := cred.ID(IDPage)
	if pageID == "" {
		return nil, NewError(Facebook, KindInvalidInput, "credential has no page id")
	}

	// Direct probe: succeeds when the token can read the page itself
	probeURL := fmt.Sprintf("%s/%s?fields=id,name,access_token&access_token=%s",
		a.baseURL, pageID, url.QueryEscape(cred.AccessToken))

	var page fbPageInfo
	probeErr := a.doer.getJSON(ctx, Facebook, probeURL, &page)
	if probeErr == nil {
		info := &AccountInfo{ID: page.ID, Name: page.Name, PageToken: cred.AccessToken}
		if page.AccessToken != "" {
			info.PageToken = page.AccessToken
		}
		return info, nil
	}

	a.logger.Debug("direct page fetch failed, trying account pages lookup",
		"page_id", pageID, "error", probeErr)

	accountsURL := fmt.Sprintf("%s/me/accounts?access_token=%s",
		a.baseURL, url.QueryEscape(cred.AccessToken))

	var accounts fbAccountsResponse
	if err := a.doer.getJSON(ctx, Facebook, accountsURL, &accounts); err != nil {
		return nil, err
	}

	for _, p := range accounts.Data {
		if p.ID == pageID {
			return &AccountInfo{ID: p.ID, Name: p.Name, PageToken: p.AccessToken}, nil
		}
	}

	// Last resort: match by configured page name
	if name := cred.ID(IDPageName); name != "" {
		for _, p := range accounts.Data {
			if p.Name == name {
				return &AccountInfo{ID: p.ID, Name: p.Name, PageToken: p.AccessToken}, nil
			}
		}
	}

	return nil, NewError(Facebook, KindPermission,
		"page %s not found among accounts managed by this token", pageID)
}

type fbPublishResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

// Publish posts to the page feed. Raw media files go through the photo
// upload endpoint, a hosted image URL becomes an image post, and plain
// text falls back to a feed post. Always uses the resolved page-scoped
// token, never the raw input token.
func (a *FacebookAdapter) Publish(ctx context.Context, asset Asset, cred Credential, media []MediaFile) (string, error) {
	info, err := a.ValidateCredentials(ctx, cred)
	if err != nil {
		return "", err
	}

	var resp fbPublishResponse
	switch {
	case len(media) > 0:
		err = a.uploadPhoto(ctx, info, asset.Text, media[0], &resp)
	case asset.ImageURL != "":
		form := url.Values{}
		form.Set("url", asset.ImageURL)
		form.Set("message", asset.Text)
		form.Set("access_token", info.PageToken)
		err = a.doer.postForm(ctx, Facebook, a.baseURL+"/"+info.ID+"/photos", form, &resp)
	default:
		form := url.Values{}
		form.Set("message", asset.Text)
		form.Set("access_token", info.PageToken)
		err = a.doer.postForm(ctx, Facebook, a.baseURL+"/"+info.ID+"/feed", form, &resp)
	}
	if err != nil {
		return "", err
	}

	// Photo uploads report the feed post id separately
	if resp.PostID != "" {
		return resp.PostID, nil
	}
	return resp.ID, nil
}

// uploadPhoto sends a raw media file through the multipart photo endpoint
func (a *FacebookAdapter) uploadPhoto(ctx context.Context, info *AccountInfo, caption string, file MediaFile, result any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("message", caption); err != nil {
		return fmt.Errorf("write field: %w", err)
	}
	if err := w.WriteField("access_token", info.PageToken); err != nil {
		return fmt.Errorf("write field: %w", err)
	}
	part, err := w.CreateFormFile("source", file.Name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+info.ID+"/photos", &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return a.doer.do(Facebook, req, result)
}

// FetchMetrics reads post insights. Any failure degrades to a zeroed
// record; metrics never block aggregate reporting.
func (a *FacebookAdapter) FetchMetrics(ctx context.Context, remoteID string, cred Credential) Metrics {
	insightsURL := fmt.Sprintf("%s/%s/insights?metric=post_impressions,post_impressions_unique,post_clicks,post_reactions_like_total&access_token=%s",
		a.baseURL, remoteID, url.QueryEscape(cred.AccessToken))

	var resp insightsResponse
	if err := a.doer.getJSON(ctx, Facebook, insightsURL, &resp); err != nil {
		a.logger.Warn("facebook insights fetch failed", "post_id", remoteID, "error", err)
		return Metrics{Degraded: true}
	}

	return Metrics{
		Impressions: resp.metricValue("post_impressions"),
		Reach:       resp.metricValue("post_impressions_unique"),
		Clicks:      resp.metricValue("post_clicks"),
		Likes:       resp.metricValue("post_reactions_like_total"),
	}
}
