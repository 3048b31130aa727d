package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// InstagramAdapter publishes to an Instagram business account via the
// Graph API. Publishing is two-phase: create a media container, then
// publish the container id.
type InstagramAdapter struct {
	baseURL string
	doer    *httpDoer
	logger  *slog.Logger
}

// NewInstagramAdapter creates an Instagram adapter
func NewInstagramAdapter(baseURL string, timeout time.Duration, logger *slog.Logger) *InstagramAdapter {
	return &InstagramAdapter{
		baseURL: baseURL,
		doer:    newHTTPDoer(timeout),
		logger:  logger,
	}
}

// Platform returns Instagram
func (a *InstagramAdapter) Platform() Platform { return Instagram }

type igUserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type igPermissionsResponse struct {
	Data []struct {
		Permission string `json:"permission"`
		Status     string `json:"status"`
	} `json:"data"`
}

// ValidateCredentials checks the publish permission flag and direct
// account access. A failed permission check alone produces a warning,
// not a hard failure: direct resource access is the authoritative probe.
func (a *InstagramAdapter) ValidateCredentials(ctx context.Context, cred Credential) (*AccountInfo, error) {
	igID := cred.ID(IDInstagramUser)
	if igID == "" {
		return nil, NewError(Instagram, KindInvalidInput, "credential has no instagram user id")
	}

	warning := ""
	permsURL := fmt.Sprintf("%s/me/permissions?access_token=%s", a.baseURL, url.QueryEscape(cred.AccessToken))
	var perms igPermissionsResponse
	if err := a.doer.getJSON(ctx, Instagram, permsURL, &perms); err != nil {
		warning = fmt.Sprintf("permission check failed: %v", err)
	} else if !hasGrantedPermission(perms, "instagram_content_publish") {
		warning = "instagram_content_publish permission not granted"
	}
	if warning != "" {
		a.logger.Warn("instagram permission check degraded", "ig_user_id", igID, "warning", warning)
	}

	userURL := fmt.Sprintf("%s/%s?fields=id,username&access_token=%s",
		a.baseURL, igID, url.QueryEscape(cred.AccessToken))
	var user igUserInfo
	if err := a.doer.getJSON(ctx, Instagram, userURL, &user); err != nil {
		return nil, err
	}

	return &AccountInfo{ID: user.ID, Name: user.Username, Warning: warning}, nil
}

func hasGrantedPermission(perms igPermissionsResponse, name string) bool {
	for _, p := range perms.Data {
		if p.Permission == name && p.Status == "granted" {
			return true
		}
	}
	return false
}

type igIDResponse struct {
	ID string `json:"id"`
}

// Publish creates a media container for the image and publishes it.
// Instagram has no text-only posts: a missing image is rejected before
// any network call. A container-creation failure never reaches the
// publish step.
func (a *InstagramAdapter) Publish(ctx context.Context, asset Asset, cred Credential, media []MediaFile) (string, error) {
	if asset.ImageURL == "" {
		if len(media) > 0 {
			// Container creation only accepts hosted URLs; raw bytes
			// would need an upload host we do not control.
			return "", NewError(Instagram, KindUnsupportedContent,
				"instagram requires a hosted image url, raw media is not supported")
		}
		return "", NewError(Instagram, KindUnsupportedContent,
			"instagram does not support text-only posts")
	}

	igID := cred.ID(IDInstagramUser)
	if igID == "" {
		return "", NewError(Instagram, KindInvalidInput, "credential has no instagram user id")
	}

	form := url.Values{}
	form.Set("image_url", asset.ImageURL)
	form.Set("caption", asset.Text)
	form.Set("access_token", cred.AccessToken)

	var container igIDResponse
	if err := a.doer.postForm(ctx, Instagram, a.baseURL+"/"+igID+"/media", form, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", NewError(Instagram, KindPlatform, "media container response has no id")
	}

	publishForm := url.Values{}
	publishForm.Set("creation_id", container.ID)
	publishForm.Set("access_token", cred.AccessToken)

	var published igIDResponse
	if err := a.doer.postForm(ctx, Instagram, a.baseURL+"/"+igID+"/media_publish", publishForm, &published); err != nil {
		return "", err
	}

	return published.ID, nil
}

// FetchMetrics reads media insights, degrading to a zeroed record on
// any failure
func (a *InstagramAdapter) FetchMetrics(ctx context.Context, remoteID string, cred Credential) Metrics {
	insightsURL := fmt.Sprintf("%s/%s/insights?metric=impressions,reach,likes,comments,shares&access_token=%s",
		a.baseURL, remoteID, url.QueryEscape(cred.AccessToken))

	var resp insightsResponse
	if err := a.doer.getJSON(ctx, Instagram, insightsURL, &resp); err != nil {
		a.logger.Warn("instagram insights fetch failed", "media_id", remoteID, "error", err)
		return Metrics{Degraded: true}
	}

	return Metrics{
		Impressions: resp.metricValue("impressions"),
		Reach:       resp.metricValue("reach"),
		Likes:       resp.metricValue("likes"),
		Comments:    resp.metricValue("comments"),
		Shares:      resp.metricValue("shares"),
	}
}
