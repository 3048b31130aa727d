package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/YuvaAi/promoforge/internal/platform"
)

// APIClient issues Marketing API requests against one ad account.
// Every call authenticates with the credential's token; the client
// itself holds no secrets.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a Marketing API client. baseURL points at the
// Graph API root and is overridable for tests.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *APIClient) do(req *http.Request, result any) error {
	resp, err := c.client.Do(req)
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
			return platform.ClassifyRemote(platform.FacebookAds, resp.StatusCode, ge.Error.Message)
		}
		return platform.ClassifyRemote(platform.FacebookAds, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *APIClient) postForm(ctx context.Context, path string, form url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, result)
}

func (c *APIClient) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

type idResponse struct {
	ID string `json:"id"`
}

// adAccount extracts the credential's ad account id. Every account
// endpoint needs it; a missing id would otherwise hit /act_/... and
// come back as an opaque remote error.
func adAccount(cred platform.Credential) (string, error) {
	acct := cred.ID(platform.IDAdAccount)
	if acct == "" {
		return "", platform.NewError(platform.FacebookAds, platform.KindInvalidInput, "credential has no ad account id")
	}
	return acct, nil
}

// CreateCampaign submits a campaign shell and returns its id
func (c *APIClient) CreateCampaign(ctx context.Context, cred platform.Credential, name, objective, status string) (string, error) {
	acct, err := adAccount(cred)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("name", name)
	form.Set("objective", objective)
	form.Set("status", status)
	form.Set("special_ad_categories", "[]")
	form.Set("access_token", cred.AccessToken)

	var resp idResponse
	if err := c.postForm(ctx, "/act_"+acct+"/campaigns", form, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", platform.NewError(platform.FacebookAds, platform.KindPlatform, "campaign response has no id")
	}
	return resp.ID, nil
}

// CampaignInfo is the verification fetch result
type CampaignInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// GetCampaign re-fetches a campaign by id, confirming it exists and is
// accessible under the current credential
func (c *APIClient) GetCampaign(ctx context.Context, cred platform.Credential, campaignID string) (*CampaignInfo, error) {
	var info CampaignInfo
	path := fmt.Sprintf("/%s?fields=id,name,status&access_token=%s", campaignID, url.QueryEscape(cred.AccessToken))
	if err := c.getJSON(ctx, path, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, platform.NewError(platform.FacebookAds, platform.KindPlatform,
			"campaign %s fetch returned no id", campaignID)
	}
	return &info, nil
}

// AdSetRequest carries the ad set parameters in platform shape
type AdSetRequest struct {
	Name             string
	CampaignID       string
	DailyBudgetCents int64
	OptimizationGoal string
	BillingEvent     string
	Countries        []string
	AgeMin           int
	AgeMax           int
	StartTime        time.Time
	EndTime          time.Time
	Status           string
}

// CreateAdSet submits an ad set and returns its id. The budget is
// already in integer minor-currency units.
func (c *APIClient) CreateAdSet(ctx context.Context, cred platform.Credential, r AdSetRequest) (string, error) {
	acct, err := adAccount(cred)
	if err != nil {
		return "", err
	}

	targeting, err := json.Marshal(map[string]any{
		"geo_locations": map[string]any{"countries": r.Countries},
		"age_min":       r.AgeMin,
		"age_max":       r.AgeMax,
	})
	if err != nil {
		return "", fmt.Errorf("marshal targeting: %w", err)
	}

	form := url.Values{}
	form.Set("name", r.Name)
	form.Set("campaign_id", r.CampaignID)
	form.Set("daily_budget", fmt.Sprintf("%d", r.DailyBudgetCents))
	form.Set("optimization_goal", r.OptimizationGoal)
	form.Set("billing_event", r.BillingEvent)
	form.Set("targeting", string(targeting))
	form.Set("status", r.Status)
	form.Set("access_token", cred.AccessToken)
	if !r.StartTime.IsZero() {
		form.Set("start_time", r.StartTime.UTC().Format(time.RFC3339))
	}
	if !r.EndTime.IsZero() {
		form.Set("end_time", r.EndTime.UTC().Format(time.RFC3339))
	}

	var resp idResponse
	if err := c.postForm(ctx, "/act_"+acct+"/adsets", form, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", platform.NewError(platform.FacebookAds, platform.KindPlatform, "ad set response has no id")
	}
	return resp.ID, nil
}

// UploadImage uploads a local image to the ad-image hosting endpoint
// and returns the content hash the creative must reference. The
// platform has shipped the hash under several response shapes, so
// alternates are searched before giving up with UploadIncomplete.
func (c *APIClient) UploadImage(ctx context.Context, cred platform.Credential, filename string, data []byte) (string, error) {
	acct, err := adAccount(cred)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("access_token", cred.AccessToken); err != nil {
		return "", fmt.Errorf("write field: %w", err)
	}
	part, err := w.CreateFormFile("filename", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/act_"+acct+"/adimages", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var raw map[string]json.RawMessage
	if err := c.do(req, &raw); err != nil {
		return "", err
	}

	hash := extractImageHash(raw)
	if hash == "" {
		return "", platform.NewError(platform.FacebookAds, platform.KindUploadIncomplete,
			"image upload response has no hash field")
	}
	return hash, nil
}

// extractImageHash searches the known response shapes for the image
// hash: the images map keyed by filename, then top-level hash fields
func extractImageHash(raw map[string]json.RawMessage) string {
	if imagesRaw, ok := raw["images"]; ok {
		var images map[string]struct {
			Hash string `json:"hash"`
		}
		if json.Unmarshal(imagesRaw, &images) == nil {
			for _, img := range images {
				if img.Hash != "" {
					return img.Hash
				}
			}
		}
	}
	for _, field := range []string{"hash", "image_hash"} {
		if hashRaw, ok := raw[field]; ok {
			var hash string
			if json.Unmarshal(hashRaw, &hash) == nil && hash != "" {
				return hash
			}
		}
	}
	return ""
}

// CreativeRequest carries the creative parameters
type CreativeRequest struct {
	Name      string
	PageID    string
	Message   string
	LinkURL   string
	ImageHash string
	ImageURL  string

	// ObjectStoryID reuses an existing page post instead of building
	// link data (boost-post flow)
	ObjectStoryID string
}

// CreateCreative submits an ad creative and returns its id
func (c *APIClient) CreateCreative(ctx context.Context, cred platform.Credential, r CreativeRequest) (string, error) {
	acct, err := adAccount(cred)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("name", r.Name)
	form.Set("access_token", cred.AccessToken)

	if r.ObjectStoryID != "" {
		form.Set("object_story_id", r.ObjectStoryID)
	} else {
		linkData := map[string]any{
			"message": r.Message,
			"link":    r.LinkURL,
		}
		if r.ImageHash != "" {
			linkData["image_hash"] = r.ImageHash
		} else if r.ImageURL != "" {
			linkData["picture"] = r.ImageURL
		}
		spec, err := json.Marshal(map[string]any{
			"page_id":   r.PageID,
			"link_data": linkData,
		})
		if err != nil {
			return "", fmt.Errorf("marshal story spec: %w", err)
		}
		form.Set("object_story_spec", string(spec))
	}

	var resp idResponse
	if err := c.postForm(ctx, "/act_"+acct+"/adcreatives", form, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", platform.NewError(platform.FacebookAds, platform.KindPlatform, "creative response has no id")
	}
	return resp.ID, nil
}

// CreateAd binds a creative to an ad set and returns the ad id
func (c *APIClient) CreateAd(ctx context.Context, cred platform.Credential, name, adSetID, creativeID, status string) (string, error) {
	acct, err := adAccount(cred)
	if err != nil {
		return "", err
	}

	creative, err := json.Marshal(map[string]string{"creative_id": creativeID})
	if err != nil {
		return "", fmt.Errorf("marshal creative ref: %w", err)
	}

	form := url.Values{}
	form.Set("name", name)
	form.Set("adset_id", adSetID)
	form.Set("creative", string(creative))
	form.Set("status", status)
	form.Set("access_token", cred.AccessToken)

	var resp idResponse
	if err := c.postForm(ctx, "/act_"+acct+"/ads", form, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", platform.NewError(platform.FacebookAds, platform.KindPlatform, "ad response has no id")
	}
	return resp.ID, nil
}
