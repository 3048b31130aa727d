package platform

import (
	"time"
)

// Platform identifies a social network integration
type Platform string

const (
	Facebook    Platform = "facebook"
	Instagram   Platform = "instagram"
	LinkedIn    Platform = "linkedin"
	FacebookAds Platform = "facebook_ads"
)

// PublishTargets returns the platforms that accept organic posts.
// FacebookAds is a credential namespace only, never a publish target.
func PublishTargets() []Platform {
	return []Platform{Facebook, Instagram, LinkedIn}
}

// Valid reports whether p is a known platform
func (p Platform) Valid() bool {
	switch p {
	case Facebook, Instagram, LinkedIn, FacebookAds:
		return true
	}
	return false
}

// Well-known keys in Credential.IDs
const (
	IDPage          = "page_id"
	IDPageName      = "page_name"
	IDInstagramUser = "instagram_user_id"
	IDAdAccount     = "ad_account_id"
	IDOrganization  = "organization_id"
	IDPerson        = "person_id"
)

// Credential is an opaque, platform-scoped access token plus the account
// identifiers resolved for it. Credentials are replaced wholesale on
// re-authorization, never mutated in place.
type Credential struct {
	Platform        Platform          `json:"platform"`
	AccessToken     string            `json:"access_token"`
	IDs             map[string]string `json:"ids,omitempty"`
	IssuedAt        time.Time         `json:"issued_at"`
	LastValidatedAt time.Time         `json:"last_validated_at,omitempty"`
}

// ID returns a platform identifier by key, or "" if absent
func (c Credential) ID(key string) string {
	if c.IDs == nil {
		return ""
	}
	return c.IDs[key]
}

// Asset is a generated piece of content. Immutable once produced;
// publish and campaign flows consume it read-only.
type Asset struct {
	Text         string `json:"text"`
	ImageURL     string `json:"image_url,omitempty"`
	SourcePrompt string `json:"source_prompt,omitempty"`
}

// MediaFile is a raw media attachment supplied by the caller
type MediaFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// AccountInfo is the result of credential validation
type AccountInfo struct {
	ID   string
	Name string

	// PageToken is the page-scoped token resolved during Facebook
	// validation. Publish calls must use it instead of the raw input
	// token once set.
	PageToken string

	// Warning carries a non-fatal validation finding (e.g. a missing
	// permission flag that did not block direct resource access).
	Warning string
}

// PublishResult is the per-platform outcome of one publish attempt
type PublishResult struct {
	Platform  Platform  `json:"platform"`
	Success   bool      `json:"success"`
	RemoteID  string    `json:"remote_id,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Metrics holds engagement counters for a published post. A zero value
// with Degraded set is the documented outcome of a failed fetch: metrics
// are best-effort and never block reporting.
type Metrics struct {
	Impressions int64 `json:"impressions"`
	Reach       int64 `json:"reach"`
	Likes       int64 `json:"likes"`
	Comments    int64 `json:"comments"`
	Shares      int64 `json:"shares"`
	Clicks      int64 `json:"clicks"`

	// Estimated marks counters derived from a heuristic rather than
	// measured by the platform (LinkedIn has no impressions API).
	Estimated bool `json:"estimated,omitempty"`

	// Degraded marks a zeroed record returned after a fetch failure.
	Degraded bool `json:"degraded,omitempty"`
}
