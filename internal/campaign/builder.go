// Package campaign drives the stage-gated Campaign → Ad Set → Creative
// → Ad build against the ads platform. Each stage depends on an
// externally-assigned id from the previous one and is verified before
// the next stage runs; a partial build resumes at the first stage
// lacking an id.
package campaign

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/YuvaAi/promoforge/internal/metrics"
	"github.com/YuvaAi/promoforge/internal/platform"
)

// Params are the caller-supplied campaign parameters. Budget and
// bidding strategy values are submitted as given; strategy is the
// caller's concern.
type Params struct {
	Name             string    `json:"name"`
	Objective        string    `json:"objective"`
	Countries        []string  `json:"countries"`
	AgeMin           int       `json:"age_min"`
	AgeMax           int       `json:"age_max"`
	DailyBudget      float64   `json:"daily_budget"`
	StartTime        time.Time `json:"start_time,omitempty"`
	EndTime          time.Time `json:"end_time,omitempty"`
	Paused           bool      `json:"paused"`
	OptimizationGoal string    `json:"optimization_goal"`
	BillingEvent     string    `json:"billing_event"`
	Message          string    `json:"message"`
	LinkURL          string    `json:"link_url"`
	ImageURL         string    `json:"image_url,omitempty"`
	ImagePath        string    `json:"image_path,omitempty"`
	PageID           string    `json:"page_id"`
}

// Builder executes campaign builds. Stages run strictly sequentially;
// no two stages execute concurrently for the same campaign.
type Builder struct {
	client  *APIClient
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewBuilder creates a campaign builder. Metrics are optional.
func NewBuilder(client *APIClient, m *metrics.Metrics, logger *slog.Logger) *Builder {
	return &Builder{client: client, metrics: m, logger: logger}
}

// Build advances the state machine to completion, entering at the first
// stage whose id is missing. A stage whose id is already present is
// never re-created. On failure the state keeps its last completed
// stage and the returned StageError carries the failed stage and last
// verified id for resumption.
func (b *Builder) Build(ctx context.Context, state *State, cred platform.Credential, p Params) error {
	state.Sync()
	state.FailedStage = ""
	state.LastError = ""

	if state.CampaignID == "" {
		if err := b.createCampaign(ctx, state, cred, p); err != nil {
			return err
		}
	}
	if state.AdSetID == "" {
		if err := b.createAdSet(ctx, state, cred, p); err != nil {
			return err
		}
	}
	if state.CreativeID == "" {
		if err := b.createCreative(ctx, state, cred, p); err != nil {
			return err
		}
	}
	if state.AdID == "" {
		if err := b.createAd(ctx, state, cred, p); err != nil {
			return err
		}
	}
	return nil
}

// createCampaign handles Init → CampaignCreated. Country names are
// resolved to the platform vocabulary up front so an unknown country
// fails before anything is created remotely.
func (b *Builder) createCampaign(ctx context.Context, state *State, cred platform.Credential, p Params) error {
	codes, err := resolveCountries(p.Countries)
	if err != nil {
		return b.fail(state, StageCampaignCreated, err)
	}

	currency := CurrencyFor(codes[0])
	b.logger.Debug("campaign targeting resolved", "countries", codes, "currency", currency)

	id, err := b.client.CreateCampaign(ctx, cred, p.Name, p.Objective, statusValue(p.Paused))
	if err != nil {
		return b.fail(state, StageCampaignCreated, err)
	}

	state.CampaignID = id
	state.Stage = StageCampaignCreated
	state.UpdatedAt = time.Now()
	b.metrics.ObserveCampaignStage(string(StageCampaignCreated), "success")
	b.logger.Info("campaign created", "campaign_id", id, "name", p.Name)
	return nil
}

// createAdSet handles CampaignCreated → AdSetCreated. The campaign is
// re-fetched first: ad-set creation against a stale or foreign campaign
// id fails remotely with ambiguous error text, so a bad id is caught
// here instead. All targeting validation runs before any network call.
func (b *Builder) createAdSet(ctx context.Context, state *State, cred platform.Credential, p Params) error {
	if err := validateAgeRange(p.AgeMin, p.AgeMax); err != nil {
		return b.fail(state, StageAdSetCreated, err)
	}
	codes, err := resolveCountries(p.Countries)
	if err != nil {
		return b.fail(state, StageAdSetCreated, err)
	}
	if err := validateOptimization(p.OptimizationGoal, p.BillingEvent); err != nil {
		return b.fail(state, StageAdSetCreated, err)
	}

	if _, err := b.client.GetCampaign(ctx, cred, state.CampaignID); err != nil {
		return b.fail(state, StageAdSetCreated, err)
	}

	id, err := b.client.CreateAdSet(ctx, cred, AdSetRequest{
		Name:             p.Name + " - Ad Set",
		CampaignID:       state.CampaignID,
		DailyBudgetCents: toMinorUnits(p.DailyBudget),
		OptimizationGoal: p.OptimizationGoal,
		BillingEvent:     p.BillingEvent,
		Countries:        codes,
		AgeMin:           p.AgeMin,
		AgeMax:           p.AgeMax,
		StartTime:        p.StartTime,
		EndTime:          p.EndTime,
		Status:           statusValue(p.Paused),
	})
	if err != nil {
		return b.fail(state, StageAdSetCreated, err)
	}

	state.AdSetID = id
	state.Stage = StageAdSetCreated
	state.UpdatedAt = time.Now()
	b.metrics.ObserveCampaignStage(string(StageAdSetCreated), "success")
	b.logger.Info("ad set created", "adset_id", id, "campaign_id", state.CampaignID)
	return nil
}

// createCreative handles AdSetCreated → CreativeCreated. A local image
// must first go through the image-hosting endpoint to obtain a content
// hash; the creative endpoint never receives a raw file.
func (b *Builder) createCreative(ctx context.Context, state *State, cred platform.Credential, p Params) error {
	req := CreativeRequest{
		Name:     p.Name + " - Creative",
		PageID:   p.PageID,
		Message:  p.Message,
		LinkURL:  p.LinkURL,
		ImageURL: p.ImageURL,
	}

	if p.ImagePath != "" {
		data, err := os.ReadFile(p.ImagePath)
		if err != nil {
			return b.fail(state, StageCreativeCreated,
				platform.NewError(platform.FacebookAds, platform.KindInvalidInput,
					"read image file: %v", err))
		}
		hash, err := b.client.UploadImage(ctx, cred, filepath.Base(p.ImagePath), data)
		if err != nil {
			return b.fail(state, StageCreativeCreated, err)
		}
		req.ImageHash = hash
		req.ImageURL = ""
	}

	id, err := b.client.CreateCreative(ctx, cred, req)
	if err != nil {
		return b.fail(state, StageCreativeCreated, err)
	}

	state.CreativeID = id
	state.Stage = StageCreativeCreated
	state.UpdatedAt = time.Now()
	b.metrics.ObserveCampaignStage(string(StageCreativeCreated), "success")
	b.logger.Info("creative created", "creative_id", id, "adset_id", state.AdSetID)
	return nil
}

// createAd handles CreativeCreated → AdCreated. The remote acceptance
// response is the only verification needed at this stage.
func (b *Builder) createAd(ctx context.Context, state *State, cred platform.Credential, p Params) error {
	id, err := b.client.CreateAd(ctx, cred, p.Name+" - Ad", state.AdSetID, state.CreativeID, statusValue(p.Paused))
	if err != nil {
		return b.fail(state, StageAdCreated, err)
	}

	state.AdID = id
	state.Stage = StageAdCreated
	state.UpdatedAt = time.Now()
	b.metrics.ObserveCampaignStage(string(StageAdCreated), "success")
	b.logger.Info("ad created", "ad_id", id, "creative_id", state.CreativeID)
	return nil
}

// BoostPost builds a minimal paused campaign around an existing page
// post. Used by the publish flow as a best-effort follow-up to a
// successful Facebook post.
func (b *Builder) BoostPost(ctx context.Context, cred platform.Credential, postID, name string) (string, error) {
	state := NewState("boost-" + postID)
	p := Params{
		Name:             name,
		Objective:        "OUTCOME_ENGAGEMENT",
		Countries:        []string{"US"},
		AgeMin:           18,
		AgeMax:           65,
		DailyBudget:      5.00,
		Paused:           true,
		OptimizationGoal: "POST_ENGAGEMENT",
		BillingEvent:     "IMPRESSIONS",
	}

	if err := b.createCampaign(ctx, state, cred, p); err != nil {
		return "", err
	}
	if err := b.createAdSet(ctx, state, cred, p); err != nil {
		return "", err
	}

	creativeID, err := b.client.CreateCreative(ctx, cred, CreativeRequest{
		Name:          name + " - Creative",
		ObjectStoryID: postID,
	})
	if err != nil {
		return "", b.fail(state, StageCreativeCreated, err)
	}
	state.CreativeID = creativeID
	state.Stage = StageCreativeCreated
	b.metrics.ObserveCampaignStage(string(StageCreativeCreated), "success")

	if err := b.createAd(ctx, state, cred, p); err != nil {
		return "", err
	}
	return state.AdID, nil
}

// fail records the stage failure on the state and in metrics
func (b *Builder) fail(s *State, at Stage, err error) *StageError {
	b.metrics.ObserveCampaignStage(string(at), string(platform.KindOf(err)))
	return failStage(s, at, err)
}

// toMinorUnits rounds a user-facing decimal budget into integer
// minor-currency units
func toMinorUnits(budget float64) int64 {
	return int64(math.Round(budget * 100))
}

func statusValue(paused bool) string {
	if paused {
		return "PAUSED"
	}
	return "ACTIVE"
}
