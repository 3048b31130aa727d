package campaign

import (
	"fmt"
	"time"

	"github.com/YuvaAi/promoforge/internal/platform"
)

// Stage names the last completed step of a campaign build
type Stage string

const (
	StageInit            Stage = "init"
	StageCampaignCreated Stage = "campaign_created"
	StageAdSetCreated    Stage = "adset_created"
	StageCreativeCreated Stage = "creative_created"
	StageAdCreated       Stage = "ad_created"
)

// State tracks the externally-assigned ids of a campaign build. A
// later-stage id is never set unless every earlier-stage id is set and
// was verified. A caller resumes a partial build by supplying the known
// ids; verified stages are never re-created.
type State struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id,omitempty"`
	AdSetID    string `json:"adset_id,omitempty"`
	CreativeID string `json:"creative_id,omitempty"`
	AdID       string `json:"ad_id,omitempty"`
	Stage      Stage  `json:"stage"`

	// FailedStage is set when a build attempt terminated; Stage keeps
	// the last completed stage so the caller can resume, not restart.
	FailedStage Stage     `json:"failed_stage,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewState creates a fresh build state
func NewState(id string) *State {
	return &State{ID: id, Stage: StageInit, UpdatedAt: time.Now()}
}

// Sync derives Stage from the ids present, for states reconstructed by
// a resuming caller
func (s *State) Sync() {
	switch {
	case s.AdID != "":
		s.Stage = StageAdCreated
	case s.CreativeID != "":
		s.Stage = StageCreativeCreated
	case s.AdSetID != "":
		s.Stage = StageAdSetCreated
	case s.CampaignID != "":
		s.Stage = StageCampaignCreated
	default:
		s.Stage = StageInit
	}
}

// Done reports whether the build reached its terminal success stage
func (s *State) Done() bool {
	return s.Stage == StageAdCreated
}

// LastVerifiedID returns the id of the last completed stage
func (s *State) LastVerifiedID() string {
	switch s.Stage {
	case StageAdCreated:
		return s.AdID
	case StageCreativeCreated:
		return s.CreativeID
	case StageAdSetCreated:
		return s.AdSetID
	case StageCampaignCreated:
		return s.CampaignID
	}
	return ""
}

// StageError reports which stage failed and the last verified id, so
// the caller can resume rather than restart. Remote resources created
// by earlier stages are left in place; cleanup is manual.
type StageError struct {
	Stage          Stage
	Kind           platform.ErrorKind
	LastVerifiedID string
	Err            error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("campaign build failed at %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// failStage records the failure on the state and wraps the cause
func failStage(s *State, at Stage, err error) *StageError {
	s.FailedStage = at
	s.LastError = err.Error()
	s.UpdatedAt = time.Now()
	return &StageError{
		Stage:          at,
		Kind:           platform.KindOf(err),
		LastVerifiedID: s.LastVerifiedID(),
		Err:            err,
	}
}
