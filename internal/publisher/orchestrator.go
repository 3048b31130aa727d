// Package publisher fans one publish action out across every platform
// the user holds a credential for. Platform attempts are independent:
// partial failure is the expected common case and the aggregate call
// never fails as a whole.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/YuvaAi/promoforge/internal/contentlog"
	"github.com/YuvaAi/promoforge/internal/metrics"
	"github.com/YuvaAi/promoforge/internal/platform"
)

const defaultAttemptTimeout = 60 * time.Second

// AdCreator is the best-effort hook that turns a successful Facebook
// post into a paid ad
type AdCreator interface {
	BoostPost(ctx context.Context, cred platform.Credential, postID, name string) (string, error)
}

// Orchestrator resolves credentials per platform and invokes adapters
// concurrently
type Orchestrator struct {
	adapters       platform.Registry
	log            contentlog.Log
	ads            AdCreator
	attemptTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// Config contains orchestrator tuning knobs
type Config struct {
	AttemptTimeout time.Duration
}

// New creates an orchestrator. The content log, ad creator and metrics
// are optional.
func New(adapters platform.Registry, cfg Config, log contentlog.Log, ads AdCreator, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	return &Orchestrator{
		adapters:       adapters,
		log:            log,
		ads:            ads,
		attemptTimeout: cfg.AttemptTimeout,
		metrics:        m,
		logger:         logger,
	}
}

// PublishToAll publishes the asset to every adapter platform with a
// present credential. Platforms without a credential are reported as
// NoCredential and never attempted. All attempts run concurrently with
// no shared mutable state; the result map is assembled only after every
// attempt finishes or times out. One result is always returned per
// platform.
func (o *Orchestrator) PublishToAll(ctx context.Context, userID string, asset platform.Asset, media []platform.MediaFile, creds map[platform.Platform]platform.Credential) map[platform.Platform]platform.PublishResult {
	results := make(map[platform.Platform]platform.PublishResult, len(o.adapters))

	type keyed struct {
		p   platform.Platform
		res platform.PublishResult
	}
	ch := make(chan keyed, len(o.adapters))

	var wg sync.WaitGroup
	attempted := 0
	for p, adapter := range o.adapters {
		cred, ok := creds[p]
		if !ok {
			results[p] = platform.PublishResult{
				Platform:  p,
				ErrorKind: platform.KindNoCredential,
				Message:   "no credential configured",
			}
			continue
		}

		attempted++
		wg.Add(1)
		go func(p platform.Platform, adapter platform.Adapter, cred platform.Credential) {
			defer wg.Done()
			ch <- keyed{p: p, res: o.attempt(ctx, p, adapter, asset, cred, media)}
		}(p, adapter, cred)
	}

	wg.Wait()
	close(ch)
	for k := range ch {
		results[k.p] = k.res
	}

	o.boostFacebookPost(ctx, results, creds, asset)

	for _, res := range results {
		o.appendLog(userID, asset, res)
	}

	o.logger.Info("publish fan-out complete",
		"user_id", userID,
		"attempted", attempted,
		"platforms", len(results),
	)
	return results
}

// FetchMetrics delegates a best-effort metrics fetch to the platform's
// adapter. The second return is false for platforms with no adapter.
func (o *Orchestrator) FetchMetrics(ctx context.Context, p platform.Platform, remoteID string, cred platform.Credential) (platform.Metrics, bool) {
	adapter, ok := o.adapters[p]
	if !ok {
		return platform.Metrics{}, false
	}
	return adapter.FetchMetrics(ctx, remoteID, cred), true
}

// attempt runs one adapter publish under the per-platform timeout
func (o *Orchestrator) attempt(ctx context.Context, p platform.Platform, adapter platform.Adapter, asset platform.Asset, cred platform.Credential, media []platform.MediaFile) platform.PublishResult {
	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	start := time.Now()
	remoteID, err := adapter.Publish(attemptCtx, asset, cred, media)
	elapsed := time.Since(start)

	if err != nil {
		kind := platform.KindOf(err)
		// A parent cancellation shows up as a deadline on the child;
		// report it as cancelled, not a per-platform timeout.
		if ctx.Err() == context.Canceled {
			kind = platform.KindCancelled
		}
		o.metrics.ObservePublish(string(p), string(kind), elapsed.Seconds())
		o.logger.Warn("platform publish failed",
			"platform", p, "kind", kind, "error", err)
		return platform.PublishResult{
			Platform:  p,
			ErrorKind: kind,
			Message:   err.Error(),
		}
	}

	o.metrics.ObservePublish(string(p), "success", elapsed.Seconds())
	o.logger.Info("platform publish succeeded",
		"platform", p, "remote_id", remoteID, "duration", elapsed)
	return platform.PublishResult{
		Platform: p,
		Success:  true,
		RemoteID: remoteID,
		Message:  "published",
	}
}

// boostFacebookPost triggers the best-effort automatic ad when the
// Facebook publish succeeded and an ads credential exists. Its failure
// only annotates the Facebook result message; success is never flipped.
func (o *Orchestrator) boostFacebookPost(ctx context.Context, results map[platform.Platform]platform.PublishResult, creds map[platform.Platform]platform.Credential, asset platform.Asset) {
	if o.ads == nil {
		return
	}
	fbRes, ok := results[platform.Facebook]
	if !ok || !fbRes.Success {
		return
	}
	adsCred, ok := creds[platform.FacebookAds]
	if !ok {
		return
	}

	adID, err := o.ads.BoostPost(ctx, adsCred, fbRes.RemoteID, "Auto boost")
	if err != nil {
		fbRes.Message = fmt.Sprintf("published; automatic ad creation failed: %v", err)
		o.logger.Warn("automatic ad creation failed",
			"post_id", fbRes.RemoteID, "error", err)
	} else {
		fbRes.Message = fmt.Sprintf("published; automatic ad created: %s", adID)
		o.logger.Info("automatic ad created", "post_id", fbRes.RemoteID, "ad_id", adID)
	}
	results[platform.Facebook] = fbRes
}

// appendLog records the outcome in the content log, fire-and-forget
func (o *Orchestrator) appendLog(userID string, asset platform.Asset, res platform.PublishResult) {
	if o.log == nil {
		return
	}
	status := "failed"
	if res.Success {
		status = "published"
	} else if res.ErrorKind == platform.KindNoCredential {
		status = "skipped"
	}

	err := o.log.Append(userID, contentlog.Entry{
		Content:  asset.Text,
		ImageURL: asset.ImageURL,
		Prompt:   asset.SourcePrompt,
		Platform: res.Platform,
		Status:   status,
		RemoteID: res.RemoteID,
	})
	if err != nil {
		o.logger.Warn("content log append failed", "platform", res.Platform, "error", err)
	}
}
