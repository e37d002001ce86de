package summary

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/claimsight/claimsight/internal/domain/claims"
	"github.com/claimsight/claimsight/internal/platform/db"
)

// claimInsertedChannel is the feed of claim ids emitted by the insert trigger.
const claimInsertedChannel = "claim_inserted"

// UpdaterOptions tune the updater's startup and reconnect behavior.
type UpdaterOptions struct {
	// SkipBootstrap suppresses the O(n) full aggregation even when the
	// summary is missing. Operators of very large tables opt in to the
	// incremental path only and trigger rebuilds explicitly.
	SkipBootstrap bool
	RetryDelay    time.Duration
}

// Updater keeps the aggregate summary current. Lifecycle: one-shot legacy
// migration, then a conditional bootstrap, then the steady-state streaming
// loop folding insert events into the summary.
type Updater struct {
	store  Store
	claims claims.Repository
	logger zerolog.Logger
	opts   UpdaterOptions

	feed *db.Listener

	// bootstrapping collapses concurrent bootstrap triggers into one run.
	bootstrapping atomic.Bool
}

func NewUpdater(store Store, claimsRepo claims.Repository, pool *pgxpool.Pool, logger zerolog.Logger, opts UpdaterOptions) *Updater {
	u := &Updater{
		store:  store,
		claims: claimsRepo,
		logger: logger.With().Str("component", "summary-updater").Logger(),
		opts:   opts,
	}
	u.feed = db.NewListener(pool, claimInsertedChannel, opts.RetryDelay, u.onNotification, u.logger)
	return u
}

// FeedState exposes the underlying subscription state for health reporting.
func (u *Updater) FeedState() db.ListenerState { return u.feed.State() }

// Start runs the startup sequence and then blocks streaming the insert feed
// until ctx is cancelled. Startup failures are never fatal: transient store
// errors are retried with the feed's delay until the sequence completes or
// ctx is cancelled, so a connection blip at boot cannot disable the
// incremental path.
func (u *Updater) Start(ctx context.Context) {
	u.runStartup(ctx)
	u.feed.Run(ctx)
}

// runStartup retries the migrate/bootstrap sequence until it completes or
// ctx is cancelled.
func (u *Updater) runStartup(ctx context.Context) {
	for {
		err := u.startupOnce(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		u.logger.Warn().Err(err).Dur("retry_in", u.opts.RetryDelay).Msg("startup sequence failed, retrying")

		timer := time.NewTimer(u.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (u *Updater) startupOnce(ctx context.Context) error {
	migrated, err := u.store.MigrateLegacy(ctx)
	if err != nil {
		return fmt.Errorf("legacy migration: %w", err)
	}
	if migrated {
		u.logger.Info().Msg("migrated legacy summary shape")
	}

	needed, err := u.bootstrapNeeded(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap check: %w", err)
	}
	switch {
	case !needed:
	case u.opts.SkipBootstrap:
		u.logger.Warn().Msg("bootstrap needed but skipped by configuration")
	default:
		// A failed bootstrap does not hold up the stream; the summary is
		// rebuilt on the next explicit trigger.
		if err := u.Bootstrap(ctx); err != nil {
			u.logger.Error().Err(err).Msg("bootstrap failed")
		}
	}
	return nil
}

// bootstrapNeeded is true when the summary singleton is absent or the facet
// counters are empty; either means the incremental path has nothing sound to
// build on.
func (u *Updater) bootstrapNeeded(ctx context.Context) (bool, error) {
	stored, err := u.store.Get(ctx)
	if err != nil {
		return false, err
	}
	if stored == nil {
		return true, nil
	}
	empty, err := u.store.FacetsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return empty, nil
}

// Bootstrap recomputes the summary and all facet counters from the claim
// table. Concurrent calls collapse: while one run is in flight, others
// return immediately. Repeating a bootstrap with no intervening inserts
// produces identical stored state apart from generatedAt.
func (u *Updater) Bootstrap(ctx context.Context) error {
	if !u.bootstrapping.CompareAndSwap(false, true) {
		u.logger.Info().Msg("bootstrap already running, collapsing trigger")
		return nil
	}
	defer u.bootstrapping.Store(false)

	start := time.Now()
	agg, facets, err := u.store.Aggregate(ctx)
	if err != nil {
		return fmt.Errorf("aggregate claims: %w", err)
	}

	agg.GeneratedAt = time.Now()
	agg.DurationMs = time.Since(start).Milliseconds()
	agg.Source = SourceBootstrap

	if err := u.store.UpsertFull(ctx, agg); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	if err := u.store.ClearFacets(ctx); err != nil {
		return fmt.Errorf("clear facets: %w", err)
	}
	if len(facets) > 0 {
		if err := u.store.InsertFacets(ctx, facets); err != nil {
			return fmt.Errorf("insert facets: %w", err)
		}
	}

	u.logger.Info().
		Int64("total_claims", agg.Totals.TotalClaims).
		Int64("duration_ms", agg.DurationMs).
		Msg("bootstrap complete")
	return nil
}

func (u *Updater) onNotification(ctx context.Context, n db.Notification) {
	u.HandleEvent(ctx, n.Payload)
}

// HandleEvent folds one insert event into the summary. The payload is the
// inserted claim's id; the full row is fetched before applying the delta.
// Any single failure is logged and the event dropped; the feed keeps going.
func (u *Updater) HandleEvent(ctx context.Context, payload string) {
	id, err := uuid.Parse(payload)
	if err != nil {
		u.logger.Warn().Str("payload", payload).Msg("ignoring malformed insert event")
		return
	}

	claim, err := u.claims.GetByID(ctx, id)
	if err != nil {
		u.logger.Warn().Err(err).Str("claim_id", payload).Msg("insert event lookup failed, skipping")
		return
	}

	if err := u.store.ApplyDelta(ctx, claim.TotalAmount, claim.Status); err != nil {
		u.logger.Error().Err(err).Str("claim_id", payload).Msg("delta application failed, skipping event")
		return
	}
	for _, code := range claim.ProcedureCodes {
		if err := u.store.FacetIncrement(ctx, code); err != nil {
			u.logger.Error().Err(err).Str("code", code).Msg("facet increment failed")
		}
	}
}
