package summary

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/claimsight/claimsight/internal/platform/db"
	"github.com/claimsight/claimsight/internal/platform/websocket"
)

// summaryChangedChannel fires whenever the summary singleton row changes.
const summaryChangedChannel = "summary_changed"

// topProcedureCount is how many facet rows ride along with each push.
const topProcedureCount = 5

// Broadcaster pushes summary refreshes to WebSocket subscribers. It watches
// the summary row's own change feed rather than claim inserts, so one push
// per stored change regardless of how the change was produced. Its feed
// reconnects independently of the updater's.
type Broadcaster struct {
	store     Store
	publisher websocket.EventPublisher
	logger    zerolog.Logger
	feed      *db.Listener
}

func NewBroadcaster(store Store, publisher websocket.EventPublisher, pool *pgxpool.Pool, logger zerolog.Logger, retryDelay time.Duration) *Broadcaster {
	b := &Broadcaster{
		store:     store,
		publisher: publisher,
		logger:    logger.With().Str("component", "summary-broadcaster").Logger(),
	}
	b.feed = db.NewListener(pool, summaryChangedChannel, retryDelay, b.onNotification, b.logger)
	return b
}

// FeedState exposes the underlying subscription state for health reporting.
func (b *Broadcaster) FeedState() db.ListenerState { return b.feed.State() }

// Run streams summary-change notifications until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.feed.Run(ctx)
}

func (b *Broadcaster) onNotification(ctx context.Context, _ db.Notification) {
	b.Push(ctx)
}

// Push refetches the current summary and publishes it as a summary-updated
// event. Both current and legacy stored shapes normalize to the same wire
// payload. Failures are logged and the push dropped; subscribers catch up
// on the next change.
func (b *Broadcaster) Push(ctx context.Context) {
	stored, err := b.store.Get(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("summary refetch failed, dropping push")
		return
	}
	if stored == nil {
		return
	}

	facets, err := b.store.TopProcedures(ctx, topProcedureCount)
	if err != nil {
		b.logger.Error().Err(err).Msg("facet refetch failed, dropping push")
		return
	}

	payload := BuildPayload(Normalize(stored), facets)
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error().Err(err).Msg("payload encode failed")
		return
	}

	event := websocket.Event{
		Type:      "summary-updated",
		Topic:     websocket.TopicSummary,
		Timestamp: time.Now(),
		Data:      data,
	}
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.logger.Error().Err(err).Msg("publish failed")
	}
}
