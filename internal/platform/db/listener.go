package db

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ListenerState tracks where a Listener is in its subscription lifecycle.
type ListenerState int32

const (
	StateDisconnected ListenerState = iota
	StateConnecting
	StateStreaming
	StateBackingOff
)

func (s ListenerState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateBackingOff:
		return "backing-off"
	default:
		return "unknown"
	}
}

// Notification carries one event delivered on a LISTEN channel.
type Notification struct {
	Channel string
	Payload string
}

// notifyConn abstracts the dedicated listening connection for testability.
type notifyConn interface {
	WaitForNotification(ctx context.Context) (*Notification, error)
	Close(ctx context.Context) error
}

// pgxNotifyConn wraps a hijacked pgx connection subscribed to one channel.
type pgxNotifyConn struct {
	conn *pgx.Conn
}

func (c *pgxNotifyConn) WaitForNotification(ctx context.Context) (*Notification, error) {
	n, err := c.conn.WaitForNotification(ctx)
	if err != nil {
		return nil, err
	}
	return &Notification{Channel: n.Channel, Payload: n.Payload}, nil
}

func (c *pgxNotifyConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// Listener owns a dedicated connection subscribed to a single LISTEN channel
// and delivers notifications to its handler in feed-delivery order. A
// connection or wait failure tears the connection down, waits RetryDelay,
// and resubscribes. Notifications emitted while disconnected are not
// replayed; only a full rebuild recovers them.
type Listener struct {
	channel    string
	handler    func(ctx context.Context, n Notification)
	logger     zerolog.Logger
	retryDelay time.Duration
	connect    func(ctx context.Context) (notifyConn, error)
	state      atomic.Int32
}

// NewListener creates a Listener on the given channel. The handler is invoked
// synchronously for every notification, so the feed is processed one event at
// a time in delivery order.
func NewListener(pool *pgxpool.Pool, channel string, retryDelay time.Duration, handler func(ctx context.Context, n Notification), logger zerolog.Logger) *Listener {
	return &Listener{
		channel:    channel,
		handler:    handler,
		logger:     logger,
		retryDelay: retryDelay,
		connect: func(ctx context.Context) (notifyConn, error) {
			pc, err := pool.Acquire(ctx)
			if err != nil {
				return nil, fmt.Errorf("acquire listen connection: %w", err)
			}
			// Hijack the connection: a pooled conn with an active LISTEN
			// must not be shared with other queries.
			conn := pc.Hijack()
			if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
				conn.Close(ctx)
				return nil, fmt.Errorf("listen on %s: %w", channel, err)
			}
			return &pgxNotifyConn{conn: conn}, nil
		},
	}
}

// State returns the listener's current lifecycle state.
func (l *Listener) State() ListenerState {
	return ListenerState(l.state.Load())
}

func (l *Listener) setState(s ListenerState) {
	l.state.Store(int32(s))
}

// Run drives the subscription until ctx is cancelled. It never returns a
// non-nil error for transient feed failures; those are logged and retried.
// Cancellation deterministically stops any pending backoff timer and closes
// the subscription before returning.
func (l *Listener) Run(ctx context.Context) {
	defer l.setState(StateDisconnected)

	for {
		if ctx.Err() != nil {
			return
		}

		l.setState(StateConnecting)
		conn, err := l.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn().Err(err).Str("channel", l.channel).Msg("feed connect failed")
			if !l.backoff(ctx) {
				return
			}
			continue
		}

		l.setState(StateStreaming)
		l.logger.Info().Str("channel", l.channel).Msg("feed streaming")

		err = l.stream(ctx, conn)
		conn.Close(context.Background())

		if ctx.Err() != nil {
			return
		}

		l.logger.Warn().Err(err).Str("channel", l.channel).Msg("feed interrupted, will reconnect")
		if !l.backoff(ctx) {
			return
		}
	}
}

// stream delivers notifications until the connection fails or ctx is done.
func (l *Listener) stream(ctx context.Context, conn notifyConn) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.handler(ctx, *n)
	}
}

// backoff waits the retry delay, returning false if ctx was cancelled first.
func (l *Listener) backoff(ctx context.Context) bool {
	l.setState(StateBackingOff)
	timer := time.NewTimer(l.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
