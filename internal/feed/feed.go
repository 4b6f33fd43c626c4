// internal/feed/feed.go
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/strategy"
)

// EventSink receives decoded wallet events. Implemented by the copy-trade
// strategy's buffer.
type EventSink interface {
	Enqueue(ev strategy.WalletEvent)
}

// Listener maintains a websocket subscription to the wallet-activity feed
// and pushes decoded events into the sink. The connection is re-dialed with
// exponential backoff; the feed is best-effort and its loss never stops the
// trading loops.
type Listener struct {
	url    string
	sink   EventSink
	logger *zap.Logger

	dialTimeout time.Duration
	readLimit   int64
}

// NewListener creates a feed listener for the given websocket URL.
func NewListener(url string, sink EventSink, logger *zap.Logger) *Listener {
	return &Listener{
		url:         url,
		sink:        sink,
		logger:      logger.Named("feed"),
		dialTimeout: 10 * time.Second,
		readLimit:   1 << 20,
	}
}

// Run connects and consumes until the context ends.
func (l *Listener) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0 // reconnect forever
	policy.MaxInterval = 30 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := l.dial(ctx)
		if err != nil {
			wait := policy.NextBackOff()
			l.logger.Warn("Feed dial failed, retrying",
				zap.String("url", l.url),
				zap.Duration("backoff", wait),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		policy.Reset()
		l.logger.Info("Feed connected", zap.String("url", l.url))

		if err := l.consume(ctx, conn); err != nil && ctx.Err() == nil {
			l.logger.Warn("Feed connection lost", zap.Error(err))
		}
		_ = conn.Close()
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, l.dialTimeout)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, l.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (l *Listener) consume(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(l.readLimit)

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev strategy.WalletEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			l.logger.Debug("Malformed feed message dropped", zap.Error(err))
			continue
		}
		if ev.TokenMint == "" || ev.Wallet == "" {
			continue
		}
		if ev.ObservedAt.IsZero() {
			ev.ObservedAt = time.Now().UTC()
		}

		l.sink.Enqueue(ev)
	}
}
