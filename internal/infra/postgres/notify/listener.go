package infra_postgres_notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/humanbelnik/kinomatch/internal/model"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	tableMatches        = "matches"
	tableSessionMembers = "session_members"

	pingInterval = 90 * time.Second
)

// Source is the subset of *pq.Listener the feed reads from.
type Source interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

type MatchLoader interface {
	MatchByID(ctx context.Context, id int64) (model.Match, error)
}

type MemberLoader interface {
	MemberByID(ctx context.Context, id int64) (model.Member, error)
}

type Publisher interface {
	Publish(event model.FeedEvent)
	// Reset ends all subscriptions so clients resubscribe and catch up.
	Reset()
}

type payload struct {
	Table string `json:"table"`
	ID    int64  `json:"id"`
}

// Listener turns insert notifications into feed events. The trigger only
// sends the table and row id, so every row is loaded before publishing.
type Listener struct {
	source    Source
	matches   MatchLoader
	members   MemberLoader
	publisher Publisher
	logger    *zap.Logger
}

func New(source Source, matches MatchLoader, members MemberLoader, publisher Publisher, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		source:    source,
		matches:   matches,
		members:   members,
		publisher: publisher,
		logger:    logger.Named("pg_notify"),
	}
}

// Connect opens a dedicated LISTEN connection on channel.
func Connect(dsn, channel string, logger *zap.Logger) (*pq.Listener, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			logger.Warn("feed connection problem", zap.Int("event", int(ev)), zap.Error(err))
		case pq.ListenerEventReconnected:
			logger.Info("feed connection restored")
		}
	})
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}
	return listener, nil
}

// Run blocks until ctx is done or the source is closed.
func (l *Listener) Run(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	notifications := l.source.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			// nil is sent after a reconnect; inserts during the gap are lost.
			if n == nil {
				l.logger.Warn("feed reconnected, resetting subscribers")
				l.publisher.Reset()
				continue
			}
			l.handle(ctx, n.Extra)

		case <-ticker.C:
			go func() {
				if err := l.source.Ping(); err != nil {
					l.logger.Warn("feed ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (l *Listener) Close() error {
	return l.source.Close()
}

func (l *Listener) handle(ctx context.Context, raw string) {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		l.logger.Error("malformed feed payload", zap.String("payload", raw), zap.Error(err))
		return
	}

	switch p.Table {
	case tableMatches:
		match, err := l.matches.MatchByID(ctx, p.ID)
		if err != nil {
			l.logger.Error("failed to load match", zap.Int64("id", p.ID), zap.Error(err))
			l.publisher.Reset()
			return
		}
		l.publisher.Publish(model.MatchInserted(match))

	case tableSessionMembers:
		member, err := l.members.MemberByID(ctx, p.ID)
		if err != nil {
			l.logger.Error("failed to load member", zap.Int64("id", p.ID), zap.Error(err))
			return
		}
		l.publisher.Publish(model.MemberInserted(member))

	default:
		l.logger.Debug("ignoring feed payload", zap.String("table", p.Table))
	}
}
