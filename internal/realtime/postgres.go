package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

// Channel is the Postgres NOTIFY channel carrying new chat messages.
const Channel = "chat_messages"

// notice is the NOTIFY payload. NOTIFY payloads are capped at 8000 bytes, so
// only the reference travels and listeners reload the message.
type notice struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

// PGNotifier publishes messages to every API instance through NOTIFY.
type PGNotifier struct {
	pool *pgxpool.Pool
}

func NewPGNotifier(pool *pgxpool.Pool) *PGNotifier {
	return &PGNotifier{pool: pool}
}

func (n *PGNotifier) Publish(ctx context.Context, msg domain.ChatMessage) error {
	payload, err := json.Marshal(notice{ChatID: msg.ChatID, MessageID: msg.ID})
	if err != nil {
		return err
	}
	if _, err := n.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel, string(payload)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// MessageLoader reloads a message announced by NOTIFY.
type MessageLoader interface {
	MessageByID(ctx context.Context, id string) (*domain.ChatMessage, error)
}

const maxBackoff = 30 * time.Second

// Listener LISTENs on Channel and feeds the local broker.
type Listener struct {
	pool    *pgxpool.Pool
	broker  *Broker
	loader  MessageLoader
	logger  zerolog.Logger
	backoff time.Duration

	// session runs one LISTEN connection and calls ready once it is listening.
	session func(ctx context.Context, ready func()) error
	after   func(time.Duration) <-chan time.Time
}

func NewListener(pool *pgxpool.Pool, broker *Broker, loader MessageLoader, logger zerolog.Logger) *Listener {
	l := &Listener{
		pool:    pool,
		broker:  broker,
		loader:  loader,
		logger:  logging.Component(logger, "realtime"),
		backoff: time.Second,
		after:   time.After,
	}
	l.session = l.listen
	return l
}

// retryDelay doubles from base up to max. Reset starts over at base.
type retryDelay struct {
	base, max, next time.Duration
}

func (d *retryDelay) Next() time.Duration {
	if d.next == 0 {
		d.next = d.base
	}
	cur := d.next
	d.next = min(d.next*2, d.max)
	return cur
}

func (d *retryDelay) Reset() { d.next = d.base }

// Run blocks until ctx is cancelled, reconnecting after connection loss. The
// delay grows across failed attempts and resets once LISTEN succeeds again.
func (l *Listener) Run(ctx context.Context) {
	delay := &retryDelay{base: l.backoff, max: maxBackoff}
	for {
		err := l.session(ctx, delay.Reset)
		if ctx.Err() != nil {
			return
		}
		wait := delay.Next()
		l.logger.Warn().Err(err).Dur("retry_in", wait).Msg("listener disconnected")
		select {
		case <-ctx.Done():
			return
		case <-l.after(wait):
		}
	}
}

func (l *Listener) listen(ctx context.Context, ready func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info().Str("channel", Channel).Msg("listening")
	ready()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var note notice
		if err := json.Unmarshal([]byte(n.Payload), &note); err != nil {
			l.logger.Warn().Err(err).Str("payload", n.Payload).Msg("bad notification")
			continue
		}
		msg, err := l.loader.MessageByID(ctx, note.MessageID)
		if err != nil {
			l.logger.Warn().Err(err).Str("message_id", note.MessageID).Msg("load announced message")
			continue
		}
		l.broker.Deliver(*msg)
	}
}
