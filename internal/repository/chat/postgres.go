package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/repository/pgutil"
)

const repBusyIndex = "chats_one_assigned_per_rep"

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zerolog.Logger) Repository {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &postgresRepo{pool: pool, logger: lg}
}

const chatColumns = `id::text, customer_id::text, rep_id::text, status, created_at, closed_at`

const messageColumns = `id::text, chat_id::text, sender_id, sender_type, content, seq, created_at`

const insertMessage = `
INSERT INTO chat_messages (chat_id, sender_id, sender_type, content)
VALUES ($1, $2, $3, $4)
RETURNING ` + messageColumns

func (r *postgresRepo) Create(ctx context.Context, customerID, firstMessage string) (*domain.Chat, *domain.ChatMessage, error) {
	var chat *domain.Chat
	var msg *domain.ChatMessage
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		chat, err = scanChat(tx.QueryRow(ctx, `INSERT INTO chats (customer_id) VALUES ($1) RETURNING `+chatColumns, customerID))
		if err != nil {
			return err
		}
		msg, err = scanMessage(tx.QueryRow(ctx, insertMessage, chat.ID, customerID, domain.SenderCustomer, firstMessage))
		return err
	})
	if err != nil {
		r.logger.Error().Err(err).Str("customer_id", customerID).Msg("chat repo: create")
		return nil, nil, pgutil.Map(err)
	}
	r.logger.Info().Str("chat_id", chat.ID).Str("customer_id", customerID).Msg("chat repo: opened")
	return chat, msg, nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Chat, error) {
	c, err := scanChat(r.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, id))
	if err != nil {
		return nil, pgutil.Map(err)
	}
	return c, nil
}

func (r *postgresRepo) Claim(ctx context.Context, chatID, repID, note string) (*domain.Chat, *domain.ChatMessage, error) {
	const q = `
UPDATE chats SET status = 'assigned', rep_id = $2
WHERE id = $1
  AND status = 'open'
  AND rep_id IS NULL
  AND NOT EXISTS (SELECT 1 FROM chats busy WHERE busy.rep_id = $2 AND busy.status = 'assigned')
RETURNING ` + chatColumns
	var chat *domain.Chat
	var msg *domain.ChatMessage
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		chat, err = scanChat(tx.QueryRow(ctx, q, chatID, repID))
		if err != nil {
			return err
		}
		msg, err = scanMessage(tx.QueryRow(ctx, insertMessage, chatID, repID, domain.SenderSystem, note))
		return err
	})
	if err == nil {
		r.logger.Info().Str("chat_id", chatID).Str("rep_id", repID).Msg("chat repo: claimed")
		return chat, msg, nil
	}
	if pgutil.Code(err) == pgerrcode.UniqueViolation && pgutil.Constraint(err) == repBusyIndex {
		return nil, nil, domain.ErrRepBusy
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error().Err(err).Str("chat_id", chatID).Msg("chat repo: claim")
		return nil, nil, pgutil.Map(err)
	}
	return nil, nil, r.claimRejection(ctx, chatID, repID)
}

// claimRejection explains why the conditional claim matched no row.
func (r *postgresRepo) claimRejection(ctx context.Context, chatID, repID string) error {
	current, err := r.Get(ctx, chatID)
	if err != nil {
		return err
	}
	switch {
	case current.Status == domain.ChatAssigned:
		r.logger.Info().Str("chat_id", chatID).Str("rep_id", repID).Msg("chat repo: claim lost")
		return domain.ErrChatAlreadyClaimed
	case !current.Status.CanTransition(domain.ChatAssigned):
		return fmt.Errorf("%w: chat is %s", domain.ErrInvalidTransition, current.Status)
	}
	return domain.ErrRepBusy
}

func (r *postgresRepo) Close(ctx context.Context, chatID, note string) (*domain.Chat, *domain.ChatMessage, error) {
	const q = `
UPDATE chats SET status = 'closed', closed_at = now()
WHERE id = $1 AND status IN ('open', 'assigned')
RETURNING ` + chatColumns
	var chat *domain.Chat
	var msg *domain.ChatMessage
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		chat, err = scanChat(tx.QueryRow(ctx, q, chatID))
		if err != nil {
			return err
		}
		msg, err = scanMessage(tx.QueryRow(ctx, insertMessage, chatID, "system", domain.SenderSystem, note))
		return err
	})
	if err == nil {
		r.logger.Info().Str("chat_id", chatID).Msg("chat repo: closed")
		return chat, msg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, pgutil.Map(err)
	}
	current, getErr := r.Get(ctx, chatID)
	if getErr != nil {
		return nil, nil, getErr
	}
	return current, nil, nil
}

func (r *postgresRepo) ListByStatus(ctx context.Context, status domain.ChatStatus) ([]domain.Chat, error) {
	return r.listChats(ctx, `SELECT `+chatColumns+` FROM chats WHERE status = $1 ORDER BY created_at, id`, status)
}

func (r *postgresRepo) ListForCustomer(ctx context.Context, customerID string) ([]domain.Chat, error) {
	return r.listChats(ctx, `SELECT `+chatColumns+` FROM chats WHERE customer_id = $1 ORDER BY created_at DESC, id`, customerID)
}

func (r *postgresRepo) ListForRep(ctx context.Context, repID string) ([]domain.Chat, error) {
	return r.listChats(ctx, `SELECT `+chatColumns+` FROM chats WHERE rep_id = $1 ORDER BY created_at DESC, id`, repID)
}

func (r *postgresRepo) listChats(ctx context.Context, q string, arg any) ([]domain.Chat, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, pgutil.Map(err)
	}
	defer rows.Close()

	out := []domain.Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *postgresRepo) AppendMessage(ctx context.Context, msg domain.ChatMessage) (*domain.ChatMessage, error) {
	const q = `
INSERT INTO chat_messages (chat_id, sender_id, sender_type, content)
SELECT id, $2, $3, $4 FROM chats WHERE id = $1 AND status <> 'closed'
RETURNING ` + messageColumns
	out, err := scanMessage(r.pool.QueryRow(ctx, q, msg.ChatID, msg.SenderID, msg.SenderType, msg.Content))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error().Err(err).Str("chat_id", msg.ChatID).Msg("chat repo: append message")
		return nil, pgutil.Map(err)
	}
	if _, getErr := r.Get(ctx, msg.ChatID); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrChatClosed
}

func (r *postgresRepo) Messages(ctx context.Context, chatID string) ([]domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE chat_id = $1 ORDER BY created_at, seq`, chatID)
	if err != nil {
		return nil, pgutil.Map(err)
	}
	defer rows.Close()

	out := []domain.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *postgresRepo) MessageByID(ctx context.Context, id string) (*domain.ChatMessage, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id = $1`, id))
	if err != nil {
		return nil, pgutil.Map(err)
	}
	return m, nil
}

func scanChat(row pgx.Row) (*domain.Chat, error) {
	var c domain.Chat
	if err := row.Scan(&c.ID, &c.CustomerID, &c.RepID, &c.Status, &c.CreatedAt, &c.ClosedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanMessage(row pgx.Row) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderType, &m.Content, &m.Seq, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
