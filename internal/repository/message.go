package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chat-service/internal/apperr"
	"github.com/chat-service/internal/logger"
	"github.com/chat-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, chat_id, sender_id, content, created_at, deleted_at`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Append вставляет сообщение в существующий чат и возвращает его id.
// После возврата строка видна следующему чтению.
func (r *MessageRepository) Append(ctx context.Context, chatID, senderID int64, text string) (int64, error) {
	defer logger.DeferLogDuration("msg.Append", time.Now())()
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO messages (chat_id, sender_id, content)
		 SELECT $1, $2, $3
		 WHERE EXISTS (SELECT 1 FROM chats WHERE id = $1)
		 RETURNING id`,
		chatID, senderID, text,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("msgRepo.Append chat %d: %w", chatID, apperr.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("msgRepo.Append: %w", err)
	}
	return id, nil
}

// ListByChat возвращает историю чата, новые первыми.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID int64) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListByChat", time.Now())()
	return r.query(ctx, "msgRepo.ListByChat",
		`SELECT `+messageColumns+` FROM messages
		 WHERE chat_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC, id DESC`, chatID)
}

// ListSince возвращает сообщения, созданные не раньше since, новые первыми.
func (r *MessageRepository) ListSince(ctx context.Context, chatID int64, since time.Time) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListSince", time.Now())()
	return r.query(ctx, "msgRepo.ListSince",
		`SELECT `+messageColumns+` FROM messages
		 WHERE chat_id = $1 AND deleted_at IS NULL AND created_at >= $2
		 ORDER BY created_at DESC, id DESC`, chatID, since)
}

// ListAfter возвращает сообщения с id > afterID по возрастанию id.
func (r *MessageRepository) ListAfter(ctx context.Context, chatID, afterID int64) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListAfter", time.Now())()
	return r.query(ctx, "msgRepo.ListAfter",
		`SELECT `+messageColumns+` FROM messages
		 WHERE chat_id = $1 AND id > $2 AND deleted_at IS NULL
		 ORDER BY id ASC`, chatID, afterID)
}

// ListByIDs молча пропускает несуществующие и удалённые id.
func (r *MessageRepository) ListByIDs(ctx context.Context, ids []int64) ([]model.Message, error) {
	if len(ids) == 0 {
		return []model.Message{}, nil
	}
	defer logger.DeferLogDuration("msg.ListByIDs", time.Now())()
	return r.query(ctx, "msgRepo.ListByIDs",
		`SELECT `+messageColumns+` FROM messages
		 WHERE id = ANY($1) AND deleted_at IS NULL
		 ORDER BY created_at DESC, id DESC`, ids)
}

// SoftDelete помечает сообщение удалённым. false, если его нет или оно уже удалено.
func (r *MessageRepository) SoftDelete(ctx context.Context, id int64) (bool, error) {
	defer logger.DeferLogDuration("msg.SoftDelete", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return false, fmt.Errorf("msgRepo.SoftDelete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *MessageRepository) query(ctx context.Context, op, sql string, args ...any) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", op, err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt, &m.DeletedAt); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return messages, nil
}
