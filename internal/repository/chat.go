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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgForeignKeyViolation = "23503"

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) CreateChat(ctx context.Context, name string) (int64, error) {
	defer logger.DeferLogDuration("chat.CreateChat", time.Now())()
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO chats (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("chatRepo.CreateChat: %w", err)
	}
	return id, nil
}

// ListChats возвращает все чаты по возрастанию id.
func (r *ChatRepository) ListChats(ctx context.Context) ([]model.Chat, error) {
	defer logger.DeferLogDuration("chat.ListChats", time.Now())()
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM chats ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListChats: %w", err)
	}
	defer rows.Close()
	chats := []model.Chat{}
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("chatRepo.ListChats scan: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.ListChats rows: %w", err)
	}
	return chats, nil
}

// AddMembers добавляет участников одним запросом; при отсутствии чата не добавляется никто.
func (r *ChatRepository) AddMembers(ctx context.Context, chatID int64, userIDs []int64) error {
	defer logger.DeferLogDuration("chat.AddMembers", time.Now())()
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_members (chat_id, user_id)
		 SELECT $1, u FROM unnest($2::bigint[]) AS u
		 ON CONFLICT DO NOTHING`,
		chatID, userIDs,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("chatRepo.AddMembers chat %d: %w", chatID, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("chatRepo.AddMembers: %w", err)
	}
	return nil
}

func (r *ChatRepository) ChatExists(ctx context.Context, chatID int64) (bool, error) {
	defer logger.DeferLogDuration("chat.ChatExists", time.Now())()
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM chats WHERE id = $1`, chatID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("chatRepo.ChatExists: %w", err)
	}
	return true, nil
}

func (r *ChatRepository) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	defer logger.DeferLogDuration("chat.IsMember", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)`,
		chatID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("chatRepo.IsMember: %w", err)
	}
	return exists, nil
}
