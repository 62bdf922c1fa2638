package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chat-service/internal/logger"
	"github.com/chat-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReadMarkerRepository хранит watermark и набор исключений на пару (chat, user).
// Каждое изменение одним upsert'ом: параллельные записи в строку сериализует row-lock,
// и watermark сходится к максимуму при любом порядке прихода.
type ReadMarkerRepository struct {
	pool *pgxpool.Pool
}

func NewReadMarkerRepository(pool *pgxpool.Pool) *ReadMarkerRepository {
	return &ReadMarkerRepository{pool: pool}
}

// GetMarker возвращает нулевой маркер, если для пары его ещё нет.
func (r *ReadMarkerRepository) GetMarker(ctx context.Context, chatID, userID int64) (model.ReadMarker, error) {
	defer logger.DeferLogDuration("marker.GetMarker", time.Now())()
	m := model.ReadMarker{ChatID: chatID, UserID: userID}
	err := r.pool.QueryRow(ctx,
		`SELECT watermark_id, exceptions, updated_at FROM read_markers
		 WHERE chat_id = $1 AND user_id = $2`, chatID, userID,
	).Scan(&m.Watermark, &m.Exceptions, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("markerRepo.GetMarker: %w", err)
	}
	return m, nil
}

// AdvanceWatermark ставит watermark = max(watermark, messageID) и выкидывает покрытые исключения.
// Все выражения SET читают строку до обновления.
func (r *ReadMarkerRepository) AdvanceWatermark(ctx context.Context, chatID, userID, messageID int64) (model.ReadMarker, error) {
	defer logger.DeferLogDuration("marker.AdvanceWatermark", time.Now())()
	return r.upsert(ctx, "markerRepo.AdvanceWatermark",
		`INSERT INTO read_markers (chat_id, user_id, watermark_id, exceptions, updated_at)
		 VALUES ($1, $2, $3, '{}', now())
		 ON CONFLICT (chat_id, user_id) DO UPDATE SET
		   watermark_id = GREATEST(read_markers.watermark_id, EXCLUDED.watermark_id),
		   exceptions = ARRAY(
		     SELECT e FROM unnest(read_markers.exceptions) AS e
		     WHERE e > GREATEST(read_markers.watermark_id, EXCLUDED.watermark_id)
		     ORDER BY e),
		   updated_at = now()
		 RETURNING watermark_id, exceptions, updated_at`,
		chatID, userID, messageID)
}

// AddExceptions добавляет id выше текущего watermark; остальные отбрасываются.
func (r *ReadMarkerRepository) AddExceptions(ctx context.Context, chatID, userID int64, ids []int64) (model.ReadMarker, error) {
	defer logger.DeferLogDuration("marker.AddExceptions", time.Now())()
	return r.upsert(ctx, "markerRepo.AddExceptions",
		`INSERT INTO read_markers (chat_id, user_id, watermark_id, exceptions, updated_at)
		 VALUES ($1, $2, 0, ARRAY(SELECT DISTINCT e FROM unnest($3::bigint[]) AS e WHERE e > 0 ORDER BY e), now())
		 ON CONFLICT (chat_id, user_id) DO UPDATE SET
		   exceptions = ARRAY(
		     SELECT DISTINCT e FROM unnest(read_markers.exceptions || EXCLUDED.exceptions) AS e
		     WHERE e > read_markers.watermark_id
		     ORDER BY e),
		   updated_at = now()
		 RETURNING watermark_id, exceptions, updated_at`,
		chatID, userID, ids)
}

func (r *ReadMarkerRepository) upsert(ctx context.Context, op, sql string, chatID, userID int64, arg any) (model.ReadMarker, error) {
	m := model.ReadMarker{ChatID: chatID, UserID: userID}
	err := r.pool.QueryRow(ctx, sql, chatID, userID, arg).Scan(&m.Watermark, &m.Exceptions, &m.UpdatedAt)
	if err != nil {
		return m, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}
