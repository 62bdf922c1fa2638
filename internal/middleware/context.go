package middleware

import "context"

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	RequestIDKey contextKey = "request_id"
)

// GetUserID возвращает user_id из контекста (устанавливается Authenticate) или 0, если запрос не аутентифицирован.
func GetUserID(ctx context.Context) int64 {
	v, _ := ctx.Value(UserIDKey).(int64)
	return v
}

// WithUserID кладёт user_id в контекст (нужно Authenticate и тестам хендлеров).
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRequestID возвращает id запроса, назначенный RequestID.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}
