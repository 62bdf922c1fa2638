package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chat-service/internal/audit"
	"github.com/chat-service/internal/logger"
	"github.com/google/uuid"
)

// RequestID назначает запросу id (берёт валидный X-Request-Id клиента или генерирует новый)
// и возвращает его в заголовке ответа.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))
	})
}

// RequestLog логирует каждый HTTP-запрос (method, path, время выполнения; асинхронно) и отправляет
// событие аудита в sink. Должен стоять после Authenticate, чтобы видеть user_id.
func RequestLog(sink audit.Sink) func(http.Handler) http.Handler {
	if sink == nil {
		sink = audit.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			defer logger.DeferLogDuration("http "+r.Method+" "+r.URL.Path, start)()
			rw := wrap(w)
			var userID int64
			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), userIDSlot{}, &userID)))
			if userID == 0 {
				userID = GetUserID(r.Context())
			}
			sink.Record(audit.RequestEvent{
				RequestID:  GetRequestID(r.Context()),
				Method:     r.Method,
				URI:        r.URL.RequestURI(),
				Status:     rw.status,
				DurationMs: time.Since(start).Milliseconds(),
				UserID:     userID,
				IP:         clientIP(r),
				UserAgent:  r.UserAgent(),
				At:         start.UTC(),
			})
		})
	}
}

// userIDSlot позволяет Authenticate, стоящему глубже в цепочке, сообщить user_id наружу в RequestLog.
type userIDSlot struct{}

func reportUserID(ctx context.Context, id int64) {
	if p, ok := ctx.Value(userIDSlot{}).(*int64); ok {
		*p = id
	}
}

// clientIP возвращает адрес клиента: X-Real-Ip, первый из X-Forwarded-For, иначе RemoteAddr без порта.
func clientIP(r *http.Request) string {
	if x := r.Header.Get("X-Real-Ip"); x != "" {
		return strings.TrimSpace(x)
	}
	if x := r.Header.Get("X-Forwarded-For"); x != "" {
		first, _, _ := strings.Cut(x, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
