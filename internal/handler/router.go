package handler

import (
	"net/http"
	"strings"

	"github.com/chat-service/internal/audit"
	"github.com/chat-service/internal/config"
	"github.com/chat-service/internal/middleware"
	"github.com/chat-service/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Services собирает то, что нужно HTTP-слою от сервисного.
type Services struct {
	Messenger *service.Messenger
	Pipeline  *service.Pipeline
	Tracker   *service.ReadTracker
}

// NewRouter собирает chi-роутер: /health и /api/config без авторизации, остальное /api/* за Authenticate.
func NewRouter(cfg *config.Config, svc Services, sink audit.Sink, limiter *middleware.RateLimiter) http.Handler {
	chatH := NewChatHandler(svc.Messenger, svc.Pipeline, svc.Tracker)
	msgH := NewMessageHandler(svc.Messenger, svc.Pipeline, svc.Tracker)
	configH := NewConfigHandler(cfg)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RecoverJSON)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", configH.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestLog(sink))
		r.Get("/api/config", configH.GetClientConfig)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.JWTSecret))
			r.Use(limiter.RateLimitAPI)

			r.Get("/api/chats", chatH.ListChats)
			r.Post("/api/chats", chatH.CreateChat)
			r.Post("/api/chats/{chatId}/members", chatH.AddMembers)
			r.Get("/api/chats/{chatId}/messages", chatH.GetMessages)
			r.Get("/api/chats/{chatId}/messages/new", chatH.GetNewMessages)
			r.Get("/api/chats/{chatId}/unread", chatH.GetUnreadCount)
			r.Get("/api/chats/{chatId}/read-marker", chatH.GetReadMarker)

			r.Post("/api/messages", msgH.Send)
			r.Delete("/api/messages/{id}", msgH.Delete)
			r.Post("/api/messages/by-ids", msgH.ByIDs)
			r.Post("/api/messages/read", msgH.MarkRead)
			r.Post("/api/messages/read-up-to", msgH.MarkReadUpTo)
		})
	})
	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
