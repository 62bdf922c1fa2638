package handler

import (
	"net/http"

	"github.com/chat-service/internal/config"
)

// ConfigHandler отдаёт публичные параметры конфигурации и health.
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// Health отвечает на liveness-проверку балансировщика (без авторизации).
func (h *ConfigHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetClientConfig возвращает клиенту TTL профилей: дольше этого срока кешировать их не имеет смысла.
func (h *ConfigHandler) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"profileTtlSeconds": int(h.cfg.Profiles.TTL.Seconds()),
		"store":             h.cfg.Store,
	})
}
