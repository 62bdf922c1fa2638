package handler

import (
	"net/http"
	"time"

	"github.com/chat-service/internal/middleware"
	"github.com/chat-service/internal/service"
)

type ChatHandler struct {
	messenger *service.Messenger
	pipeline  *service.Pipeline
	tracker   *service.ReadTracker
}

func NewChatHandler(messenger *service.Messenger, pipeline *service.Pipeline, tracker *service.ReadTracker) *ChatHandler {
	return &ChatHandler{messenger: messenger, pipeline: pipeline, tracker: tracker}
}

type CreateChatRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Members []int64 `json:"members" validate:"omitempty,max=1000,dive,gt=0"`
}

// AddMembersRequest принимает одного участника (userId) или пачку (userIds).
type AddMembersRequest struct {
	UserID  int64   `json:"userId" validate:"omitempty,gt=0"`
	UserIDs []int64 `json:"userIds" validate:"omitempty,max=1000,dive,gt=0"`
}

// ListChats отдаёт все чаты: {"chats":[{"id","name","createdAt"}]}.
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.messenger.ListChats(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

// CreateChat создаёт чат с участниками из members; вызывающий всегда становится участником.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if !decode(w, r, &req) {
		return
	}
	members := append([]int64{middleware.GetUserID(r.Context())}, req.Members...)
	id, err := h.messenger.CreateChat(r.Context(), req.Name, members...)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *ChatHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "chatId")
	if !ok {
		return
	}
	var req AddMembersRequest
	if !decode(w, r, &req) {
		return
	}
	ids := req.UserIDs
	if req.UserID > 0 {
		ids = append(ids, req.UserID)
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "userId or userIds required")
		return
	}
	if err := h.messenger.AddMembers(r.Context(), chatID, ids); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetMessages отдаёт сообщения чата, новые первыми; ?minutes=N ограничивает последними N минутами.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "chatId")
	if !ok {
		return
	}
	var err error
	var out any
	if r.URL.Query().Has("minutes") {
		minutes := queryInt(r, "minutes", 0)
		if minutes <= 0 {
			writeError(w, http.StatusBadRequest, "invalid minutes")
			return
		}
		out, err = h.pipeline.ListRecentEnriched(r.Context(), chatID, time.Duration(minutes)*time.Minute)
	} else {
		out, err = h.pipeline.ListEnriched(r.Context(), chatID)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (h *ChatHandler) GetNewMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "chatId")
	if !ok {
		return
	}
	out, err := h.pipeline.ListNewEnriched(r.Context(), chatID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (h *ChatHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "chatId")
	if !ok {
		return
	}
	n, err := h.tracker.UnreadCount(r.Context(), chatID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *ChatHandler) GetReadMarker(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "chatId")
	if !ok {
		return
	}
	m, err := h.tracker.GetMarker(r.Context(), chatID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if m.Exceptions == nil {
		m.Exceptions = []int64{}
	}
	writeJSON(w, http.StatusOK, m)
}
