package handler

import (
	"net/http"

	"github.com/chat-service/internal/middleware"
	"github.com/chat-service/internal/service"
)

type MessageHandler struct {
	messenger *service.Messenger
	pipeline  *service.Pipeline
	tracker   *service.ReadTracker
}

func NewMessageHandler(messenger *service.Messenger, pipeline *service.Pipeline, tracker *service.ReadTracker) *MessageHandler {
	return &MessageHandler{messenger: messenger, pipeline: pipeline, tracker: tracker}
}

type SendMessageRequest struct {
	ChatID int64  `json:"chatId" validate:"required,gt=0"`
	Text   string `json:"text" validate:"required"`
}

type ByIDsRequest struct {
	IDs []int64 `json:"ids" validate:"required,max=500,dive,gt=0"`
}

type MarkReadRequest struct {
	ChatID     int64   `json:"chatId" validate:"required,gt=0"`
	MessageIDs []int64 `json:"messageIds" validate:"max=1000,dive,gt=0"`
}

type MarkReadUpToRequest struct {
	ChatID    int64 `json:"chatId" validate:"required,gt=0"`
	MessageID int64 `json:"messageId" validate:"required,gt=0"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.messenger.Send(r.Context(), req.ChatID, middleware.GetUserID(r.Context()), req.Text)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.messenger.Delete(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) ByIDs(w http.ResponseWriter, r *http.Request) {
	var req ByIDsRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.pipeline.ListByIDsEnriched(r.Context(), req.IDs)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.tracker.MarkRead(r.Context(), req.ChatID, middleware.GetUserID(r.Context()), req.MessageIDs); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *MessageHandler) MarkReadUpTo(w http.ResponseWriter, r *http.Request) {
	var req MarkReadUpToRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.tracker.MarkReadUpTo(r.Context(), req.ChatID, middleware.GetUserID(r.Context()), req.MessageID); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
