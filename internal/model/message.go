package model

import "time"

type Message struct {
	ID        int64      `json:"id"`
	ChatID    int64      `json:"chatId"`
	SenderID  int64      `json:"senderId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"-"`
}

// IsDeleted: сообщение мягко удалено. Удалённые сообщения наружу из хранилища не выходят.
func (m *Message) IsDeleted() bool { return m.DeletedAt != nil }

// EnrichedMessage: сообщение вместе с профилем отправителя. Sender равен nil, если профиль
// получить не удалось.
type EnrichedMessage struct {
	ID        int64              `json:"id"`
	Content   string             `json:"content"`
	SenderID  int64              `json:"senderId"`
	Sender    *RemoteUserProfile `json:"sender"`
	ChatID    int64              `json:"chatId"`
	CreatedAt time.Time          `json:"createdAt"`
}

func (m *Message) Enrich(sender *RemoteUserProfile) EnrichedMessage {
	return EnrichedMessage{
		ID:        m.ID,
		Content:   m.Content,
		SenderID:  m.SenderID,
		Sender:    sender,
		ChatID:    m.ChatID,
		CreatedAt: m.CreatedAt,
	}
}
