package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/chat-service/internal/apperr"
	"github.com/chat-service/internal/model"
)

type markerKey struct {
	chatID, userID int64
}

// Store хранит сообщения, чаты и маркеры прочтения в памяти, для режима -memory и тестов.
// Один мьютекс сериализует все записи, поэтому свойство «max wins» у watermark выполняется
// так же, как под row-lock в Postgres.
type Store struct {
	mu        sync.RWMutex
	messages  []model.Message // в порядке вставки, id растут
	byID      map[int64]int
	chats     map[int64]model.Chat
	members   map[markerKey]time.Time
	markers   map[markerKey]model.ReadMarker
	nextMsgID int64
	nextChat  int64
	now       func() time.Time
}

type Option func(*Store)

// WithMessageSeq задаёт первый выдаваемый id сообщения.
func WithMessageSeq(start int64) Option { return func(s *Store) { s.nextMsgID = start } }

// WithChatSeq задаёт первый выдаваемый id чата.
func WithChatSeq(start int64) Option { return func(s *Store) { s.nextChat = start } }

// WithClock подменяет источник времени created_at.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func NewStore(opts ...Option) *Store {
	s := &Store{
		byID:      make(map[int64]int),
		chats:     make(map[int64]model.Chat),
		members:   make(map[markerKey]time.Time),
		markers:   make(map[markerKey]model.ReadMarker),
		nextMsgID: 1,
		nextChat:  1,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) CreateChat(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextChat
	s.nextChat++
	s.chats[id] = model.Chat{ID: id, Name: name, CreatedAt: s.now().UTC()}
	return id, nil
}

// ListChats возвращает все чаты по возрастанию id.
func (s *Store) ListChats(ctx context.Context) ([]model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b model.Chat) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// AddMembers добавляет участников разом: при отсутствии чата не добавляет никого.
func (s *Store) AddMembers(ctx context.Context, chatID int64, userIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return fmt.Errorf("memStore.AddMembers chat %d: %w", chatID, apperr.ErrNotFound)
	}
	now := s.now().UTC()
	for _, userID := range userIDs {
		k := markerKey{chatID, userID}
		if _, ok := s.members[k]; !ok {
			s.members[k] = now
		}
	}
	return nil
}

func (s *Store) ChatExists(ctx context.Context, chatID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chats[chatID]
	return ok, nil
}

func (s *Store) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[markerKey{chatID, userID}]
	return ok, nil
}

func (s *Store) Append(ctx context.Context, chatID, senderID int64, text string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return 0, fmt.Errorf("memStore.Append chat %d: %w", chatID, apperr.ErrNotFound)
	}
	id := s.nextMsgID
	s.nextMsgID++
	s.byID[id] = len(s.messages)
	s.messages = append(s.messages, model.Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   text,
		CreatedAt: s.now().UTC(),
	})
	return id, nil
}

// ListByChat возвращает сообщения чата от новых к старым.
func (s *Store) ListByChat(ctx context.Context, chatID int64) ([]model.Message, error) {
	return s.collectDesc(func(m *model.Message) bool { return m.ChatID == chatID }), nil
}

func (s *Store) ListSince(ctx context.Context, chatID int64, since time.Time) ([]model.Message, error) {
	return s.collectDesc(func(m *model.Message) bool {
		return m.ChatID == chatID && !m.CreatedAt.Before(since)
	}), nil
}

// ListAfter возвращает сообщения чата с id > afterID по возрастанию id.
func (s *Store) ListAfter(ctx context.Context, chatID, afterID int64) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, 0)
	for i := range s.messages {
		m := &s.messages[i]
		if m.ChatID == chatID && m.ID > afterID && !m.IsDeleted() {
			out = append(out, *m)
		}
	}
	slices.SortFunc(out, func(a, b model.Message) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) ListByIDs(ctx context.Context, ids []int64) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{}, len(ids))
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		idx, ok := s.byID[id]
		if !ok || s.messages[idx].IsDeleted() {
			continue
		}
		out = append(out, s.messages[idx])
	}
	sortDesc(out)
	return out, nil
}

func (s *Store) SoftDelete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok || s.messages[idx].IsDeleted() {
		return false, nil
	}
	now := s.now().UTC()
	s.messages[idx].DeletedAt = &now
	return true, nil
}

func (s *Store) GetMarker(ctx context.Context, chatID, userID int64) (model.ReadMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markers[markerKey{chatID, userID}]
	if !ok {
		return model.ReadMarker{ChatID: chatID, UserID: userID}, nil
	}
	return m.Clone(), nil
}

func (s *Store) AdvanceWatermark(ctx context.Context, chatID, userID, messageID int64) (model.ReadMarker, error) {
	return s.mutateMarker(chatID, userID, func(m *model.ReadMarker) { m.AdvanceTo(messageID) })
}

func (s *Store) AddExceptions(ctx context.Context, chatID, userID int64, ids []int64) (model.ReadMarker, error) {
	return s.mutateMarker(chatID, userID, func(m *model.ReadMarker) { m.Acknowledge(ids...) })
}

func (s *Store) mutateMarker(chatID, userID int64, fn func(*model.ReadMarker)) (model.ReadMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := markerKey{chatID, userID}
	m, ok := s.markers[k]
	if !ok {
		m = model.ReadMarker{ChatID: chatID, UserID: userID}
	}
	fn(&m)
	m.UpdatedAt = s.now().UTC()
	s.markers[k] = m
	return m.Clone(), nil
}

func (s *Store) collectDesc(keep func(*model.Message) bool) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, 0)
	for i := range s.messages {
		m := &s.messages[i]
		if !m.IsDeleted() && keep(m) {
			out = append(out, *m)
		}
	}
	sortDesc(out)
	return out
}

func sortDesc(msgs []model.Message) {
	slices.SortStableFunc(msgs, func(a, b model.Message) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
