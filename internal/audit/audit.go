// Package audit отправляет по событию на каждый API-запрос в NATS для аналитического хранилища.
// Публикация асинхронная: при полном буфере событие теряется, ответ клиенту не задерживается.
package audit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/chat-service/internal/logger"
	"github.com/nats-io/nats.go"
)

const bufferSize = 4096

// RequestEvent: формат сообщения в subject аудита.
type RequestEvent struct {
	RequestID  string    `json:"requestId"`
	Method     string    `json:"method"`
	URI        string    `json:"uri"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"durationMs"`
	UserID     int64     `json:"userId,omitempty"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"userAgent"`
	At         time.Time `json:"at"`
}

type Sink interface {
	Record(ev RequestEvent)
	Close() error
}

// Nop выбрасывает события; используется при пустом NATS_URL.
type Nop struct{}

func (Nop) Record(RequestEvent) {}
func (Nop) Close() error        { return nil }

type publisher interface {
	Publish(subj string, data []byte) error
}

// NATSSink публикует события из фоновой горутины.
type NATSSink struct {
	pub     publisher
	subject string
	mu      sync.RWMutex
	closed  bool
	ch      chan RequestEvent
	done    chan struct{}
	once    sync.Once
	closeFn func() error
}

// Connect подключается к NATS и запускает цикл публикации.
func Connect(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("chat-audit"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, err
	}
	s := newSink(nc, subject)
	s.closeFn = nc.Drain
	return s, nil
}

func newSink(pub publisher, subject string) *NATSSink {
	s := &NATSSink{
		pub:     pub,
		subject: subject,
		ch:      make(chan RequestEvent, bufferSize),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *NATSSink) loop() {
	defer close(s.done)
	for ev := range s.ch {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("audit: encode event: %v", err)
			continue
		}
		if err := s.pub.Publish(s.subject, data); err != nil {
			logger.Warnf("audit: publish %s: %v", s.subject, err)
		}
	}
}

// Record не блокирует. После Close события молча отбрасываются.
func (s *NATSSink) Record(ev RequestEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		logger.Debugf("audit: buffer full, event %s dropped", ev.RequestID)
	}
}

// Close дописывает очередь и закрывает соединение через Drain.
func (s *NATSSink) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		<-s.done
		if s.closeFn != nil {
			err = s.closeFn()
		}
	})
	return err
}
