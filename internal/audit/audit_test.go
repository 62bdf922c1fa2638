package audit

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs map[string][][]byte
	err  error
}

func (f *fakePublisher) Publish(subj string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.msgs == nil {
		f.msgs = make(map[string][][]byte)
	}
	f.msgs[subj] = append(f.msgs[subj], data)
	return nil
}

func TestNATSSink_PublishesEvents(t *testing.T) {
	req := require.New(t)
	pub := &fakePublisher{}
	s := newSink(pub, "chat.requests")

	s.Record(RequestEvent{RequestID: "r1", Method: "GET", URI: "/api/chats/7/messages", Status: 200, UserID: 1})
	s.Record(RequestEvent{RequestID: "r2", Method: "POST", URI: "/api/messages", Status: 400})
	req.NoError(s.Close())

	req.Len(pub.msgs["chat.requests"], 2)
	var ev RequestEvent
	req.NoError(json.Unmarshal(pub.msgs["chat.requests"][0], &ev))
	req.Equal("r1", ev.RequestID)
	req.Equal(int64(1), ev.UserID)
}

func TestNATSSink_PublishErrorDoesNotStopLoop(t *testing.T) {
	req := require.New(t)
	pub := &fakePublisher{err: errors.New("disconnected")}
	s := newSink(pub, "chat.requests")
	s.Record(RequestEvent{RequestID: "r1"})
	req.NoError(s.Close())
	req.NoError(s.Close())
	req.Empty(pub.msgs)
}

func TestNATSSink_RecordAfterCloseIsDropped(t *testing.T) {
	req := require.New(t)
	pub := &fakePublisher{}
	s := newSink(pub, "chat.requests")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Record(RequestEvent{RequestID: "late"})
			}
		}()
	}
	req.NoError(s.Close())
	wg.Wait()

	req.NotPanics(func() { s.Record(RequestEvent{RequestID: "after-close"}) })
	for _, data := range pub.msgs["chat.requests"] {
		var ev RequestEvent
		req.NoError(json.Unmarshal(data, &ev))
		req.Equal("late", ev.RequestID)
	}
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	s.Record(RequestEvent{})
	require.NoError(t, s.Close())
}
