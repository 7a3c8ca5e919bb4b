package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Sent is one message recorded by the in-memory sender.
type Sent struct {
	ID      string
	Channel string
	Message Message
}

// Memory is an in-process Sender used by tests and by degraded startup
// (no chat credentials). It records every send and can be told to fail
// specific channels.
type Memory struct {
	mu          sync.Mutex
	sent        []Sent
	FailChannel map[string]error
	// Down makes Healthy report false, for degraded-mode startup.
	Down bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Send(channel string, msg Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailChannel[channel]; ok {
		return "", err
	}
	id := uuid.NewString()
	m.sent = append(m.sent, Sent{ID: id, Channel: channel, Message: msg})
	return id, nil
}

func (m *Memory) Healthy() bool { return !m.Down }

// ByChannel returns everything sent to one channel.
func (m *Memory) ByChannel(channel string) []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sent
	for _, s := range m.sent {
		if s.Channel == channel {
			out = append(out, s)
		}
	}
	return out
}

// All returns every recorded send in order.
func (m *Memory) All() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}
