package notify

import (
	"context"
	"sync"
)

// SentMessage is one recorded dispatch.
type SentMessage struct {
	Channel   string
	Recipient string
	Subject   string
	Body      string
}

// MemorySender records dispatches in memory. Used in demo mode (no gateway
// configured) and in tests. Channels listed in failures are declined.
type MemorySender struct {
	mu       sync.Mutex
	messages []SentMessage
	calls    []string
	failures map[string]bool
}

// NewMemorySender creates an in-memory sender that accepts everything.
func NewMemorySender() *MemorySender {
	return &MemorySender{failures: make(map[string]bool)}
}

// FailChannel makes subsequent dispatches on the channel report rejection.
// Use "phone_call" to fail call scheduling.
func (m *MemorySender) FailChannel(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[channel] = true
}

// Send implements Sender.
func (m *MemorySender) Send(ctx context.Context, channel, recipient, subject, body string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures[channel] {
		recordSend(channel, false)
		return false, nil
	}
	m.messages = append(m.messages, SentMessage{
		Channel:   channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	recordSend(channel, true)
	return true, nil
}

// ScheduleCall implements CallScheduler.
func (m *MemorySender) ScheduleCall(ctx context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures["phone_call"] {
		recordSend("phone_call", false)
		return false, nil
	}
	m.calls = append(m.calls, phone)
	recordSend("phone_call", true)
	return true, nil
}

// Messages returns a copy of all recorded messages.
func (m *MemorySender) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Calls returns a copy of all scheduled call numbers.
func (m *MemorySender) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
