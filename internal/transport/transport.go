// Package transport defines the messaging bridge between the task
// engine and the chat surface that feeds it. The engine never talks to
// a messaging provider directly; it sends through a Bridge and receives
// Inbound events from whatever adapter is wired in.
package transport

import (
	"context"
	"sync"
	"time"
)

// Bridge delivers outbound messages to a conversation.
type Bridge interface {
	SendMessage(ctx context.Context, contextID, text string) error
}

// Inbound is a received message normalized for triage.
type Inbound struct {
	ContextID  string
	MessageID  string
	Body       string
	SenderName string
	HasMedia   bool
	MediaType  string
	MediaPath  string
	ReceivedAt time.Time
}

// TriageInput builds the task input payload for an inbound message.
func (in Inbound) TriageInput() map[string]any {
	input := map[string]any{
		"message": in.Body,
	}
	if in.SenderName != "" {
		input["sender_name"] = in.SenderName
	}
	if in.HasMedia {
		input["has_media"] = true
		input["mime_type"] = in.MediaType
		input["file_path"] = in.MediaPath
	}
	return input
}

// Outbound is a message recorded by MemoryBridge.
type Outbound struct {
	ContextID string
	Text      string
	SentAt    time.Time
}

// MemoryBridge collects outbound messages in memory. It is the default
// bridge when no provider adapter is configured, and the test double.
type MemoryBridge struct {
	mu   sync.Mutex
	sent []Outbound
}

// NewMemoryBridge returns an empty MemoryBridge.
func NewMemoryBridge() *MemoryBridge {
	return &MemoryBridge{}
}

// SendMessage records the message.
func (b *MemoryBridge) SendMessage(ctx context.Context, contextID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, Outbound{ContextID: contextID, Text: text, SentAt: time.Now()})
	return nil
}

// Sent returns a copy of all recorded messages.
func (b *MemoryBridge) Sent() []Outbound {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Outbound, len(b.sent))
	copy(out, b.sent)
	return out
}

// SentTo returns recorded messages for one conversation.
func (b *MemoryBridge) SentTo(contextID string) []Outbound {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Outbound
	for _, m := range b.sent {
		if m.ContextID == contextID {
			out = append(out, m)
		}
	}
	return out
}
