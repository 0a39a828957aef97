package gateway

import (
	"context"
	"time"
)

// Adapter defines the interface for platform adapters.
type Adapter interface {
	Platform() string
	Connect(ctx context.Context) error
	OnMessage(reply ReplyFunc)
	Announce(ctx context.Context, a *Announcement) error
	Close() error
	Status() AdapterStatus
}

// ReplyFunc produces the assistant's reply for one inbound message. An
// empty reply means nothing is sent back.
type ReplyFunc func(ctx context.Context, msg *InboundMessage) string

// InboundMessage is a normalized message from any platform.
type InboundMessage struct {
	Platform  string    `json:"platform"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Announcement is an unsolicited message pushed to every platform, used for
// fired reminders and system notices.
type Announcement struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// AdapterStatus reports one adapter's connection state.
type AdapterStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Details     string     `json:"details,omitempty"`
}
