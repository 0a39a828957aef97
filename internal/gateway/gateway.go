package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AnnouncementRecord tracks a sent announcement for history.
type AnnouncementRecord struct {
	Announcement *Announcement `json:"announcement"`
	SentAt       time.Time     `json:"sent_at"`
	Targets      []string      `json:"targets"`
}

// Gateway manages the platform adapters and fans announcements out to them.
type Gateway struct {
	adapters map[string]Adapter
	reply    ReplyFunc
	history  []AnnouncementRecord
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewGateway creates a gateway manager.
func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// SetReply sets the reply callback for all inbound messages. Call before
// Register; adapters capture it at registration time.
func (g *Gateway) SetReply(reply ReplyFunc) {
	g.reply = reply
}

// Register adds an adapter and wires its reply handler.
func (g *Gateway) Register(adapter Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	platform := adapter.Platform()
	g.adapters[platform] = adapter
	adapter.OnMessage(func(ctx context.Context, msg *InboundMessage) string {
		if g.reply == nil {
			return ""
		}
		return g.reply(ctx, msg)
	})
	g.logger.Info("registered gateway adapter", zap.String("platform", platform))
}

// ConnectAll starts all registered adapters.
func (g *Gateway) ConnectAll(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for platform, adapter := range g.adapters {
		if err := adapter.Connect(ctx); err != nil {
			g.logger.Error("adapter connect failed",
				zap.String("platform", platform), zap.Error(err))
			return fmt.Errorf("connect %s: %w", platform, err)
		}
		g.logger.Info("adapter connected", zap.String("platform", platform))
	}
	return nil
}

// Announce pushes an announcement to every adapter and records it.
func (g *Gateway) Announce(ctx context.Context, a *Announcement) error {
	if a.Content == "" {
		return fmt.Errorf("announcement content is required")
	}

	// Snapshot the adapters so a slow platform send never blocks Register,
	// Statuses or Close.
	g.mu.RLock()
	adapters := make(map[string]Adapter, len(g.adapters))
	for platform, adapter := range g.adapters {
		adapters[platform] = adapter
	}
	g.mu.RUnlock()

	var targets []string
	var errs int
	for platform, adapter := range adapters {
		if err := adapter.Announce(ctx, a); err != nil {
			g.logger.Error("announce failed",
				zap.String("platform", platform), zap.Error(err))
			errs++
			continue
		}
		targets = append(targets, platform)
	}

	g.mu.Lock()
	g.history = append(g.history, AnnouncementRecord{
		Announcement: a,
		SentAt:       time.Now(),
		Targets:      targets,
	})
	g.mu.Unlock()

	if errs > 0 {
		return fmt.Errorf("announce failed on %d platform(s)", errs)
	}
	return nil
}

// History returns the most recent announcement records.
func (g *Gateway) History(limit int) []AnnouncementRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if limit <= 0 || limit > len(g.history) {
		limit = len(g.history)
	}
	return g.history[len(g.history)-limit:]
}

// Statuses reports every adapter's connection state.
func (g *Gateway) Statuses() []AdapterStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]AdapterStatus, 0, len(g.adapters))
	for _, a := range g.adapters {
		out = append(out, a.Status())
	}
	return out
}

// Close shuts down all adapters.
func (g *Gateway) Close() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for platform, adapter := range g.adapters {
		if err := adapter.Close(); err != nil {
			g.logger.Error("adapter close failed",
				zap.String("platform", platform), zap.Error(err))
		}
	}
	return nil
}
