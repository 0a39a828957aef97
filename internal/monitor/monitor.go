package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/nidhogg/courier/internal/skill"
	"github.com/shirou/gopsutil/v4/cpu"
	"go.uber.org/zap"
)

// LoadFunc samples current CPU load as a percentage. Injectable for tests.
type LoadFunc func(ctx context.Context) (float64, error)

// SystemLoad samples CPU utilization over a short window via gopsutil.
func SystemLoad(ctx context.Context) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, 250*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, nil
	}
	return pcts[0], nil
}

// Config controls the monitor's cadence and load guard.
type Config struct {
	Interval      time.Duration // normal tick spacing; zero means 5s
	Backoff       time.Duration // spacing after a skipped or failed tick; zero means 2*Interval
	LoadThreshold float64       // CPU percent above which ticks are skipped; zero means 80
}

// Status is a point-in-time snapshot of the monitor loop.
type Status struct {
	Running   bool      `json:"running"`
	LastTick  time.Time `json:"last_tick"`
	LastLoad  float64   `json:"last_load"`
	Ticks     int64     `json:"ticks"`
	Skips     int64     `json:"skips"`
	HookFails int64     `json:"hook_fails"`
}

// Monitor periodically runs every registered skill's maintenance hooks.
// Each hook runs isolated: a failing or panicking hook is logged and the
// remaining hooks in the same tick still run. Under high system load the
// whole tick is skipped and the next one is pushed out by the backoff.
type Monitor struct {
	registry *skill.Registry
	loadFn   LoadFunc
	cfg      Config
	logger   *zap.Logger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a monitor. loadFn may be nil to use the gopsutil sampler.
func New(registry *skill.Registry, loadFn LoadFunc, cfg Config, logger *zap.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * cfg.Interval
	}
	if cfg.LoadThreshold <= 0 {
		cfg.LoadThreshold = 80
	}
	if loadFn == nil {
		loadFn = SystemLoad
	}
	return &Monitor{
		registry: registry,
		loadFn:   loadFn,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start launches the tick loop. It is a no-op if already running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.Running {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.status.Running = true
	m.mu.Unlock()

	m.logger.Info("monitor started",
		zap.Duration("interval", m.cfg.Interval),
		zap.Float64("load_threshold", m.cfg.LoadThreshold))

	go m.loop(ctx)
}

// Stop cancels the loop and waits for the current tick to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.status.Running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	m.status.Running = false
	m.mu.Unlock()
	m.logger.Info("monitor stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	timer := time.NewTimer(m.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		timer.Reset(m.tick(ctx))
	}
}

// tick runs one monitor pass and returns the delay before the next one.
func (m *Monitor) tick(ctx context.Context) (next time.Duration) {
	next = m.cfg.Interval
	defer func() {
		// A panic that escapes the per-hook recovery means the loop
		// itself is unhealthy; keep running but back off harder.
		if r := recover(); r != nil {
			m.logger.Error("monitor tick panicked", zap.Any("panic", r))
			next = 2 * m.cfg.Backoff
		}
	}()

	load, err := m.loadFn(ctx)
	if err != nil {
		m.logger.Warn("load sample failed, skipping tick", zap.Error(err))
		m.recordSkip(load)
		return m.cfg.Backoff
	}
	if load > m.cfg.LoadThreshold {
		m.logger.Debug("system busy, skipping tick",
			zap.Float64("load", load),
			zap.Float64("threshold", m.cfg.LoadThreshold))
		m.recordSkip(load)
		return m.cfg.Backoff
	}

	fails := m.FireNow(ctx)

	m.mu.Lock()
	m.status.Ticks++
	m.status.LastTick = time.Now()
	m.status.LastLoad = load
	m.status.HookFails += int64(fails)
	m.mu.Unlock()
	return m.cfg.Interval
}

// FireNow runs every skill's hooks once, bypassing the interval and load
// checks. It returns the number of hooks that failed.
func (m *Monitor) FireNow(ctx context.Context) int {
	fails := 0
	for _, desc := range m.registry.All() {
		for _, h := range desc.Hooks() {
			if err := desc.RunHook(ctx, h); err != nil {
				fails++
				m.logger.Warn("monitor hook failed",
					zap.String("skill", desc.Name),
					zap.String("hook", h.Name),
					zap.Error(err))
				continue
			}
			m.logger.Debug("monitor hook ran",
				zap.String("skill", desc.Name),
				zap.String("hook", h.Name))
		}
	}
	return fails
}

func (m *Monitor) recordSkip(load float64) {
	m.mu.Lock()
	m.status.Skips++
	m.status.LastLoad = load
	m.mu.Unlock()
}

// Status returns a snapshot of the monitor's counters.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}
