package skills

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/courier/internal/skill"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemSkill reports host health: CPU, memory, uptime. Its periodic hook
// keeps a recent CPU sample warm so answers don't block on measurement.
type SystemSkill struct {
	mu      sync.Mutex
	lastCPU float64
	sampled time.Time
}

// NewSystemSkill creates a system status skill.
func NewSystemSkill() *SystemSkill {
	return &SystemSkill{}
}

func (s *SystemSkill) CheckReady() (bool, string) { return true, "" }

func (s *SystemSkill) Run(ctx context.Context, _ *skill.Invocation) (string, error) {
	cpuPct := s.recentCPU(ctx)

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read memory stats: %w", err)
	}
	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read uptime: %w", err)
	}

	return fmt.Sprintf("CPU at %.0f%%, memory at %.0f%%, up for %s.",
		cpuPct, vm.UsedPercent,
		(time.Duration(uptime) * time.Second).Round(time.Minute)), nil
}

// recentCPU returns the hook's cached sample when it is fresh, otherwise
// takes a short blocking measurement.
func (s *SystemSkill) recentCPU(ctx context.Context) float64 {
	s.mu.Lock()
	cached, at := s.lastCPU, s.sampled
	s.mu.Unlock()
	if time.Since(at) < 30*time.Second {
		return cached
	}

	pcts, err := cpu.PercentWithContext(ctx, 250*time.Millisecond, false)
	if err != nil || len(pcts) == 0 {
		return cached
	}
	return pcts[0]
}

// Hooks exposes the periodic CPU sampler.
func (s *SystemSkill) Hooks() []skill.Hook {
	return []skill.Hook{{Name: "load-sample", Fn: s.sample}}
}

func (s *SystemSkill) sample(ctx context.Context) error {
	pcts, err := cpu.PercentWithContext(ctx, 250*time.Millisecond, false)
	if err != nil {
		return fmt.Errorf("sample cpu: %w", err)
	}
	if len(pcts) == 0 {
		return nil
	}
	s.mu.Lock()
	s.lastCPU = pcts[0]
	s.sampled = time.Now()
	s.mu.Unlock()
	return nil
}
