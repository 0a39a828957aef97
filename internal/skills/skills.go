// Package skills holds the builtin skill implementations and their
// registry entries. Registration order doubles as fallback priority.
package skills

import (
	"github.com/nidhogg/courier/internal/skill"
	"go.uber.org/zap"
)

// Options carries the external dependencies builtin skills need.
type Options struct {
	RedisURL string
	Notify   NotifyFunc
	Logger   *zap.Logger
}

// Registrations returns the builtin registry entries. A skill whose backend
// is not configured still registers; its CheckReady keeps it out of
// dispatch until the backend comes up.
func Registrations(opts Options) []skill.Registration {
	regs := []skill.Registration{
		{
			Name:     "clock",
			Intents:  []string{"clock"},
			Keywords: []string{"time", "date", "clock", "today"},
			New:      func() (skill.Skill, error) { return NewClockSkill(), nil },
		},
		{
			Name:     "greet",
			Intents:  []string{"greet"},
			Keywords: []string{"hello", "hi", "hey", "morning", "evening"},
			New:      func() (skill.Skill, error) { return NewGreetSkill(), nil },
		},
		{
			Name:     "system",
			Intents:  []string{"system_status"},
			Keywords: []string{"cpu", "memory", "status", "load", "uptime"},
			New:      func() (skill.Skill, error) { return NewSystemSkill(), nil },
		},
	}

	if opts.RedisURL != "" {
		regs = append(regs, skill.Registration{
			Name:     "reminder",
			Intents:  []string{"set_reminder", "list_reminders"},
			Keywords: []string{"remind", "reminder", "reminders"},
			New: func() (skill.Skill, error) {
				return NewReminderSkill(opts.RedisURL, opts.Notify, opts.Logger)
			},
		})
	}

	return regs
}
