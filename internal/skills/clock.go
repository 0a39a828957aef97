package skills

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/courier/internal/skill"
)

// ClockSkill answers time and date questions.
type ClockSkill struct {
	now func() time.Time
}

// NewClockSkill creates a clock skill reading the system clock.
func NewClockSkill() *ClockSkill {
	return &ClockSkill{now: time.Now}
}

func (s *ClockSkill) CheckReady() (bool, string) { return true, "" }

func (s *ClockSkill) Run(_ context.Context, _ *skill.Invocation) (string, error) {
	t := s.now()
	return fmt.Sprintf("It's %s on %s.",
		t.Format("3:04 PM"),
		t.Format("Monday, January 2")), nil
}

func (s *ClockSkill) Hooks() []skill.Hook { return nil }
