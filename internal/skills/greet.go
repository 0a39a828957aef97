package skills

import (
	"context"
	"time"

	"github.com/nidhogg/courier/internal/skill"
)

// GreetSkill answers greetings with a time-of-day appropriate reply.
type GreetSkill struct {
	now func() time.Time
}

// NewGreetSkill creates a greeting skill.
func NewGreetSkill() *GreetSkill {
	return &GreetSkill{now: time.Now}
}

func (s *GreetSkill) CheckReady() (bool, string) { return true, "" }

func (s *GreetSkill) Run(_ context.Context, _ *skill.Invocation) (string, error) {
	switch h := s.now().Hour(); {
	case h < 5:
		return "You're up late! Hello.", nil
	case h < 12:
		return "Good morning! How can I help?", nil
	case h < 18:
		return "Good afternoon! How can I help?", nil
	default:
		return "Good evening! How can I help?", nil
	}
}

func (s *GreetSkill) Hooks() []skill.Hook { return nil }
