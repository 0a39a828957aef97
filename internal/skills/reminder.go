package skills

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nidhogg/courier/internal/skill"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const reminderKey = "courier:reminders"

// NotifyFunc delivers a fired reminder to the user, usually through a
// gateway broadcast.
type NotifyFunc func(ctx context.Context, text string) error

// ReminderSkill stores reminders in a Redis sorted set keyed by due time.
// The monitor's periodic hook fires the due ones.
type ReminderSkill struct {
	rdb    *redis.Client
	notify NotifyFunc
	now    func() time.Time
	logger *zap.Logger
}

// NewReminderSkill connects to Redis by URL. notify may be nil; fired
// reminders are then only logged.
func NewReminderSkill(redisURL string, notify NotifyFunc, logger *zap.Logger) (*ReminderSkill, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &ReminderSkill{
		rdb:    redis.NewClient(opts),
		notify: notify,
		now:    time.Now,
		logger: logger,
	}, nil
}

func (s *ReminderSkill) CheckReady() (bool, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return false, "redis unreachable: " + err.Error()
	}
	return true, ""
}

var durationRe = regexp.MustCompile(`\bin (\d+) (second|minute|hour)s?\b`)

func (s *ReminderSkill) Run(ctx context.Context, inv *skill.Invocation) (string, error) {
	if inv.Intent == "list_reminders" {
		return s.list(ctx)
	}
	return s.set(ctx, inv.Input)
}

func (s *ReminderSkill) set(ctx context.Context, input string) (string, error) {
	m := durationRe.FindStringSubmatch(input)
	if m == nil {
		return "When should I remind you? Try something like 'remind me to stretch in 10 minutes'.", nil
	}
	n, _ := strconv.Atoi(m[1])
	var unit time.Duration
	switch m[2] {
	case "second":
		unit = time.Second
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	}
	delay := time.Duration(n) * unit
	due := s.now().Add(delay)

	text := reminderText(input)
	if text == "" {
		text = "your reminder"
	}

	err := s.rdb.ZAdd(ctx, reminderKey, redis.Z{
		Score:  float64(due.Unix()),
		Member: text,
	}).Err()
	if err != nil {
		return "", fmt.Errorf("store reminder: %w", err)
	}
	return fmt.Sprintf("Okay, I'll remind you about %q in %s.", text, delay), nil
}

func (s *ReminderSkill) list(ctx context.Context) (string, error) {
	entries, err := s.rdb.ZRangeWithScores(ctx, reminderKey, 0, -1).Result()
	if err != nil {
		return "", fmt.Errorf("list reminders: %w", err)
	}
	if len(entries) == 0 {
		return "You have no reminders set.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d reminder(s):\n", len(entries))
	for i, e := range entries {
		due := time.Unix(int64(e.Score), 0)
		fmt.Fprintf(&b, "  %d. %v at %s\n", i+1, e.Member, due.Format("3:04 PM"))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// reminderText extracts the subject from phrasings like
// "remind me to take out the trash in 5 minutes".
func reminderText(input string) string {
	text := strings.ToLower(input)
	if idx := strings.Index(text, "remind me to "); idx >= 0 {
		text = text[idx+len("remind me to "):]
	} else if idx := strings.Index(text, "remind me "); idx >= 0 {
		text = text[idx+len("remind me "):]
	}
	text = durationRe.ReplaceAllString(text, "")
	return strings.TrimSpace(strings.Trim(text, ".,!?"))
}

// Hooks exposes the due-reminder sweep for the background monitor.
func (s *ReminderSkill) Hooks() []skill.Hook {
	return []skill.Hook{{Name: "reminders", Fn: s.fireDue}}
}

// fireDue pops every due reminder and notifies. Each fired reminder is
// removed before notification so a failing notify cannot replay forever.
func (s *ReminderSkill) fireDue(ctx context.Context) error {
	now := strconv.FormatInt(s.now().Unix(), 10)
	due, err := s.rdb.ZRangeByScore(ctx, reminderKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("scan due reminders: %w", err)
	}

	for _, text := range due {
		if err := s.rdb.ZRem(ctx, reminderKey, text).Err(); err != nil {
			return fmt.Errorf("remove fired reminder: %w", err)
		}
		msg := fmt.Sprintf("Reminder: %s", text)
		if s.notify == nil {
			s.logger.Info("reminder fired without notifier", zap.String("text", text))
			continue
		}
		if err := s.notify(ctx, msg); err != nil {
			s.logger.Warn("reminder notify failed",
				zap.String("text", text), zap.Error(err))
		}
	}
	return nil
}

// Close releases the Redis connection.
func (s *ReminderSkill) Close() error {
	return s.rdb.Close()
}
