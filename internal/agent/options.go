package agent

import (
	"log/slog"
	"time"
)

const (
	defaultReminderLimit = 5
	defaultMemoryLimit   = 5
)

type options struct {
	reminderLimit int
	memoryLimit   int
	systemPrompt  string
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures agent components.
type Option func(*options)

// WithLimits caps how many reminders and memory entries the Observer reads.
// Non-positive values keep the defaults.
func WithLimits(reminders, memory int) Option {
	return func(o *options) {
		if reminders > 0 {
			o.reminderLimit = reminders
		}
		if memory > 0 {
			o.memoryLimit = memory
		}
	}
}

// WithSystemPrompt replaces the Decider's system instruction.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) {
		if prompt != "" {
			o.systemPrompt = prompt
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		reminderLimit: defaultReminderLimit,
		memoryLimit:   defaultMemoryLimit,
		systemPrompt:  defaultSystemPrompt,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
