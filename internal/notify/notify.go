// Package notify delivers the daily task digest to users.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hyperengineering/orbit/internal/config"
)

// ErrNoRecipient is returned when a digest has no e-mail address.
var ErrNoRecipient = errors.New("digest has no recipient")

// Digest is the daily summary sent to one user.
type Digest struct {
	Email        string
	PendingCount int
	TopTaskTitle string
}

// Notifier delivers digests.
type Notifier interface {
	Notify(ctx context.Context, d Digest) error
}

// New returns the Notifier selected by cfg. The resend provider without an
// API key falls back to the log backend.
func New(cfg config.NotifyConfig, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Provider == config.NotifyResend && cfg.APIKey != "" {
		return NewResend(cfg.APIKey, cfg.FromAddress, cfg.DashboardURL)
	}
	if cfg.Provider == config.NotifyResend {
		logger.Warn("resend api key not set, digests will only be logged", "component", "notify")
	}
	return NewLog(logger)
}

// Log writes digests to the logger instead of sending them.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log-only Notifier.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "notify")}
}

// Notify logs the digest.
func (l *Log) Notify(_ context.Context, d Digest) error {
	if d.Email == "" {
		return ErrNoRecipient
	}
	l.logger.Info("daily digest",
		"email", d.Email,
		"pending_count", d.PendingCount,
		"top_task", d.TopTaskTitle,
	)
	return nil
}
