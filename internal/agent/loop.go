// Package agent implements the assistant's decision loop: Observe the user's
// state, Think with an oracle, Act on the store, Remember the outcome.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/orbit/internal/oracle"
	"github.com/hyperengineering/orbit/internal/store"
	"github.com/hyperengineering/orbit/internal/types"
)

// Result is the combined output of one loop run.
type Result struct {
	Decision     Decision
	ActionResult ActionResult
}

// MarshalJSON renders the decision in its flat wire form.
func (r Result) MarshalJSON() ([]byte, error) {
	var decision *wireDecision
	if r.Decision != nil {
		w := toWire(r.Decision)
		decision = &w
	}
	return json.Marshal(struct {
		Decision     *wireDecision `json:"decision"`
		ActionResult ActionResult  `json:"actionResult"`
	}{decision, r.ActionResult})
}

// Loop sequences Observe, Decide, Act and Remember for one user.
type Loop struct {
	observer *Observer
	decider  *Decider
	actuator *Actuator
	memory   *MemoryWriter
	logger   *slog.Logger
}

// NewLoop wires the four phases over one store and oracle.
func NewLoop(s store.Store, o oracle.Oracle, opts ...Option) *Loop {
	cfg := buildOptions(opts)
	return &Loop{
		observer: NewObserver(s, opts...),
		decider:  NewDecider(o, opts...),
		actuator: NewActuator(s, opts...),
		memory:   NewMemoryWriter(s, opts...),
		logger:   cfg.logger.With("component", "loop"),
	}
}

// Observer exposes the loop's Observer for read-only state views.
func (l *Loop) Observer() *Observer {
	return l.observer
}

// Run executes one pass. Only an Observe failure is returned as an error;
// every later phase degrades to a well-formed value, and a run log is
// written for every run that gets past Observe.
func (l *Loop) Run(ctx context.Context, userID string, runType types.RunType) (*Result, error) {
	if runType == "" {
		runType = types.RunManual
	}
	start := time.Now()

	snap, err := l.observer.Observe(ctx, userID)
	if err != nil {
		l.logger.Error("observe failed", "user_id", userID, "run_type", runType, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrLoopFailure, err)
	}

	decision := l.decider.Decide(ctx, snap)
	result := l.actuator.Act(ctx, userID, decision)

	// The audit trail is written even if the caller has gone away
	l.memory.Remember(context.WithoutCancel(ctx), userID, decision, result, runType)

	l.logger.Info("run complete",
		"user_id", userID,
		"run_type", runType,
		"decision_type", decision.Kind(),
		"action", result.Action,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{Decision: decision, ActionResult: result}, nil
}
