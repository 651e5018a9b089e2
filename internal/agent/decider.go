package agent

import (
	"context"
	"log/slog"

	"github.com/hyperengineering/orbit/internal/oracle"
)

const (
	noGoalMessage   = "You don't have an active goal yet. What should we focus on?"
	fallbackMessage = "My brain froze. What did you say?"
)

// Decider turns a Snapshot into exactly one Decision.
type Decider struct {
	oracle       oracle.Oracle
	systemPrompt string
	logger       *slog.Logger
}

// NewDecider creates a Decider backed by the given oracle.
func NewDecider(o oracle.Oracle, opts ...Option) *Decider {
	cfg := buildOptions(opts)
	return &Decider{
		oracle:       o,
		systemPrompt: cfg.systemPrompt,
		logger:       cfg.logger.With("component", "decider"),
	}
}

// Decide never fails: a missing goal, a guardrail hit, and any oracle
// failure all resolve to a local Decision.
func (d *Decider) Decide(ctx context.Context, snap *Snapshot) Decision {
	if snap == nil || snap.Goal == nil {
		return AskUser{Base: Base{Message: noGoalMessage, Confidence: 1}}
	}

	latest, history := latestMessage(snap)

	if reply, blocked := Guardrail(latest); blocked {
		d.logger.Info("guardrail triggered", "goal_id", snap.Goal.ID, "message", reply.Message)
		return reply
	}

	raw, err := d.oracle.Complete(ctx, oracle.Request{
		SystemInstruction: d.systemPrompt,
		Prompt:            renderPrompt(snap, latest, history),
		Schema:            decisionSchema,
	})
	if err != nil {
		d.logger.Warn("oracle call failed", "goal_id", snap.Goal.ID, "error", err)
		return fallbackDecision()
	}

	decision, err := DecodeDecision(raw)
	if err != nil {
		d.logger.Warn("oracle output rejected", "goal_id", snap.Goal.ID, "error", err)
		return fallbackDecision()
	}

	if reply, ok := decision.(ReplyOnly); ok && reply.Message == "" {
		reply.Message = offTopicRefusal
		decision = reply
	}

	d.logger.Debug("decision made",
		"goal_id", snap.Goal.ID,
		"decision_type", decision.Kind(),
		"confidence", decision.Common().Confidence,
	)
	return decision
}

func fallbackDecision() Decision {
	return AskUser{Base: Base{Message: fallbackMessage, Confidence: 0}}
}
