package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/provider"
	"github.com/jeanpaul/gbagent/internal/reasoning"
	"github.com/jeanpaul/gbagent/internal/tools"
	"github.com/jeanpaul/gbagent/internal/types"
)

const decisionSource = "Gameplay Decision"

// Decider asks the reasoning service what to press next.
type Decider struct {
	reasoner tools.Reasoner
	prompts  *Prompts
	fallback types.ActionSymbol
	logger   *zap.Logger
}

func NewDecider(r tools.Reasoner, prompts *Prompts, fallback types.ActionSymbol, logger *zap.Logger) *Decider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !fallback.Valid() {
		fallback = types.ActionA
	}
	return &Decider{
		reasoner: r,
		prompts:  prompts,
		fallback: fallback,
		logger:   logger.Named("decider"),
	}
}

// Decide always returns a decision with at least one action.
func (d *Decider) Decide(ctx context.Context, sess *Session, obs types.Observation) types.Decision {
	visual := observationText(obs)

	text, err := d.reasoner.Call(ctx, config.PurposeGameplay,
		provider.System(d.prompts.Gameplay(sess.Memory(), visual)),
		provider.User(d.prompts.GameplayRequest(visual)),
	)
	if err != nil {
		d.logger.Warn("gameplay decision failed", zap.Error(err))
		return types.FallbackDecision("API failed, using fallback", d.fallback)
	}

	dec := reasoning.ParseDecision(text, d.fallback, decisionSource)
	d.logger.Debug("decision",
		zap.String("reasoning", dec.Reasoning),
		zap.Any("actions", dec.Actions),
	)
	return dec
}

// observationText is the description the model sees as CURRENT VISUAL.
func observationText(obs types.Observation) string {
	if obs.OK() && obs.Description != "" {
		return obs.Description
	}
	return obs.Summary()
}

func legalActions() string {
	names := make([]string, len(types.AllActions))
	for i, a := range types.AllActions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
