package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/provider"
	"github.com/jeanpaul/gbagent/internal/reasoning"
	"github.com/jeanpaul/gbagent/internal/tools"
	"github.com/jeanpaul/gbagent/internal/types"
)

// ToolCatalog lists the tools the planner may choose from.
type ToolCatalog interface {
	Describe() string
}

// Planner asks the reasoning service which observation tools to run.
type Planner struct {
	reasoner    tools.Reasoner
	prompts     *Prompts
	catalog     ToolCatalog
	defaultTool types.ToolKind
	logger      *zap.Logger
}

func NewPlanner(r tools.Reasoner, prompts *Prompts, catalog ToolCatalog, defaultTool types.ToolKind, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTool == "" {
		defaultTool = types.ToolStoredScreenshot
	}
	return &Planner{
		reasoner:    r,
		prompts:     prompts,
		catalog:     catalog,
		defaultTool: defaultTool,
		logger:      logger.Named("planner"),
	}
}

// Plan never returns an empty call list.
func (p *Planner) Plan(ctx context.Context, sess *Session) types.ToolPlan {
	system := p.prompts.ToolSelection(sess.Frame, sess.Memory(), p.catalog.Describe(), sess.ScreenshotCount())

	text, err := p.reasoner.Call(ctx, config.PurposeToolSelection,
		provider.System(system),
		provider.User(p.prompts.ToolSelectionRequest(sess.Frame)),
	)
	if err != nil {
		p.logger.Warn("tool selection failed", zap.Error(err))
		return reasoning.DefaultPlan(p.defaultTool, "API failed, taking screenshot")
	}

	plan := reasoning.ParseToolPlan(text, p.defaultTool)
	p.logger.Debug("tool plan", zap.Any("calls", plan.Calls), zap.String("reasoning", plan.Reasoning))
	return plan
}
