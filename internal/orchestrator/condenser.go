package orchestrator

import (
	"context"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/provider"
	"github.com/jeanpaul/gbagent/internal/reasoning"
	"github.com/jeanpaul/gbagent/internal/tools"
)

// Condenser implements memory.Condenser with a memory_cleanup reasoning call.
type Condenser struct {
	reasoner tools.Reasoner
	prompts  *Prompts
}

func NewCondenser(r tools.Reasoner, prompts *Prompts) *Condenser {
	return &Condenser{reasoner: r, prompts: prompts}
}

func (c *Condenser) Condense(ctx context.Context, entries []string) ([]string, error) {
	text, err := c.reasoner.Call(ctx, config.PurposeMemoryCleanup,
		provider.System(c.prompts.MemoryCleanup(entries)),
		provider.User(cleanupRequest),
	)
	if err != nil {
		return nil, err
	}
	return reasoning.ParseMemoryList(text)
}
