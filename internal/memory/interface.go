package memory

import "context"

// Condenser rewrites a memory list into a shorter equivalent. The
// reasoning-backed implementation lives in the orchestrator package.
type Condenser interface {
	Condense(ctx context.Context, entries []string) ([]string, error)
}

// CondenserFunc adapts a function to Condenser.
type CondenserFunc func(ctx context.Context, entries []string) ([]string, error)

func (f CondenserFunc) Condense(ctx context.Context, entries []string) ([]string, error) {
	return f(ctx, entries)
}
