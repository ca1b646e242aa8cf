package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/observability"
	"github.com/jeanpaul/gbagent/internal/types"
)

// InputSurface accepts synthetic key events. *emulator.Driver satisfies it.
type InputSurface interface {
	SendKey(ctx context.Context, dir types.KeyDirection, b types.KeyBinding) error
}

// ExecutionReport says what happened to each symbol of a sequence.
type ExecutionReport struct {
	Sent    []types.ActionSymbol `json:"sent,omitempty"`
	Skipped []types.ActionSymbol `json:"skipped,omitempty"`
	Failed  []types.ActionSymbol `json:"failed,omitempty"`
}

// Executor turns action symbols into key presses at a fixed pace.
type Executor struct {
	input    InputSurface
	bindings map[types.ActionSymbol]types.KeyBinding
	delay    time.Duration
	settle   time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewExecutor(input InputSurface, delay, settle time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		input:    input,
		bindings: types.DefaultBindings,
		delay:    delay,
		settle:   settle,
		logger:   logger.Named("executor"),
		metrics:  metrics,
	}
}

// Execute presses and releases each symbol in order, waiting the
// inter-action delay after every attempted press and the settle delay
// after the sequence. Unknown symbols and failed emissions are logged and
// skipped. Cancelling ctx stops the sequence.
func (e *Executor) Execute(ctx context.Context, actions []types.ActionSymbol) ExecutionReport {
	var report ExecutionReport
	for i, sym := range actions {
		if ctx.Err() != nil {
			return report
		}

		b, ok := e.bindings[sym]
		if !ok {
			e.logger.Warn("unknown action", zap.String("action", string(sym)))
			report.Skipped = append(report.Skipped, sym)
			e.metrics.RecordAction(string(sym), "skipped")
			continue
		}

		if err := e.press(ctx, b); err != nil {
			e.logger.Warn("action failed",
				zap.String("action", string(sym)),
				zap.Int("position", i+1),
				zap.Int("of", len(actions)),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, sym)
			e.metrics.RecordAction(string(sym), "failed")
		} else {
			e.logger.Debug("action sent",
				zap.String("action", string(sym)),
				zap.String("key", b.Key),
				zap.Int("position", i+1),
				zap.Int("of", len(actions)),
			)
			report.Sent = append(report.Sent, sym)
			e.metrics.RecordAction(string(sym), "sent")
		}

		if err := pause(ctx, e.delay); err != nil {
			return report
		}
	}
	_ = pause(ctx, e.settle)
	return report
}

// press emits key down then key up. A failed key down skips the release.
func (e *Executor) press(ctx context.Context, b types.KeyBinding) error {
	if err := e.input.SendKey(ctx, types.KeyDown, b); err != nil {
		return err
	}
	return e.input.SendKey(ctx, types.KeyUp, b)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
