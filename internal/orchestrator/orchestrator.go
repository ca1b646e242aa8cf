// Package orchestrator runs the decision loop: plan observations, gather
// them, decide, update memory, press buttons.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/observability"
	"github.com/jeanpaul/gbagent/internal/tools"
	"github.com/jeanpaul/gbagent/internal/types"
)

const noObservationReasoning = "No visual information available, taking conservative action"

// ToolPlanner chooses the observation tools for a cycle.
type ToolPlanner interface {
	Plan(ctx context.Context, sess *Session) types.ToolPlan
}

// ObservationGateway runs tool calls. *tools.Gateway satisfies it.
type ObservationGateway interface {
	Execute(ctx context.Context, sess tools.Session, calls []types.ToolCall) []types.Observation
}

// DecisionMaker turns an observation into a decision.
type DecisionMaker interface {
	Decide(ctx context.Context, sess *Session, obs types.Observation) types.Decision
}

// ActionRunner presses buttons.
type ActionRunner interface {
	Execute(ctx context.Context, actions []types.ActionSymbol) ExecutionReport
}

// Config holds loop settings
type Config struct {
	CycleDelay time.Duration
	FrameStep  int
	MaxCycles  int // 0 runs until cancelled
	StateDir   string
	Fallback   types.ActionSymbol
}

func ConfigFrom(cfg *config.Config) *Config {
	fallback, _ := types.ParseActionSymbol(cfg.Actions.Fallback)
	return &Config{
		CycleDelay: cfg.Loop.CycleDelay,
		FrameStep:  cfg.Loop.FrameStep,
		MaxCycles:  cfg.Loop.MaxCycles,
		StateDir:   cfg.StateDir,
		Fallback:   fallback,
	}
}

// CycleReport is everything one cycle did.
type CycleReport struct {
	Cycle        int
	Frame        int
	Plan         types.ToolPlan
	Observations []types.Observation
	// Used is the observation handed to the decision maker, nil when none
	// succeeded.
	Used          *types.Observation
	Decision      types.Decision
	MemoryChanged bool
	Execution     ExecutionReport
	Duration      time.Duration
}

// Orchestrator sequences one session's cycles.
type Orchestrator struct {
	session  *Session
	planner  ToolPlanner
	gateway  ObservationGateway
	decider  DecisionMaker
	executor ActionRunner
	cfg      Config

	sink    Sink
	closer  io.Closer
	logger  *zap.Logger
	metrics *observability.Metrics

	closeOnce sync.Once
	closeErr  error
}

type Option func(*Orchestrator)

// WithSink delivers loop events to s.
func WithSink(s Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithCloser releases c when the orchestrator closes, typically the
// emulator driver.
func WithCloser(c io.Closer) Option {
	return func(o *Orchestrator) { o.closer = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(sess *Session, planner ToolPlanner, gateway ObservationGateway, decider DecisionMaker, executor ActionRunner, cfg *Config, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = &Config{
			CycleDelay: 500 * time.Millisecond,
			FrameStep:  15,
			Fallback:   types.ActionA,
		}
	}
	o := &Orchestrator{
		session:  sess,
		planner:  planner,
		gateway:  gateway,
		decider:  decider,
		executor: executor,
		cfg:      *cfg,
		sink:     func(Event) {},
		logger:   zap.NewNop(),
	}
	if o.cfg.FrameStep < 1 {
		o.cfg.FrameStep = 15
	}
	if !o.cfg.Fallback.Valid() {
		o.cfg.Fallback = types.ActionA
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("orchestrator")
	return o
}

func (o *Orchestrator) Session() *Session { return o.session }

// Run cycles until ctx is cancelled or MaxCycles is reached, then closes
// the orchestrator. Cancellation is a normal stop and returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.Close()

	o.logger.Info("starting session",
		zap.String("session", o.session.ID),
		zap.Int("memories", len(o.session.entries)),
		zap.Int("screenshots", o.session.ScreenshotCount()),
	)

	for {
		if o.cfg.MaxCycles > 0 && o.session.Cycles >= o.cfg.MaxCycles {
			o.logger.Info("cycle limit reached", zap.Int("cycles", o.session.Cycles))
			return nil
		}

		if _, err := o.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				o.logger.Info("stopping", zap.Int("cycles", o.session.Cycles))
				return nil
			}
			return err
		}

		if err := pause(ctx, o.cfg.CycleDelay); err != nil {
			o.logger.Info("stopping", zap.Int("cycles", o.session.Cycles))
			return nil
		}
	}
}

// RunCycle performs one plan, observe, decide, remember, act pass. It only
// fails when ctx is done.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleReport, error) {
	start := time.Now()
	sess := o.session
	sess.Frame += o.cfg.FrameStep
	sess.Cycles++
	report := CycleReport{Cycle: sess.Cycles, Frame: sess.Frame}
	log := o.logger.With(zap.Int("cycle", report.Cycle), zap.Int("frame", report.Frame))

	// Phase 1: plan
	log.Info("deciding what to observe")
	report.Plan = o.planner.Plan(ctx, sess)
	o.emit(Event{Kind: EventPlan, Plan: &report.Plan}, report)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Phase 2: observe
	report.Observations = o.gateway.Execute(ctx, sess, report.Plan.Calls)
	for i := range report.Observations {
		obs := report.Observations[i]
		o.emit(Event{Kind: EventObservation, Observation: &obs}, report)
		if obs.OK() {
			report.Used = &obs
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Phase 3: decide
	if report.Used != nil {
		log.Info("deciding from observation", zap.Stringer("kind", report.Used.Kind), zap.Int("index", report.Used.Index))
		report.Decision = o.decider.Decide(ctx, sess, *report.Used)
	} else {
		log.Warn("no observation succeeded")
		o.emit(Event{Kind: EventError, Err: errNoObservation}, report)
		report.Decision = types.FallbackDecision(noObservationReasoning, o.cfg.Fallback)
	}
	if len(report.Decision.Actions) == 0 {
		report.Decision.Actions = []types.ActionSymbol{o.cfg.Fallback}
	}
	o.emit(Event{Kind: EventDecision, Decision: &report.Decision}, report)
	log.Info("decision",
		zap.String("reasoning", report.Decision.Reasoning),
		zap.Any("actions", report.Decision.Actions),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Phase 4: remember
	if u := report.Decision.MemoryUpdates; !u.Empty() {
		store := sess.Store()
		prev := len(sess.entries)
		entries := store.ApplyUpdates(sess.entries, u)
		entries = store.MaybeCleanup(ctx, prev, entries)
		sess.setMemory(entries)
		report.MemoryChanged = true
		o.emit(Event{Kind: EventMemory, Memory: sess.Memory()}, report)
	}

	// Phase 5: act
	report.Execution = o.executor.Execute(ctx, report.Decision.Actions)
	o.emit(Event{Kind: EventActions, Execution: &report.Execution}, report)

	report.Duration = time.Since(start)
	o.metrics.RecordCycle(len(sess.entries), sess.ScreenshotCount())
	o.saveSnapshot(report)

	return report, ctx.Err()
}

var errNoObservation = errors.New("no visual information available")

func (o *Orchestrator) emit(e Event, r CycleReport) {
	e.Cycle = r.Cycle
	e.Frame = r.Frame
	o.sink(e)
}

func (o *Orchestrator) saveSnapshot(r CycleReport) {
	if o.cfg.StateDir == "" {
		return
	}
	if err := o.session.snapshot(r).Save(o.cfg.StateDir); err != nil {
		o.logger.Warn("failed to save state", zap.Error(err))
	}
}

// Close releases the emulator. Safe to call more than once.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		if o.closer != nil {
			o.closeErr = o.closer.Close()
		}
	})
	return o.closeErr
}
