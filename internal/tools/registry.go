package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/observability"
	"github.com/jeanpaul/gbagent/internal/types"
)

type Registry struct {
	tools map[types.ToolKind]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[types.ToolKind]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name types.ToolKind) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Describe lists the registered tools for the planner prompt, sorted by
// name so the prompt is stable between cycles.
func (r *Registry) Describe() string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, string(name))
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.tools[types.ToolKind(name)].Description())
	}
	return b.String()
}

// Gateway runs planned tool calls in order.
type Gateway struct {
	registry *Registry
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewGateway(r *Registry, logger *zap.Logger, metrics *observability.Metrics) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{registry: r, logger: logger.Named("tools"), metrics: metrics}
}

func (g *Gateway) Registry() *Registry { return g.registry }

// Execute returns one observation per call, in call order.
func (g *Gateway) Execute(ctx context.Context, sess Session, calls []types.ToolCall) []types.Observation {
	out := make([]types.Observation, 0, len(calls))
	for _, call := range calls {
		var obs types.Observation
		t, ok := g.registry.Get(call.Tool)
		if !ok {
			obs = types.Failure(fmt.Sprintf("unknown tool: %s", call.Tool))
		} else {
			obs = t.Execute(ctx, sess, call)
		}

		g.metrics.RecordObservation(obs.Kind.String())
		if obs.OK() {
			g.logger.Info("observation",
				zap.String("tool", string(call.Tool)),
				zap.Stringer("kind", obs.Kind),
				zap.Int("index", obs.Index),
			)
		} else {
			g.logger.Warn("observation failed",
				zap.String("tool", string(call.Tool)),
				zap.String("reason", obs.Reason),
			)
		}
		out = append(out, obs)
	}
	return out
}

// Options configure the default tool set.
type Options struct {
	OptimizeThreshold int
	MaxDimension      int
	Logger            *zap.Logger
}

// RegisterDefaults registers the three observation tools.
func RegisterDefaults(r *Registry, frames FrameSource, archive Archive, reasoner Reasoner, prompts Prompter, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resize := Resizer{Threshold: opts.OptimizeThreshold, MaxDimension: opts.MaxDimension}

	r.Register(&StoredScreenshotTool{
		Frames:   frames,
		Archive:  archive,
		Reasoner: reasoner,
		Prompts:  prompts,
		Resize:   resize,
		Logger:   logger,
	})
	r.Register(&RecallScreenshotTool{Archive: archive, Logger: logger})
	r.Register(&DirectVisionTool{
		Frames:   frames,
		Reasoner: reasoner,
		Prompts:  prompts,
		Resize:   resize,
		Logger:   logger,
	})
}
