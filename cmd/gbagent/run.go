package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/emulator"
	"github.com/jeanpaul/gbagent/internal/headless"
	"github.com/jeanpaul/gbagent/internal/memory"
	"github.com/jeanpaul/gbagent/internal/observability"
	"github.com/jeanpaul/gbagent/internal/orchestrator"
	"github.com/jeanpaul/gbagent/internal/provider"
	"github.com/jeanpaul/gbagent/internal/storage"
	"github.com/jeanpaul/gbagent/internal/tools"
	"github.com/jeanpaul/gbagent/internal/tui"
	"github.com/jeanpaul/gbagent/internal/types"
)

var (
	runMaxCycles int
	runHeadless  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the emulator and play until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("max-cycles") {
			cfg.Loop.MaxCycles = runMaxCycles
		}
		if cmd.Flags().Changed("headless") {
			cfg.Emulator.Headless = runHeadless
		}
		return play(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().IntVar(&runMaxCycles, "max-cycles", 0, "stop after this many cycles (0 runs until interrupted)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run Chrome without a window")
	rootCmd.AddCommand(runCmd)
}

// play wires every component and runs the loop until ctx is cancelled,
// the cycle limit is hit or an interrupt arrives.
func play(parent context.Context, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := observability.GetLogger()
	if err := cfg.CheckPrerequisites(); err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	client := newReasoningClient(logger, metrics)

	pack, err := config.LoadPromptPack(cfg.PromptsFile)
	if err != nil {
		return err
	}
	prompts, err := orchestrator.NewPrompts(pack)
	if err != nil {
		return err
	}

	archive, err := storage.NewArchive(cfg.Screenshots.Dir, cfg.Screenshots.CacheTTL)
	if err != nil {
		return err
	}
	last, err := archive.LatestIndex()
	if err != nil {
		logger.Warn("could not scan screenshots, numbering from 1", zap.Error(err))
		last = 0
	}

	store := newMemoryStore(client, prompts, logger)
	sess := orchestrator.NewSession(store, last)

	fmt.Fprint(out, tui.RenderBanner("session "+sess.ID))

	driver, err := emulator.Launch(cfg.Emulator, logger)
	if err != nil {
		return err
	}
	if err := driver.Boot(ctx, cfg.Emulator.Page, cfg.Emulator.ROM); err != nil {
		_ = driver.Close()
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	reg := tools.NewRegistry()
	tools.RegisterDefaults(reg, driver, archive, client, prompts, tools.Options{
		OptimizeThreshold: cfg.Screenshots.OptimizeThreshold,
		MaxDimension:      cfg.Screenshots.MaxDimension,
		Logger:            logger,
	})

	loopCfg := orchestrator.ConfigFrom(cfg)
	defaultTool, _ := types.ParseToolKind(cfg.Loop.DefaultTool)

	orch := orchestrator.NewOrchestrator(
		sess,
		orchestrator.NewPlanner(client, prompts, reg, defaultTool, logger),
		tools.NewGateway(reg, logger, metrics),
		orchestrator.NewDecider(client, prompts, loopCfg.Fallback, logger),
		orchestrator.NewExecutor(driver, cfg.Actions.Delay, cfg.Actions.Settle, logger, metrics),
		loopCfg,
		orchestrator.WithSink(headless.NewPrinter(out).Sink()),
		orchestrator.WithCloser(driver),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics),
	)
	defer orch.Close()

	logger.Info("agent started",
		zap.String("session", sess.ID),
		zap.Int("memory_entries", len(sess.Memory())),
		zap.Int("screenshots", last),
	)
	return orch.Run(ctx)
}

func newProvider() provider.Provider {
	p := cfg.Provider()
	return provider.NewOpenAI(cfg.DefaultProvider, p.BaseURL, p.APIKey, p.Model)
}

func newReasoningClient(logger *zap.Logger, metrics *observability.Metrics) *provider.Client {
	return provider.NewClient(newProvider(), provider.PolicyFromConfig(cfg),
		provider.WithRequestsPerMinute(cfg.Reasoning.RequestsPerMinute),
		provider.WithLogger(logger),
		provider.WithMetrics(metrics),
	)
}

func cleanupPolicy() memory.CleanupPolicy {
	return memory.CleanupPolicy{
		MinEntries: cfg.Memory.CleanupMinEntries,
		Checkpoint: cfg.Memory.CleanupCheckpoint,
		Interval:   cfg.Memory.CleanupInterval,
		Window:     cfg.Memory.DuplicateWindow,
		Ratio:      cfg.Memory.DuplicateRatio,
	}
}

func newMemoryStore(r tools.Reasoner, prompts *orchestrator.Prompts, logger *zap.Logger) *memory.Store {
	opts := []memory.Option{
		memory.WithMaxEntries(cfg.Memory.MaxEntries),
		memory.WithLogger(logger),
	}
	if r != nil {
		opts = append(opts, memory.WithCleanup(cleanupPolicy(), orchestrator.NewCondenser(r, prompts)))
	}
	return memory.NewStore(storage.File{Path: cfg.Memory.File}, opts...)
}
