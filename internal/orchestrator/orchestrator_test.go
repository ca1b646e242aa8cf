package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/jeanpaul/gbagent/internal/memory"
	"github.com/jeanpaul/gbagent/internal/observability"
	"github.com/jeanpaul/gbagent/internal/provider"
	"github.com/jeanpaul/gbagent/internal/storage"
	"github.com/jeanpaul/gbagent/internal/tools"
	"github.com/jeanpaul/gbagent/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// screenshot archive description cache
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

// scriptedReasoner answers by purpose.
type scriptedReasoner struct {
	mu      sync.Mutex
	replies map[string]func(msgs []provider.Message) (string, error)
	calls   []string
	msgs    map[string][]provider.Message
}

func newScriptedReasoner() *scriptedReasoner {
	return &scriptedReasoner{
		replies: map[string]func([]provider.Message) (string, error){},
		msgs:    map[string][]provider.Message{},
	}
}

func (r *scriptedReasoner) reply(purpose, text string) *scriptedReasoner {
	r.replies[purpose] = func([]provider.Message) (string, error) { return text, nil }
	return r
}

func (r *scriptedReasoner) fail(purpose string, err error) *scriptedReasoner {
	r.replies[purpose] = func([]provider.Message) (string, error) { return "", err }
	return r
}

func (r *scriptedReasoner) Call(_ context.Context, purpose string, msgs ...provider.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, purpose)
	r.msgs[purpose] = msgs
	fn, ok := r.replies[purpose]
	if !ok {
		return "", fmt.Errorf("%w: no reply scripted for %s", provider.ErrNoResult, purpose)
	}
	return fn(msgs)
}

type keyEvent struct {
	dir types.KeyDirection
	key string
	at  time.Time
}

// recordingSurface records key events; failOn makes the Nth call (1-based)
// fail.
type recordingSurface struct {
	events []keyEvent
	failOn int
}

func (s *recordingSurface) SendKey(_ context.Context, dir types.KeyDirection, b types.KeyBinding) error {
	s.events = append(s.events, keyEvent{dir: dir, key: b.Key, at: time.Now()})
	if len(s.events) == s.failOn {
		return errors.New("automation hiccup")
	}
	return nil
}

// stubTool returns a fixed observation, numbering stored screenshots from
// the session like the real tool does.
type stubTool struct {
	kind types.ToolKind
	desc string
	fail bool
}

func (t *stubTool) Name() types.ToolKind { return t.kind }
func (t *stubTool) Description() string  { return "stub " + string(t.kind) }

func (t *stubTool) Execute(_ context.Context, sess tools.Session, _ types.ToolCall) types.Observation {
	if t.fail {
		return types.Failure("Failed to take screenshot")
	}
	return types.StoredScreenshot(sess.NextScreenshotIndex(), t.desc)
}

type harness struct {
	orch     *Orchestrator
	reasoner *scriptedReasoner
	surface  *recordingSurface
	blob     *storage.MemBlob
	metrics  *observability.Metrics
	events   []Event
}

func newHarness(t *testing.T, r *scriptedReasoner, tool tools.Tool, cfg *Config) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	h := &harness{reasoner: r, surface: &recordingSurface{}, blob: &storage.MemBlob{}, metrics: observability.NewMetrics()}

	prompts := MustPrompts()
	store := memory.NewStore(h.blob, memory.WithLogger(logger))
	reg := tools.NewRegistry()
	reg.Register(tool)

	sess := NewSession(store, 0)
	h.orch = NewOrchestrator(sess,
		NewPlanner(r, prompts, reg, types.ToolStoredScreenshot, logger),
		tools.NewGateway(reg, logger, h.metrics),
		NewDecider(r, prompts, types.ActionA, logger),
		NewExecutor(h.surface, 0, 0, logger, h.metrics),
		cfg,
		WithLogger(logger),
		WithMetrics(h.metrics),
		WithSink(func(e Event) { h.events = append(h.events, e) }),
	)
	return h
}

func TestRunCycle_EndToEnd(t *testing.T) {
	r := newScriptedReasoner().
		reply("tool_selection", `{"tool_calls": [{"tool": "take_screenshot"}], "reasoning": "need to see current screen"}`).
		reply("gameplay", `{"reasoning": "title screen", "actions": ["START"], "memory_updates": {"add": ["pressed start on title"]}}`)
	h := newHarness(t, r, &stubTool{kind: types.ToolStoredScreenshot, desc: "title screen"}, nil)

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	// memory: seed plus one
	mem := h.orch.Session().Memory()
	require.Len(t, mem, 6)
	assert.Equal(t, "pressed start on title", mem[5])
	assert.Equal(t, memory.Seed, mem[:5])
	assert.Equal(t, 1, h.blob.Writes)

	// exactly one START press
	require.Len(t, h.surface.events, 2)
	assert.Equal(t, "Enter", h.surface.events[0].key)
	assert.Equal(t, types.KeyDown, h.surface.events[0].dir)
	assert.Equal(t, "Enter", h.surface.events[1].key)
	assert.Equal(t, types.KeyUp, h.surface.events[1].dir)

	require.NotNil(t, report.Used)
	assert.Equal(t, types.StoredScreenshot(1, "title screen"), *report.Used)
	assert.Equal(t, 1, report.Cycle)
	assert.Equal(t, 15, report.Frame)
	assert.True(t, report.MemoryChanged)
	assert.Equal(t, []types.ActionSymbol{types.ActionStart}, report.Execution.Sent)
	assert.Equal(t, []string{"tool_selection", "gameplay"}, r.calls)

	// the observation reached the gameplay prompt
	gameplay := r.msgs["gameplay"]
	require.Len(t, gameplay, 2)
	assert.Contains(t, gameplay[0].Content, "CURRENT VISUAL: title screen")
	assert.Contains(t, gameplay[0].Content, "5. MEMORY: Track important NPCs")
	assert.Equal(t, "Current screen: title screen. What should you do next?", gameplay[1].Content)

	kinds := make([]EventKind, 0, len(h.events))
	for _, e := range h.events {
		kinds = append(kinds, e.Kind)
		assert.Equal(t, 1, e.Cycle)
	}
	assert.Equal(t, []EventKind{EventPlan, EventObservation, EventDecision, EventMemory, EventActions}, kinds)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Cycles))
	assert.Equal(t, float64(6), testutil.ToFloat64(h.metrics.MemoryEntries))
}

func TestRunCycle_NoObservationTakesConservativeAction(t *testing.T) {
	r := newScriptedReasoner().
		reply("tool_selection", `{"tool_calls": [{"tool": "take_screenshot"}]}`)
	h := newHarness(t, r, &stubTool{kind: types.ToolStoredScreenshot, fail: true}, nil)

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Nil(t, report.Used)
	assert.Equal(t, types.FallbackDecision(noObservationReasoning, types.ActionA), report.Decision)
	assert.False(t, report.MemoryChanged)
	assert.Equal(t, 0, h.blob.Writes)
	assert.NotContains(t, r.calls, "gameplay")

	require.Len(t, h.surface.events, 2)
	assert.Equal(t, "z", h.surface.events[0].key)

	var sawError bool
	for _, e := range h.events {
		if e.Kind == EventError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestRunCycle_EverythingFailsStillActs(t *testing.T) {
	r := newScriptedReasoner().
		fail("tool_selection", provider.ErrNoResult).
		fail("gameplay", provider.ErrNoResult)
	h := newHarness(t, r, &stubTool{kind: types.ToolStoredScreenshot, desc: "overworld"}, nil)

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "API failed, taking screenshot", report.Plan.Reasoning)
	assert.Equal(t, "API failed, using fallback", report.Decision.Reasoning)
	assert.Equal(t, []types.ActionSymbol{types.ActionA}, report.Execution.Sent)
}

func TestRunCycle_UsesMostRecentSuccess(t *testing.T) {
	r := newScriptedReasoner().
		reply("tool_selection", `{"tool_calls": [{"tool": "take_screenshot"}, {"tool": "take_screenshot"}, {"tool": "bogus"}]}`).
		reply("gameplay", `{"actions": ["B"]}`)
	h := newHarness(t, r, &stubTool{kind: types.ToolStoredScreenshot, desc: "menu"}, nil)

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Observations, 3)
	assert.Equal(t, "unknown tool: bogus", report.Observations[2].Reason)
	require.NotNil(t, report.Used)
	assert.Equal(t, 2, report.Used.Index)
	assert.Equal(t, 2, h.orch.Session().ScreenshotCount())
}

func TestRun_StopsAtMaxCyclesAndCloses(t *testing.T) {
	r := newScriptedReasoner().
		reply("tool_selection", `{"tool_calls": [{"tool": "take_screenshot"}]}`).
		reply("gameplay", `{"actions": ["A", "A"], "memory_updates": {"add": ["advanced dialog"]}}`)
	h := newHarness(t, r, &stubTool{kind: types.ToolStoredScreenshot, desc: "dialog"},
		&Config{CycleDelay: time.Millisecond, FrameStep: 15, MaxCycles: 3})
	closer := &countingCloser{}
	WithCloser(closer)(h.orch)

	require.NoError(t, h.orch.Run(context.Background()))

	sess := h.orch.Session()
	assert.Equal(t, 3, sess.Cycles)
	assert.Equal(t, 45, sess.Frame)
	assert.Len(t, sess.Memory(), 8)
	assert.Len(t, h.surface.events, 12)
	assert.Equal(t, 1, closer.calls)

	require.NoError(t, h.orch.Close())
	assert.Equal(t, 1, closer.calls)
}

func TestRun_CancelIsCleanStop(t *testing.T) {
	r := newScriptedReasoner().
		reply("tool_selection", `{"tool_calls": [{"tool": "take_screenshot"}]}`).
		reply("gameplay", `{"actions": ["A"]}`)
	h := newHarness(t, r, &stubTool{kind: types.ToolStoredScreenshot, desc: "x"},
		&Config{CycleDelay: time.Hour, FrameStep: 15})
	closer := &countingCloser{}
	WithCloser(closer)(h.orch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Run(ctx) }()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.calls) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, 1, closer.calls)
}

func TestRunCycle_WritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	r := newScriptedReasoner().
		reply("tool_selection", `{"tool_calls": [{"tool": "take_screenshot"}]}`).
		reply("gameplay", `{"reasoning": "walk", "actions": ["UP", "JUMP"]}`)
	h := newHarness(t, r, &stubTool{kind: types.ToolStoredScreenshot, desc: "route 1"},
		&Config{FrameStep: 15, StateDir: dir})

	_, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	sess := h.orch.Session()
	snap, err := LoadSnapshot(filepath.Join(dir, sess.ID+".json"))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, snap.SessionID)
	assert.Equal(t, 1, snap.Cycle)
	assert.Equal(t, 1, snap.ScreenshotCount)
	assert.Equal(t, []string{"Screenshot 1: route 1"}, snap.Observations)
	assert.Equal(t, "walk", snap.Decision.Reasoning)
	assert.Equal(t, []types.ActionSymbol{types.ActionUp}, snap.Execution.Sent)
	assert.Equal(t, []types.ActionSymbol{"JUMP"}, snap.Execution.Skipped)
	assert.Len(t, snap.Memory, 5)
}

func TestRunCycle_CleanupAfterUpdate(t *testing.T) {
	entries := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		entries = append(entries, "Talked to Mom")
	}
	r := newScriptedReasoner().
		reply("tool_selection", `{"tool_calls": [{"tool": "take_screenshot"}]}`).
		reply("gameplay", `{"actions": ["A"], "memory_updates": {"add": ["Talked to Mom"]}}`).
		reply("memory_cleanup", `["GOAL: beat the Elite 4", "Talked to Mom"]`)

	logger := zaptest.NewLogger(t)
	prompts := MustPrompts()
	blob := &storage.MemBlob{}
	seed := memory.NewStore(blob)
	require.NoError(t, seed.Save(entries))

	store := memory.NewStore(blob,
		memory.WithLogger(logger),
		memory.WithCleanup(memory.DefaultCleanupPolicy(), NewCondenser(r, prompts)),
	)
	reg := tools.NewRegistry()
	reg.Register(&stubTool{kind: types.ToolStoredScreenshot, desc: "house"})
	orch := NewOrchestrator(NewSession(store, 0),
		NewPlanner(r, prompts, reg, "", logger),
		tools.NewGateway(reg, logger, nil),
		NewDecider(r, prompts, types.ActionA, logger),
		NewExecutor(&recordingSurface{}, 0, 0, logger, nil),
		nil,
	)

	_, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GOAL: beat the Elite 4", "Talked to Mom"}, orch.Session().Memory())
	assert.Equal(t, []string{"GOAL: beat the Elite 4", "Talked to Mom"}, store.Load())
}

type countingCloser struct{ calls int }

func (c *countingCloser) Close() error {
	c.calls++
	return nil
}
