package tools

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/observability"
	"github.com/jeanpaul/gbagent/internal/provider"
	"github.com/jeanpaul/gbagent/internal/storage"
	"github.com/jeanpaul/gbagent/internal/types"
)

type fakeFrames struct {
	frame []byte
	err   error
	calls int
}

func (f *fakeFrames) CaptureFrame(context.Context) ([]byte, error) {
	f.calls++
	return f.frame, f.err
}

type reasonerCall struct {
	purpose string
	msgs    []provider.Message
}

type fakeReasoner struct {
	reply string
	err   error
	calls []reasonerCall
}

func (f *fakeReasoner) Call(_ context.Context, purpose string, msgs ...provider.Message) (string, error) {
	f.calls = append(f.calls, reasonerCall{purpose, msgs})
	return f.reply, f.err
}

type fakePrompts struct{}

func (fakePrompts) Vision() string { return "describe" }

func (fakePrompts) DirectVision(memory []string, n int) string {
	return "direct with memory"
}

type fakeSession struct {
	next   int
	memory []string
}

func (s *fakeSession) NextScreenshotIndex() int { s.next++; return s.next }
func (s *fakeSession) ScreenshotCount() int     { return s.next }
func (s *fakeSession) Memory() []string         { return s.memory }

func newArchive(t *testing.T) *storage.Archive {
	t.Helper()
	a, err := storage.NewArchive(t.TempDir(), time.Minute)
	require.NoError(t, err)
	return a
}

func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStoredScreenshot_Success(t *testing.T) {
	archive := newArchive(t)
	frames := &fakeFrames{frame: []byte("png-bytes")}
	reasoner := &fakeReasoner{reply: "Title screen with PRESS START"}
	tool := &StoredScreenshotTool{Frames: frames, Archive: archive, Reasoner: reasoner, Prompts: fakePrompts{}, Logger: zap.NewNop()}
	sess := &fakeSession{next: 4}

	obs := tool.Execute(context.Background(), sess, types.ToolCall{Tool: types.ToolStoredScreenshot})

	assert.Equal(t, types.StoredScreenshot(5, "Title screen with PRESS START"), obs)
	assert.Equal(t, "Screenshot 5: Title screen with PRESS START", obs.Summary())

	saved, err := archive.Frame(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), saved)

	desc, ok, err := archive.Description(5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Title screen with PRESS START", desc)

	require.Len(t, reasoner.calls, 1)
	assert.Equal(t, config.PurposeVision, reasoner.calls[0].purpose)
	msg := reasoner.calls[0].msgs[0]
	assert.Equal(t, "describe", msg.Content)
	require.Len(t, msg.Images, 1)
	assert.Equal(t, []byte("png-bytes"), msg.Images[0].Data)
}

func TestStoredScreenshot_VisionFailureStillStores(t *testing.T) {
	archive := newArchive(t)
	tool := &StoredScreenshotTool{
		Frames:   &fakeFrames{frame: []byte("png")},
		Archive:  archive,
		Reasoner: &fakeReasoner{err: provider.ErrNoResult},
		Prompts:  fakePrompts{},
		Logger:   zap.NewNop(),
	}

	obs := tool.Execute(context.Background(), &fakeSession{}, types.ToolCall{})
	assert.Equal(t, types.ObservationStoredScreenshot, obs.Kind)
	assert.Equal(t, "Vision analysis failed", obs.Description)

	desc, ok, _ := archive.Description(1)
	assert.True(t, ok)
	assert.Equal(t, "Vision analysis failed", desc)
}

func TestStoredScreenshot_CaptureFailure(t *testing.T) {
	sess := &fakeSession{}
	tool := &StoredScreenshotTool{
		Frames:   &fakeFrames{err: errors.New("no browser")},
		Archive:  newArchive(t),
		Reasoner: &fakeReasoner{},
		Prompts:  fakePrompts{},
		Logger:   zap.NewNop(),
	}

	obs := tool.Execute(context.Background(), sess, types.ToolCall{})
	assert.False(t, obs.OK())
	assert.Equal(t, "Failed to take screenshot", obs.Reason)
	assert.Equal(t, 0, sess.next, "index must not advance without a frame")
}

func TestRecallScreenshot(t *testing.T) {
	archive := newArchive(t)
	require.NoError(t, archive.SaveDescription(3, "Route 1, tall grass"))
	tool := &RecallScreenshotTool{Archive: archive, Logger: zap.NewNop()}

	obs := tool.Execute(context.Background(), nil, types.ToolCall{Tool: types.ToolRecallScreenshot, Index: 3})
	assert.Equal(t, types.RecalledScreenshot(3, "Route 1, tall grass"), obs)

	obs = tool.Execute(context.Background(), nil, types.ToolCall{Tool: types.ToolRecallScreenshot, Index: 9})
	assert.Equal(t, types.ObservationRecalledScreenshot, obs.Kind)
	assert.Equal(t, "No description found for screenshot 9", obs.Description)

	obs = tool.Execute(context.Background(), nil, types.ToolCall{Tool: types.ToolRecallScreenshot})
	assert.False(t, obs.OK())
	assert.Equal(t, "No screenshot number provided for recall", obs.Reason)
}

func TestDirectVision(t *testing.T) {
	reasoner := &fakeReasoner{reply: "A battle menu: FIGHT is highlighted"}
	tool := &DirectVisionTool{Frames: &fakeFrames{frame: []byte("png")}, Reasoner: reasoner, Prompts: fakePrompts{}, Logger: zap.NewNop()}

	obs := tool.Execute(context.Background(), &fakeSession{memory: []string{"m"}}, types.ToolCall{})
	assert.Equal(t, types.DirectVision("A battle menu: FIGHT is highlighted"), obs)
	assert.Equal(t, "Direct Vision Analysis: A battle menu: FIGHT is highlighted", obs.Summary())

	require.Len(t, reasoner.calls, 1)
	call := reasoner.calls[0]
	assert.Equal(t, config.PurposeDirectVision, call.purpose)
	require.Len(t, call.msgs, 2)
	assert.Equal(t, provider.RoleSystem, call.msgs[0].Role)
	assert.Len(t, call.msgs[1].Images, 1)
}

func TestDirectVision_Failures(t *testing.T) {
	tool := &DirectVisionTool{Frames: &fakeFrames{err: errors.New("gone")}, Reasoner: &fakeReasoner{}, Prompts: fakePrompts{}, Logger: zap.NewNop()}
	obs := tool.Execute(context.Background(), &fakeSession{}, types.ToolCall{})
	assert.Equal(t, types.Failure("Direct vision analysis failed"), obs)

	tool = &DirectVisionTool{Frames: &fakeFrames{frame: []byte("png")}, Reasoner: &fakeReasoner{err: provider.ErrNoResult}, Prompts: fakePrompts{}, Logger: zap.NewNop()}
	obs = tool.Execute(context.Background(), &fakeSession{}, types.ToolCall{})
	assert.False(t, obs.OK())
}

func TestGateway_ExecuteInOrder(t *testing.T) {
	archive := newArchive(t)
	require.NoError(t, archive.SaveDescription(1, "old frame"))

	r := NewRegistry()
	RegisterDefaults(r, &fakeFrames{frame: []byte("png")}, archive, &fakeReasoner{reply: "new frame"}, fakePrompts{}, Options{})
	m := observability.NewMetrics()
	g := NewGateway(r, zap.NewNop(), m)

	sess := &fakeSession{next: 1}
	obs := g.Execute(context.Background(), sess, []types.ToolCall{
		{Tool: types.ToolRecallScreenshot, Index: 1},
		{Tool: types.ToolStoredScreenshot},
		{Tool: "teleport"},
	})

	require.Len(t, obs, 3)
	assert.Equal(t, types.RecalledScreenshot(1, "old frame"), obs[0])
	assert.Equal(t, types.StoredScreenshot(2, "new frame"), obs[1])
	assert.Equal(t, types.Failure("unknown tool: teleport"), obs[2])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Observations.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Observations.WithLabelValues("stored_screenshot")))
}

func TestRegistryDescribe(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r, nil, nil, nil, nil, Options{})
	desc := r.Describe()
	assert.Contains(t, desc, "- analyze_with_vision: analyze_with_vision()")
	assert.Contains(t, desc, "- recall_screenshot: recall_screenshot(N)")
	assert.Contains(t, desc, "- take_screenshot: take_screenshot()")
}

func TestDownscale_BelowThresholdUnchanged(t *testing.T) {
	frame := noisePNG(t, 40, 20)
	r := Resizer{Threshold: 500000, MaxDimension: 10}
	assert.Equal(t, frame, r.Downscale(frame))
}

func TestDownscale_ResizesLongestSide(t *testing.T) {
	frame := noisePNG(t, 400, 200)
	r := Resizer{Threshold: 1, MaxDimension: 100}

	out := r.Downscale(frame)
	require.Less(t, len(out), len(frame))

	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestDownscale_UndecodableReturnsOriginal(t *testing.T) {
	frame := []byte("definitely not a png")
	r := Resizer{Threshold: 1, MaxDimension: 100}
	assert.Equal(t, frame, r.Downscale(frame))
}

func TestFitWithin(t *testing.T) {
	w, h := fitWithin(2400, 1600, 1200)
	assert.Equal(t, 1200, w)
	assert.Equal(t, 800, h)

	w, h = fitWithin(300, 900, 600)
	assert.Equal(t, 200, w)
	assert.Equal(t, 600, h)

	w, h = fitWithin(240, 160, 1200)
	assert.Equal(t, 240, w)
	assert.Equal(t, 160, h)
}
