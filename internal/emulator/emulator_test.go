package emulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/types"
)

type fakePage struct {
	actions []chromedp.Action
	runErr  error
	evalFn  func(expr string) (any, error)
	exprs   []string
	shot    []byte
	shotErr error
}

func (p *fakePage) Run(_ context.Context, actions ...chromedp.Action) error {
	p.actions = append(p.actions, actions...)
	return p.runErr
}

func (p *fakePage) Eval(_ context.Context, expr string, res any) error {
	p.exprs = append(p.exprs, expr)
	if p.evalFn == nil {
		return errors.New("no evaluator")
	}
	v, err := p.evalFn(expr)
	if err != nil {
		return err
	}
	b, _ := json.Marshal(v)
	return json.Unmarshal(b, res)
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	return p.shot, p.shotErr
}

func testDriver(t *testing.T, p page) *Driver {
	return newDriver(p, config.EmulatorConfig{ReadyPolls: 3, ReadyInterval: time.Millisecond, KeyTimeout: time.Second}, zaptest.NewLogger(t))
}

// noisePNG does not compress well, so a crop survives the minimum size check.
func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(7))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParseReadyState(t *testing.T) {
	assert.Equal(t, ReadyGameLoaded, ParseReadyState("GAME_FULLY_LOADED"))
	assert.Equal(t, ReadyCanvasTooSmall, ParseReadyState(" CANVAS_TOO_SMALL\n"))
	assert.Equal(t, ReadyUnknown, ParseReadyState("CANVAS_CHECK_ERROR: boom"))
	assert.True(t, ReadyGameLoaded.Ready())
	assert.False(t, ReadyEmulatorStarted.Ready())
}

func TestWaitReady(t *testing.T) {
	states := []string{"NO_CANVAS", "EMULATOR_STARTED", "GAME_FULLY_LOADED"}
	p := &fakePage{evalFn: func(expr string) (any, error) {
		if expr == dismissNetplayJS {
			return false, nil
		}
		s := states[0]
		states = states[1:]
		return s, nil
	}}
	d := testDriver(t, p)

	state, err := d.WaitReady(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReadyGameLoaded, state)
}

func TestWaitReady_GivesUp(t *testing.T) {
	p := &fakePage{evalFn: func(expr string) (any, error) {
		if expr == dismissNetplayJS {
			return true, nil
		}
		return "CANVAS_READY_CHECKING_CONTENT", nil
	}}
	d := testDriver(t, p)

	state, err := d.WaitReady(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, ReadyCheckingContent, state)
}

func TestCropBounds(t *testing.T) {
	r := canvasRect{X: 100, Y: 50, Width: 480, Height: 320, DevicePixelRatio: 2}
	assert.Equal(t, image.Rect(200, 100, 1160, 740), cropBounds(r, 2000, 1000))

	// clamped to the image
	assert.Equal(t, image.Rect(200, 100, 1000, 600), cropBounds(r, 1000, 600))

	// origin past the edge is pulled back inside
	far := canvasRect{X: 900, Y: 900, Width: 200, Height: 200, DevicePixelRatio: 1}
	assert.Equal(t, image.Rect(490, 290, 500, 300), cropBounds(far, 500, 300))

	zero := canvasRect{X: 10, Y: 10, Width: 100, Height: 100}
	assert.Equal(t, image.Rect(10, 10, 110, 110), cropBounds(zero, 500, 300))
}

func TestCaptureFrame_CropsCanvas(t *testing.T) {
	p := &fakePage{
		shot: noisePNG(t, 400, 300),
		evalFn: func(string) (any, error) {
			return canvasRect{Success: true, X: 50, Y: 40, Width: 240, Height: 160, DevicePixelRatio: 1}, nil
		},
	}
	d := testDriver(t, p)

	frame, err := d.CaptureFrame(context.Background())
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, 240, cfg.Width)
	assert.Equal(t, 160, cfg.Height)
}

func TestCaptureFrame_FallsBackToFullScreenshot(t *testing.T) {
	full := noisePNG(t, 200, 150)
	cases := map[string]func(string) (any, error){
		"no canvas":  func(string) (any, error) { return canvasRect{Error: "No canvas found"}, nil },
		"too small":  func(string) (any, error) { return canvasRect{Success: true, Width: 50, Height: 300}, nil },
		"eval fails": func(string) (any, error) { return nil, errors.New("detached") },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			d := testDriver(t, &fakePage{shot: full, evalFn: fn})
			frame, err := d.CaptureFrame(context.Background())
			require.NoError(t, err)
			assert.Equal(t, full, frame)
		})
	}
}

func TestCaptureFrame_ScreenshotFailure(t *testing.T) {
	d := testDriver(t, &fakePage{shotErr: errors.New("target closed")})
	_, err := d.CaptureFrame(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSendKey(t *testing.T) {
	p := &fakePage{}
	d := testDriver(t, p)
	b := types.DefaultBindings[types.ActionStart]

	require.NoError(t, d.SendKey(context.Background(), types.KeyDown, b))
	require.NoError(t, d.SendKey(context.Background(), types.KeyUp, b))

	require.Len(t, p.actions, 2)
	down, ok := p.actions[0].(*input.DispatchKeyEventParams)
	require.True(t, ok, "action should be DispatchKeyEventParams")
	assert.Equal(t, input.KeyDown, down.Type)
	assert.Equal(t, "Enter", down.Key)
	assert.Equal(t, "Enter", down.Code)
	assert.Equal(t, int64(13), down.WindowsVirtualKeyCode)

	up := p.actions[1].(*input.DispatchKeyEventParams)
	assert.Equal(t, input.KeyUp, up.Type)
}

func TestSendKey_Error(t *testing.T) {
	d := testDriver(t, &fakePage{runErr: errors.New("socket closed")})
	err := d.SendKey(context.Background(), types.KeyDown, types.DefaultBindings[types.ActionA])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key z down")
}

func TestLoadCartridge(t *testing.T) {
	p := &fakePage{evalFn: func(expr string) (any, error) { return "ROM_UPLOAD_SUCCESS", nil }}
	d := testDriver(t, p)

	require.NoError(t, d.LoadCartridge(context.Background(), "roms/pokemonfr.gba", []byte{1, 2, 3}))
	require.Len(t, p.exprs, 1)
	assert.True(t, strings.HasSuffix(p.exprs[0], `("AQID", "pokemonfr.gba")`), p.exprs[0])

	p.evalFn = func(string) (any, error) { return "ERROR: loadROM function not found", nil }
	err := d.LoadCartridge(context.Background(), "x.gba", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loadROM function not found")
}

func TestActivate(t *testing.T) {
	d := testDriver(t, &fakePage{evalFn: func(string) (any, error) { return "INTERACTION_SENT", nil }})
	assert.NoError(t, d.Activate(context.Background()))

	d = testDriver(t, &fakePage{evalFn: func(string) (any, error) { return "NO_CANVAS_FOUND", nil }})
	assert.Error(t, d.Activate(context.Background()))
}

func TestCloseIdempotent(t *testing.T) {
	calls := 0
	d := testDriver(t, &fakePage{})
	d.cancel = func() { calls++ }
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, calls)
}
