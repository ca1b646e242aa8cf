// Package emulator drives the browser-hosted GBA emulator page through
// the Chrome DevTools protocol.
package emulator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/config"
)

var (
	// ErrUnavailable means the browser could not be started or has gone away.
	ErrUnavailable = errors.New("emulator unavailable")
	// ErrNotReady means the game never reported it had loaded.
	ErrNotReady = errors.New("emulator not ready")
)

// page is the slice of the DevTools surface the driver needs.
type page interface {
	Run(ctx context.Context, actions ...chromedp.Action) error
	Eval(ctx context.Context, expr string, res any) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Driver controls one browser tab running the emulator.
type Driver struct {
	page   page
	opts   config.EmulatorConfig
	logger *zap.Logger

	closeOnce sync.Once
	cancel    func()
}

// Launch starts Chrome with flags that let a file:// page read local files.
// The browser lives until Close.
func Launch(opts config.EmulatorConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("emulator")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("allow-file-access-from-files", true),
		chromedp.Flag("allow-running-insecure-content", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	// first Run starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	d := newDriver(&chromePage{ctx: browserCtx}, opts, logger)
	d.cancel = func() {
		browserCancel()
		allocCancel()
	}
	logger.Info("browser started", zap.Bool("headless", opts.Headless))
	return d, nil
}

func newDriver(p page, opts config.EmulatorConfig, logger *zap.Logger) *Driver {
	if opts.KeyTimeout <= 0 {
		opts.KeyTimeout = 5 * time.Second
	}
	return &Driver{page: p, opts: opts, logger: logger}
}

// Close shuts the browser down. Safe to call more than once.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
			d.logger.Info("browser closed")
		}
	})
	return nil
}

// Open navigates to the emulator page and waits for its game container.
func (d *Driver) Open(ctx context.Context, pagePath string) error {
	abs, err := filepath.Abs(pagePath)
	if err != nil {
		return err
	}
	url := "file://" + filepath.ToSlash(abs)
	d.logger.Info("opening emulator page", zap.String("url", url))

	opCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := d.page.Run(opCtx, chromedp.Navigate(url), chromedp.WaitReady("#game", chromedp.ByID)); err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrUnavailable, url, err)
	}

	var title string
	if err := d.page.Eval(ctx, `document.title`, &title); err == nil {
		d.logger.Debug("page loaded", zap.String("title", title))
	}
	return nil
}

// Activate focuses and clicks the game canvas. Browsers refuse audio and
// some input until the page has seen a user gesture.
func (d *Driver) Activate(ctx context.Context) error {
	var out string
	if err := d.page.Eval(ctx, activateJS, &out); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if out != "INTERACTION_SENT" {
		return fmt.Errorf("activate: %s", out)
	}
	return nil
}

// LoadCartridge hands rom to the page's window.loadROM as a File.
func (d *Driver) LoadCartridge(ctx context.Context, name string, rom []byte) error {
	b64, _ := json.Marshal(base64.StdEncoding.EncodeToString(rom))
	quotedName, _ := json.Marshal(filepath.Base(name))

	var out string
	if err := d.page.Eval(ctx, fmt.Sprintf(loadROMJS, b64, quotedName), &out); err != nil {
		return fmt.Errorf("load cartridge: %w", err)
	}
	if !strings.Contains(out, "SUCCESS") {
		return fmt.Errorf("load cartridge: %s", out)
	}
	d.logger.Info("cartridge loaded", zap.String("name", name), zap.Int("bytes", len(rom)))
	return nil
}

// Boot opens the page, loads the ROM file at romPath, starts the emulator
// and waits for the game. A game that never reports ready is logged and
// tolerated.
func (d *Driver) Boot(ctx context.Context, pagePath, romPath string) error {
	if err := d.Open(ctx, pagePath); err != nil {
		return err
	}
	if err := d.Activate(ctx); err != nil {
		d.logger.Warn("activation before load failed", zap.Error(err))
	}

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("read cartridge: %w", err)
	}
	if err := d.LoadCartridge(ctx, romPath, rom); err != nil {
		return err
	}
	// the page needs a moment to build the emulator before it takes input
	if err := sleep(ctx, 3*time.Second); err != nil {
		return err
	}
	if err := d.Activate(ctx); err != nil {
		d.logger.Warn("emulator start interaction failed", zap.Error(err))
	}

	state, err := d.WaitReady(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.logger.Warn("game did not report loaded, continuing", zap.String("state", string(state)), zap.Error(err))
	}
	return nil
}

// chromePage runs actions on the browser tab. Operation contexts only
// bound the wait; cancelling them never closes the tab.
type chromePage struct {
	ctx context.Context
}

func (p *chromePage) Run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		opCtx, cancelDeadline = context.WithDeadline(opCtx, deadline)
		defer cancelDeadline()
	}

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && p.ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (p *chromePage) Eval(ctx context.Context, expr string, res any) error {
	return p.Run(ctx, chromedp.Evaluate(expr, res))
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}
