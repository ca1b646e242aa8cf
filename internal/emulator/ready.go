package emulator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ReadyState is what the emulator page reports while a cartridge boots.
type ReadyState string

const (
	ReadyGameLoaded      ReadyState = "GAME_FULLY_LOADED"
	ReadyEmulatorStarted ReadyState = "EMULATOR_STARTED"
	ReadyNoGameDiv       ReadyState = "NO_GAME_DIV"
	ReadyNoCanvas        ReadyState = "NO_CANVAS"
	ReadyCanvasNotReady  ReadyState = "CANVAS_NOT_READY"
	ReadyCheckingContent ReadyState = "CANVAS_READY_CHECKING_CONTENT"
	ReadyCanvasTooSmall  ReadyState = "CANVAS_TOO_SMALL"
	ReadyUnknown         ReadyState = "UNKNOWN"
)

// ParseReadyState maps a page report to a known state.
func ParseReadyState(s string) ReadyState {
	switch st := ReadyState(strings.TrimSpace(s)); st {
	case ReadyGameLoaded, ReadyEmulatorStarted, ReadyNoGameDiv, ReadyNoCanvas,
		ReadyCanvasNotReady, ReadyCheckingContent, ReadyCanvasTooSmall:
		return st
	}
	return ReadyUnknown
}

func (s ReadyState) Ready() bool { return s == ReadyGameLoaded }

// QueryReadyState asks the page how far the boot has got. Script errors
// are reported as ReadyUnknown.
func (d *Driver) QueryReadyState(ctx context.Context) ReadyState {
	var out string
	if err := d.page.Eval(ctx, readyStateJS, &out); err != nil {
		d.logger.Debug("ready state query failed", zap.Error(err))
		return ReadyUnknown
	}
	return ParseReadyState(out)
}

// DismissNetplay hides the multiplayer popup some emulator builds show.
func (d *Driver) DismissNetplay(ctx context.Context) bool {
	var dismissed bool
	if err := d.page.Eval(ctx, dismissNetplayJS, &dismissed); err != nil {
		return false
	}
	if dismissed {
		d.logger.Info("dismissed netplay popup")
	}
	return dismissed
}

// WaitReady polls until the game reports it has loaded. It returns
// ErrNotReady after the configured number of polls; callers may carry on
// regardless since some builds never set the loaded flag.
func (d *Driver) WaitReady(ctx context.Context) (ReadyState, error) {
	polls := d.opts.ReadyPolls
	if polls < 1 {
		polls = 1
	}

	last := ReadyUnknown
	for i := 1; i <= polls; i++ {
		d.DismissNetplay(ctx)
		last = d.QueryReadyState(ctx)
		d.logger.Debug("ready state", zap.Int("poll", i), zap.Int("of", polls), zap.String("state", string(last)))
		if last.Ready() {
			return last, nil
		}
		if i < polls {
			if err := sleep(ctx, d.opts.ReadyInterval); err != nil {
				return last, err
			}
		}
	}
	return last, fmt.Errorf("%w: last state %s after %d polls", ErrNotReady, last, polls)
}

func sleep(ctx context.Context, d time.Duration) error {
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
