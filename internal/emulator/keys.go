package emulator

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/types"
)

// keyEvent builds the DevTools key event for one half of a press.
func keyEvent(dir types.KeyDirection, b types.KeyBinding) *input.DispatchKeyEventParams {
	typ := input.KeyDown
	if dir == types.KeyUp {
		typ = input.KeyUp
	}
	return input.DispatchKeyEvent(typ).
		WithKey(b.Key).
		WithCode(b.Code).
		WithWindowsVirtualKeyCode(b.KeyCode).
		WithNativeVirtualKeyCode(b.KeyCode)
}

// SendKey delivers a trusted key event to the focused page.
func (d *Driver) SendKey(ctx context.Context, dir types.KeyDirection, b types.KeyBinding) error {
	opCtx, cancel := context.WithTimeout(ctx, d.opts.KeyTimeout)
	defer cancel()

	if err := d.page.Run(opCtx, keyEvent(dir, b)); err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			d.logger.Debug("key event timed out", zap.String("key", b.Key), zap.Stringer("dir", dir))
			return fmt.Errorf("key %s %s timed out after %v: %w", b.Key, dir, d.opts.KeyTimeout, opCtx.Err())
		}
		return fmt.Errorf("key %s %s: %w", b.Key, dir, err)
	}
	return nil
}
