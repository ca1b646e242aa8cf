package tools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/provider"
	"github.com/jeanpaul/gbagent/internal/types"
)

const (
	visionFailed  = "Vision analysis failed"
	noDescription = "No description provided"
)

// StoredScreenshotTool captures a frame, files it under the next index and
// stores a vision description next to it.
type StoredScreenshotTool struct {
	Frames   FrameSource
	Archive  Archive
	Reasoner Reasoner
	Prompts  Prompter
	Resize   Resizer
	Logger   *zap.Logger
}

func (t *StoredScreenshotTool) Name() types.ToolKind { return types.ToolStoredScreenshot }

func (t *StoredScreenshotTool) Description() string {
	return "take_screenshot() - capture the current screen, store it and get a text description"
}

func (t *StoredScreenshotTool) Execute(ctx context.Context, sess Session, _ types.ToolCall) types.Observation {
	frame, err := t.Frames.CaptureFrame(ctx)
	if err != nil {
		t.Logger.Warn("frame capture failed", zap.Error(err))
		return types.Failure("Failed to take screenshot")
	}

	index := sess.NextScreenshotIndex()
	if err := t.Archive.SaveFrame(index, frame); err != nil {
		t.Logger.Warn("frame save failed", zap.Int("index", index), zap.Error(err))
		return types.Failure(fmt.Sprintf("Screenshot %d failed to save", index))
	}

	description := t.describe(ctx, frame)
	stored := description
	if strings.TrimSpace(stored) == "" {
		stored = noDescription
	}
	if err := t.Archive.SaveDescription(index, stored); err != nil {
		t.Logger.Warn("description save failed", zap.Int("index", index), zap.Error(err))
	}
	return types.StoredScreenshot(index, description)
}

func (t *StoredScreenshotTool) describe(ctx context.Context, frame []byte) string {
	small := t.Resize.Downscale(frame)
	if len(small) < len(frame) {
		t.Logger.Debug("frame downscaled", zap.Int("from", len(frame)), zap.Int("to", len(small)))
	}

	text, err := t.Reasoner.Call(ctx, config.PurposeVision,
		provider.User(t.Prompts.Vision(), provider.Image{Data: small}))
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			t.Logger.Warn("vision analysis failed", zap.Error(err))
		}
		return visionFailed
	}
	return text
}

// RecallScreenshotTool returns the stored description for an earlier
// screenshot without touching the emulator.
type RecallScreenshotTool struct {
	Archive Archive
	Logger  *zap.Logger
}

func (t *RecallScreenshotTool) Name() types.ToolKind { return types.ToolRecallScreenshot }

func (t *RecallScreenshotTool) Description() string {
	return "recall_screenshot(N) - read the saved description of screenshot N"
}

func (t *RecallScreenshotTool) Execute(_ context.Context, _ Session, call types.ToolCall) types.Observation {
	if call.Index <= 0 {
		return types.Failure("No screenshot number provided for recall")
	}

	text, ok, err := t.Archive.Description(call.Index)
	switch {
	case err != nil:
		t.Logger.Warn("description read failed", zap.Int("index", call.Index), zap.Error(err))
		text = fmt.Sprintf("Error retrieving description for screenshot %d", call.Index)
	case !ok:
		text = fmt.Sprintf("No description found for screenshot %d", call.Index)
	}
	return types.RecalledScreenshot(call.Index, text)
}
