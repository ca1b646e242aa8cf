package tools

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/provider"
	"github.com/jeanpaul/gbagent/internal/types"
)

const directVisionRequest = "I need direct vision analysis of this Pokemon Fire Red screen. " +
	"Text descriptions weren't clear enough for navigation/decision making. " +
	"What exactly do you see and what should I do?"

// DirectVisionTool sends a fresh frame together with the memory to the
// reasoning service. Nothing is stored.
type DirectVisionTool struct {
	Frames   FrameSource
	Reasoner Reasoner
	Prompts  Prompter
	Resize   Resizer
	Logger   *zap.Logger
}

func (t *DirectVisionTool) Name() types.ToolKind { return types.ToolDirectVision }

func (t *DirectVisionTool) Description() string {
	return "analyze_with_vision() - FALLBACK: direct vision analysis when text descriptions aren't clear enough"
}

func (t *DirectVisionTool) Execute(ctx context.Context, sess Session, _ types.ToolCall) types.Observation {
	frame, err := t.Frames.CaptureFrame(ctx)
	if err != nil {
		t.Logger.Warn("frame capture failed", zap.Error(err))
		return types.Failure("Direct vision analysis failed")
	}

	text, err := t.Reasoner.Call(ctx, config.PurposeDirectVision,
		provider.System(t.Prompts.DirectVision(sess.Memory(), sess.ScreenshotCount())),
		provider.User(directVisionRequest, provider.Image{Data: t.Resize.Downscale(frame)}),
	)
	if err != nil {
		t.Logger.Warn("direct vision failed", zap.Error(err))
		return types.Failure("Direct vision analysis failed")
	}
	if strings.TrimSpace(text) == "" {
		return types.Failure("Direct vision analysis failed")
	}
	return types.DirectVision(text)
}
