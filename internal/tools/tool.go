package tools

import (
	"context"

	"github.com/jeanpaul/gbagent/internal/provider"
	"github.com/jeanpaul/gbagent/internal/types"
)

// Tool gathers one kind of observation about the running game.
type Tool interface {
	Name() types.ToolKind
	// Description is shown to the planner, one line per tool.
	Description() string
	// Execute never returns an error; failures come back as a Failure
	// observation.
	Execute(ctx context.Context, sess Session, call types.ToolCall) types.Observation
}

// Session is the per-run state a tool reads and advances.
type Session interface {
	NextScreenshotIndex() int
	ScreenshotCount() int
	Memory() []string
}

// FrameSource captures the emulator's current video frame as PNG.
type FrameSource interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// Reasoner sends a request to the reasoning service for a purpose.
// *provider.Client satisfies it.
type Reasoner interface {
	Call(ctx context.Context, purpose string, msgs ...provider.Message) (string, error)
}

// Prompter renders the system prompts used by the vision tools.
type Prompter interface {
	Vision() string
	DirectVision(memory []string, screenshotCount int) string
}

// Archive persists frames and their descriptions. *storage.Archive
// satisfies it.
type Archive interface {
	SaveFrame(index int, png []byte) error
	SaveDescription(index int, text string) error
	Description(index int) (text string, ok bool, err error)
}
