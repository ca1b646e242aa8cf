package types

import "fmt"

// ToolKind names an observation tool.
type ToolKind string

const (
	ToolStoredScreenshot ToolKind = "take_screenshot"
	ToolRecallScreenshot ToolKind = "recall_screenshot"
	ToolDirectVision     ToolKind = "analyze_with_vision"
)

func ParseToolKind(s string) (ToolKind, bool) {
	switch k := ToolKind(s); k {
	case ToolStoredScreenshot, ToolRecallScreenshot, ToolDirectVision:
		return k, true
	}
	return ToolKind(s), false
}

// ToolCall is one observation request chosen by the planner. Index is only
// meaningful for recall and is zero when the model did not supply one.
type ToolCall struct {
	Tool  ToolKind `json:"tool"`
	Index int      `json:"number,omitempty"`
}

// ToolPlan is the planner's parsed response.
type ToolPlan struct {
	Calls     []ToolCall `json:"tool_calls"`
	Reasoning string     `json:"reasoning"`
}

// ObservationKind tags an Observation.
type ObservationKind int

const (
	ObservationFailure ObservationKind = iota
	ObservationStoredScreenshot
	ObservationRecalledScreenshot
	ObservationDirectVision
)

func (k ObservationKind) String() string {
	switch k {
	case ObservationStoredScreenshot:
		return "stored_screenshot"
	case ObservationRecalledScreenshot:
		return "recalled_screenshot"
	case ObservationDirectVision:
		return "direct_vision"
	default:
		return "failure"
	}
}

// Observation is the result of running one ToolCall.
type Observation struct {
	Kind        ObservationKind
	Index       int
	Description string
	Reason      string
}

func StoredScreenshot(index int, description string) Observation {
	return Observation{Kind: ObservationStoredScreenshot, Index: index, Description: description}
}

func RecalledScreenshot(index int, description string) Observation {
	return Observation{Kind: ObservationRecalledScreenshot, Index: index, Description: description}
}

func DirectVision(description string) Observation {
	return Observation{Kind: ObservationDirectVision, Description: description}
}

func Failure(reason string) Observation {
	return Observation{Kind: ObservationFailure, Reason: reason}
}

func (o Observation) OK() bool { return o.Kind != ObservationFailure }

// Summary is the text handed to the decision prompt.
func (o Observation) Summary() string {
	switch o.Kind {
	case ObservationStoredScreenshot, ObservationRecalledScreenshot:
		return fmt.Sprintf("Screenshot %d: %s", o.Index, o.Description)
	case ObservationDirectVision:
		return "Direct Vision Analysis: " + o.Description
	default:
		return o.Reason
	}
}
