package reasoning

import (
	"encoding/json"
	"strings"

	"github.com/jeanpaul/gbagent/internal/schema"
	"github.com/jeanpaul/gbagent/internal/types"
)

const defaultPlanReasoning = "Default reasoning"

type wireToolCall struct {
	Tool             string          `json:"tool"`
	Number           json.RawMessage `json:"number"`
	ScreenshotNumber json.RawMessage `json:"screenshot_number"`
	N                json.RawMessage `json:"N"`
}

func (w wireToolCall) index() int {
	for _, raw := range []json.RawMessage{w.Number, w.ScreenshotNumber, w.N} {
		if n, ok := decodeInt(raw); ok {
			return n
		}
	}
	return 0
}

// ParseToolPlan reads a tool selection reply. A plan always has at least
// one call: when the reply names no known tool, defaultTool is used.
func ParseToolPlan(text string, defaultTool types.ToolKind) types.ToolPlan {
	plan := types.ToolPlan{Reasoning: defaultPlanReasoning}

	resp := Interpret(text, schema.ToolPlan)
	if resp.Structured() {
		var w struct {
			ToolCalls []wireToolCall `json:"tool_calls"`
			Reasoning *string        `json:"reasoning"`
		}
		if json.Unmarshal(resp.Raw, &w) == nil {
			if w.Reasoning != nil && strings.TrimSpace(*w.Reasoning) != "" {
				plan.Reasoning = *w.Reasoning
			}
			for _, c := range w.ToolCalls {
				kind, _ := types.ParseToolKind(strings.TrimSpace(c.Tool))
				plan.Calls = append(plan.Calls, types.ToolCall{Tool: kind, Index: c.index()})
			}
		}
	}

	if !anyKnownTool(plan.Calls) {
		plan.Calls = []types.ToolCall{{Tool: defaultTool}}
	}
	return plan
}

// DefaultPlan is used when the planner gets no reply at all.
func DefaultPlan(defaultTool types.ToolKind, reasoning string) types.ToolPlan {
	return types.ToolPlan{
		Calls:     []types.ToolCall{{Tool: defaultTool}},
		Reasoning: reasoning,
	}
}

func anyKnownTool(calls []types.ToolCall) bool {
	for _, c := range calls {
		if _, ok := types.ParseToolKind(string(c.Tool)); ok {
			return true
		}
	}
	return false
}
