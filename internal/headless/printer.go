// Package headless prints the agent's progress to a terminal or log
// stream while the loop runs.
package headless

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeanpaul/gbagent/internal/orchestrator"
	"github.com/jeanpaul/gbagent/internal/tui"
	"github.com/jeanpaul/gbagent/internal/types"
)

const previewRunes = 150

// Printer writes one styled line per loop event.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Sink returns the printer as an orchestrator event sink.
func (p *Printer) Sink() orchestrator.Sink {
	return p.Print
}

func (p *Printer) Print(evt orchestrator.Event) {
	line := format(evt)
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func format(evt orchestrator.Event) string {
	switch evt.Kind {
	case orchestrator.EventPlan:
		if evt.Plan == nil {
			return ""
		}
		head := tui.CycleStyle.Render(fmt.Sprintf("cycle %d · frame %d", evt.Cycle, evt.Frame))
		return fmt.Sprintf("\n%s %s %s\n  %s",
			head,
			tui.PlanStyle.Render("tools:"),
			toolList(evt.Plan.Calls),
			tui.MutedStyle.Render(preview(evt.Plan.Reasoning)),
		)

	case orchestrator.EventObservation:
		if evt.Observation == nil {
			return ""
		}
		if !evt.Observation.OK() {
			return "  " + tui.ErrorStyle.Render("[observation failed] ") + evt.Observation.Reason
		}
		return "  " + tui.ObservationStyle.Render("[see] ") + preview(evt.Observation.Summary())

	case orchestrator.EventDecision:
		if evt.Decision == nil {
			return ""
		}
		return fmt.Sprintf("  %s %s\n  %s %s",
			tui.ReasoningStyle.Render("[think]"),
			preview(evt.Decision.Reasoning),
			tui.ActionStyle.Render("[press]"),
			actionList(evt.Decision.Actions),
		)

	case orchestrator.EventMemory:
		last := ""
		if n := len(evt.Memory); n > 0 {
			last = evt.Memory[n-1]
		}
		return fmt.Sprintf("  %s %d entries, latest: %s",
			tui.MemoryStyle.Render("[memory]"), len(evt.Memory), preview(last))

	case orchestrator.EventActions:
		if evt.Execution == nil || (len(evt.Execution.Failed) == 0 && len(evt.Execution.Skipped) == 0) {
			return ""
		}
		return fmt.Sprintf("  %s sent %d, failed %s, skipped %s",
			tui.ErrorStyle.Render("[input]"),
			len(evt.Execution.Sent),
			actionList(evt.Execution.Failed),
			actionList(evt.Execution.Skipped),
		)

	case orchestrator.EventError:
		if evt.Err == nil {
			return ""
		}
		return "  " + tui.ErrorStyle.Render("[error] ") + evt.Err.Error()
	}
	return ""
}

func toolList(calls []types.ToolCall) string {
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		if c.Index > 0 {
			names = append(names, fmt.Sprintf("%s(%d)", c.Tool, c.Index))
		} else {
			names = append(names, string(c.Tool))
		}
	}
	return strings.Join(names, ", ")
}

func actionList(actions []types.ActionSymbol) string {
	if len(actions) == 0 {
		return "none"
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return strings.Join(names, " ")
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > previewRunes {
		return string(r[:previewRunes]) + "..."
	}
	return s
}
