package orchestrator

import "github.com/jeanpaul/gbagent/internal/types"

type EventKind string

const (
	EventPlan        EventKind = "plan"
	EventObservation EventKind = "observation"
	EventDecision    EventKind = "decision"
	EventMemory      EventKind = "memory"
	EventActions     EventKind = "actions"
	EventError       EventKind = "error"
)

// Event is a progress notification from the loop. Only the field matching
// Kind is set.
type Event struct {
	Kind  EventKind
	Cycle int
	Frame int

	Plan        *types.ToolPlan
	Observation *types.Observation
	Decision    *types.Decision
	Memory      []string
	Execution   *ExecutionReport
	Err         error
}

// Sink receives events on the loop goroutine; it must not block for long.
type Sink func(Event)
