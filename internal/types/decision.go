package types

// MemoryEdit replaces the entry at a 1-based index.
type MemoryEdit struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// MemoryUpdates are the edits a decision asks for.
type MemoryUpdates struct {
	Add    []string    `json:"add,omitempty"`
	Remove []int       `json:"remove,omitempty"`
	Update *MemoryEdit `json:"update,omitempty"`
}

// Empty reports whether applying u would be a no-op before capping.
func (u MemoryUpdates) Empty() bool {
	return len(u.Add) == 0 && len(u.Remove) == 0 && (u.Update == nil || u.Update.Index == 0)
}

// Decision is the parsed outcome of one gameplay reasoning call.
type Decision struct {
	Reasoning     string         `json:"reasoning"`
	Actions       []ActionSymbol `json:"actions"`
	MemoryUpdates MemoryUpdates  `json:"memory_updates"`
}

// FallbackDecision is a single safe action with no memory change.
func FallbackDecision(reasoning string, action ActionSymbol) Decision {
	return Decision{
		Reasoning: reasoning,
		Actions:   []ActionSymbol{action},
	}
}
