package types

import "strings"

// ActionSymbol is one emulated button press.
type ActionSymbol string

const (
	ActionA      ActionSymbol = "A"
	ActionB      ActionSymbol = "B"
	ActionStart  ActionSymbol = "START"
	ActionSelect ActionSymbol = "SELECT"
	ActionUp     ActionSymbol = "UP"
	ActionDown   ActionSymbol = "DOWN"
	ActionLeft   ActionSymbol = "LEFT"
	ActionRight  ActionSymbol = "RIGHT"
	ActionL      ActionSymbol = "L"
	ActionR      ActionSymbol = "R"
)

// AllActions lists every legal symbol in the order used when scanning
// free text for an action word.
var AllActions = []ActionSymbol{
	ActionStart, ActionUp, ActionDown, ActionLeft, ActionRight,
	ActionA, ActionB, ActionSelect, ActionL, ActionR,
}

// ParseActionSymbol normalizes s and reports whether it names a known button.
func ParseActionSymbol(s string) (ActionSymbol, bool) {
	sym := ActionSymbol(strings.ToUpper(strings.TrimSpace(s)))
	for _, a := range AllActions {
		if a == sym {
			return sym, true
		}
	}
	return sym, false
}

func (a ActionSymbol) Valid() bool {
	_, ok := ParseActionSymbol(string(a))
	return ok
}

// KeyDirection is the half of a key press being emitted.
type KeyDirection int

const (
	KeyDown KeyDirection = iota
	KeyUp
)

func (d KeyDirection) String() string {
	if d == KeyUp {
		return "up"
	}
	return "down"
}

// KeyBinding is the synthetic keyboard event a button maps to.
type KeyBinding struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	KeyCode int64  `json:"keyCode"`
}

// DefaultBindings is the emulator page's keyboard layout.
var DefaultBindings = map[ActionSymbol]KeyBinding{
	ActionA:      {Key: "z", Code: "KeyZ", KeyCode: 90},
	ActionB:      {Key: "x", Code: "KeyX", KeyCode: 88},
	ActionStart:  {Key: "Enter", Code: "Enter", KeyCode: 13},
	ActionSelect: {Key: "Shift", Code: "ShiftLeft", KeyCode: 16},
	ActionUp:     {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	ActionDown:   {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	ActionLeft:   {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	ActionRight:  {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	ActionL:      {Key: "a", Code: "KeyA", KeyCode: 65},
	ActionR:      {Key: "s", Code: "KeyS", KeyCode: 83},
}
