package reasoning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jeanpaul/gbagent/internal/schema"
	"github.com/jeanpaul/gbagent/internal/types"
)

const (
	defaultReasoning = "AI made a decision"
	textPreviewRunes = 200
)

// wireDecision mirrors the JSON contract given to the model. Every field
// is decoded loosely because models are inconsistent about types.
type wireDecision struct {
	Reasoning     *string         `json:"reasoning"`
	Actions       json.RawMessage `json:"actions"`
	MemoryUpdates *struct {
		Add    json.RawMessage `json:"add"`
		Remove json.RawMessage `json:"remove"`
		Update *struct {
			Index   json.RawMessage `json:"index"`
			Content string          `json:"content"`
		} `json:"update"`
	} `json:"memory_updates"`
}

// ParseDecision never fails: any reply, including an empty one, yields a
// decision with at least one action. source names the caller in the
// reasoning text of an empty-reply decision.
func ParseDecision(text string, fallback types.ActionSymbol, source string) types.Decision {
	if strings.TrimSpace(text) == "" {
		return types.FallbackDecision(source+" returned empty response", fallback)
	}

	resp := Interpret(text, schema.Decision)
	if !resp.Structured() {
		return decisionFromText(text, fallback)
	}

	var w wireDecision
	if err := json.Unmarshal(resp.Raw, &w); err != nil {
		return decisionFromText(text, fallback)
	}

	d := types.Decision{Reasoning: defaultReasoning}
	if w.Reasoning != nil && strings.TrimSpace(*w.Reasoning) != "" {
		d.Reasoning = *w.Reasoning
	}

	d.Actions = decodeActions(w.Actions)
	if !anyValid(d.Actions) {
		d.Actions = []types.ActionSymbol{fallback}
	}

	if mu := w.MemoryUpdates; mu != nil {
		d.MemoryUpdates.Add = decodeStrings(mu.Add)
		d.MemoryUpdates.Remove = decodeInts(mu.Remove)
		if mu.Update != nil {
			if idx, ok := decodeInt(mu.Update.Index); ok && idx > 0 {
				d.MemoryUpdates.Update = &types.MemoryEdit{Index: idx, Content: mu.Update.Content}
			}
		}
	}
	return d
}

func decisionFromText(text string, fallback types.ActionSymbol) types.Decision {
	preview, cut := truncate(text, textPreviewRunes)
	if cut {
		preview += "..."
	}
	action, ok := ScanAction(text)
	if !ok {
		action = fallback
	}
	return types.Decision{
		Reasoning: "Parsed from text: " + preview,
		Actions:   []types.ActionSymbol{action},
		MemoryUpdates: types.MemoryUpdates{
			Add: []string{"AI response: " + preview},
		},
	}
}

var actionWordRes = func() map[types.ActionSymbol]*regexp.Regexp {
	m := make(map[types.ActionSymbol]*regexp.Regexp, len(types.AllActions))
	for _, a := range types.AllActions {
		m[a] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(string(a)) + `\b`)
	}
	return m
}()

// ScanAction finds the first button named in text, checking buttons in
// types.AllActions order and matching whole words only.
func ScanAction(text string) (types.ActionSymbol, bool) {
	for _, a := range types.AllActions {
		if actionWordRes[a].MatchString(text) {
			return a, true
		}
	}
	return "", false
}

func decodeActions(raw json.RawMessage) []types.ActionSymbol {
	var out []types.ActionSymbol
	for _, s := range decodeStrings(raw) {
		// "UP, UP, A" arrives as one string from some replies
		for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
			sym, _ := types.ParseActionSymbol(f)
			if sym != "" {
				out = append(out, sym)
			}
		}
	}
	return out
}

func anyValid(actions []types.ActionSymbol) bool {
	for _, a := range actions {
		if a.Valid() {
			return true
		}
	}
	return false
}

// decodeStrings accepts a string, a list of strings or a list of scalars.
func decodeStrings(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var one string
	if json.Unmarshal(raw, &one) == nil {
		if strings.TrimSpace(one) == "" {
			return nil
		}
		return []string{one}
	}
	var many []any
	if json.Unmarshal(raw, &many) != nil {
		return nil
	}
	out := make([]string, 0, len(many))
	for _, v := range many {
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				out = append(out, t)
			}
		case nil:
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	return out
}

// decodeInts accepts an int, a numeric string or a list of either.
func decodeInts(raw json.RawMessage) []int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if n, ok := decodeInt(raw); ok {
		return []int{n}
	}
	var many []json.RawMessage
	if json.Unmarshal(raw, &many) != nil {
		return nil
	}
	var out []int
	for _, item := range many {
		if n, ok := decodeInt(item); ok {
			out = append(out, n)
		}
	}
	return out
}

func decodeInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return int(f), true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	}
	return 0, false
}
