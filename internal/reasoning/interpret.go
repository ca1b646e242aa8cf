// Package reasoning turns free-form model replies into structured values.
package reasoning

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jeanpaul/gbagent/internal/schema"
)

var fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

var validator = schema.NewValidator()

// ResponseKind tags a Response.
type ResponseKind int

const (
	Unstructured ResponseKind = iota
	Structured
)

func (k ResponseKind) String() string {
	if k == Structured {
		return "structured"
	}
	return "unstructured"
}

// Response is a model reply after extraction. Raw holds the JSON object
// when Kind is Structured. Text is always the original reply.
type Response struct {
	Kind ResponseKind
	Raw  json.RawMessage
	Text string
	// Source names the extraction step that produced Raw.
	Source string
}

func (r Response) Structured() bool { return r.Kind == Structured }

// Interpret extracts the first JSON object in text that satisfies
// shape, trying the whole reply, then a fenced code block, then every
// balanced brace-delimited object in the order it starts. A nil shape
// accepts any object.
func Interpret(text string, shape any) Response {
	trimmed := strings.TrimSpace(text)
	candidates := []candidate{{"whole", trimmed}}
	if m := fencedRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, candidate{"fenced", m[1]})
	}
	for _, obj := range balancedObjects(text) {
		candidates = append(candidates, candidate{"brace", obj})
	}

	for _, c := range candidates {
		if accept(c.body, shape) {
			return Response{Kind: Structured, Raw: json.RawMessage(c.body), Text: text, Source: c.source}
		}
	}
	return Response{Kind: Unstructured, Text: text}
}

type candidate struct {
	source string
	body   string
}

func accept(body string, shape any) bool {
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil || obj == nil {
		return false
	}
	if shape == nil {
		return true
	}
	return validator.Validate(shape, body) == nil
}

// balancedObjects returns every substring of text that starts at a '{' and
// ends at its matching '}'. Braces inside JSON string literals don't count.
func balancedObjects(text string) []string {
	var out []string
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > start {
			out = append(out, text[start:end+1])
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return out
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// truncate returns the first n runes of s and whether anything was cut.
func truncate(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
