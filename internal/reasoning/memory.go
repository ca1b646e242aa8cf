package reasoning

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/jeanpaul/gbagent/internal/schema"
)

var ErrNoMemoryList = errors.New("reply contains no memory list")

var (
	fencedAnyRe = regexp.MustCompile("(?s)```(?:json)?\\s*([\\[{].*?[\\]}])\\s*```")
	arrayRe     = regexp.MustCompile(`(?s)\[.*\]`)
)

// ParseMemoryList reads a condensed memory reply: either a JSON array of
// strings or an object with a "memory" array, bare or fenced.
func ParseMemoryList(text string) ([]string, error) {
	candidates := []string{strings.TrimSpace(text)}
	if m := fencedAnyRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if resp := Interpret(text, schema.MemoryList); resp.Structured() {
		candidates = append(candidates, string(resp.Raw))
	}
	if m := arrayRe.FindString(text); m != "" {
		candidates = append(candidates, m)
	}

	for _, c := range candidates {
		if validator.Validate(schema.MemoryList, c) != nil {
			continue
		}
		var list []string
		if json.Unmarshal([]byte(c), &list) != nil {
			var obj struct {
				Memory []string `json:"memory"`
			}
			if json.Unmarshal([]byte(c), &obj) != nil {
				continue
			}
			list = obj.Memory
		}
		out := list[:0]
		for _, e := range list {
			if strings.TrimSpace(e) != "" {
				out = append(out, e)
			}
		}
		return out, nil
	}
	return nil, ErrNoMemoryList
}
