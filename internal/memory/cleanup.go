package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"go.uber.org/zap"
)

// CleanupPolicy decides when memory is handed to the condenser.
type CleanupPolicy struct {
	MinEntries int // never clean below this size
	Checkpoint int // periodic cleanups start past this size
	Interval   int // ...and repeat every Interval entries
	Window     int // recent entries inspected for duplication
	Ratio      float64
}

func DefaultCleanupPolicy() CleanupPolicy {
	return CleanupPolicy{MinEntries: 50, Checkpoint: 100, Interval: 50, Window: 20, Ratio: 0.5}
}

// ShouldCleanup reports whether a list that went from prev entries to
// entries is due for a cleanup. The periodic trigger fires when the size
// reaches or steps past a mark (Checkpoint+Interval, Checkpoint+2*Interval,
// ...), so a batch of additions can't jump over one.
func (p CleanupPolicy) ShouldCleanup(prev int, entries []string) bool {
	n := len(entries)
	if p.MinEntries <= 0 || n < p.MinEntries {
		return false
	}
	if p.passedMark(prev, n) {
		return true
	}
	return DuplicateRatio(entries, p.Window) >= p.Ratio
}

func (p CleanupPolicy) passedMark(prev, n int) bool {
	if p.Interval <= 0 || n <= prev || n <= p.Checkpoint {
		return false
	}
	return p.marks(n) > p.marks(prev)
}

func (p CleanupPolicy) marks(n int) int {
	if n <= p.Checkpoint {
		return 0
	}
	return (n - p.Checkpoint) / p.Interval
}

// DuplicateRatio is the share of the last window entries whose text occurs
// more than once inside that window.
func DuplicateRatio(entries []string, window int) float64 {
	if window <= 0 || len(entries) == 0 {
		return 0
	}
	if len(entries) > window {
		entries = entries[len(entries)-window:]
	}
	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[strings.TrimSpace(e)]++
	}
	dup := 0
	for _, e := range entries {
		if counts[strings.TrimSpace(e)] > 1 {
			dup++
		}
	}
	return float64(dup) / float64(len(entries))
}

// MaybeCleanup asks the condenser for a shorter memory when the policy says
// so; prev is the size before the edit that produced entries. A list held
// at the size limit can't grow past another mark, so there a cleanup is
// due after every Interval additions instead. Any failure, an empty answer, or an answer longer than the input
// leaves entries untouched. The condensed list is model-written and may
// drop detail; it is a best-effort pass.
func (s *Store) MaybeCleanup(ctx context.Context, prev int, entries []string) []string {
	if s.condenser == nil || !s.due(prev, entries) {
		return entries
	}
	s.added = 0

	s.logger.Info("cleaning up memory", zap.Int("entries", len(entries)))
	condensed, err := s.condenser.Condense(ctx, clone(entries))
	if err != nil {
		s.logger.Warn("memory cleanup failed, keeping original", zap.Error(err))
		return entries
	}

	var out []string
	for _, e := range condensed {
		if e = normalize(e); e != "" {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		s.logger.Warn("memory cleanup returned nothing, keeping original")
		return entries
	}
	if len(out) > len(entries) {
		s.logger.Warn("memory cleanup grew the list, keeping original",
			zap.Int("before", len(entries)), zap.Int("after", len(out)))
		return entries
	}

	out = Cap(out, s.max)
	if ce := s.logger.Check(zap.DebugLevel, "memory cleanup diff"); ce != nil {
		ce.Write(zap.String("diff", Diff(entries, out)))
	}
	s.logger.Info("memory cleaned up", zap.Int("before", len(entries)), zap.Int("after", len(out)))
	return out
}

func (s *Store) due(prev int, entries []string) bool {
	if s.cleanup.ShouldCleanup(prev, entries) {
		return true
	}
	full := len(entries) >= s.max && len(entries) >= s.cleanup.MinEntries
	return full && s.cleanup.Interval > 0 && s.added >= s.cleanup.Interval
}

// Diff renders a unified diff between two memory lists.
func Diff(before, after []string) string {
	a := strings.Join(before, "\n") + "\n"
	b := strings.Join(after, "\n") + "\n"
	edits := myers.ComputeEdits(span.URIFromPath("memory.txt"), a, b)
	return fmt.Sprint(gotextdiff.ToUnified("memory.txt", "memory.txt (cleaned)", a, edits))
}
