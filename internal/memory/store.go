package memory

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/storage"
	"github.com/jeanpaul/gbagent/internal/types"
)

// DefaultMaxEntries bounds the memory list when no limit is configured.
const DefaultMaxEntries = 320

// Seed is the memory a brand new game starts with.
var Seed = []string{
	"GOAL: Complete Pokemon Fire Red - beat Elite 4, become Champion, catch Mewtwo",
	"CURRENT PROGRESS: Just started - need to get through intro and choose starter",
	"STRATEGY: Build balanced team, learn type advantages, train consistently",
	"EFFICIENCY: Use batched moves like ['UP','UP','UP'] and ['A','A','A'] for speed",
	"MEMORY: Track important NPCs, locations, and story progress in this scratchpad",
}

// FreshStart replaces the seed when the memory file exists but can't be read.
var FreshStart = []string{"Fresh start - beginning Pokemon Fire Red adventure"}

// Store persists the memory list, one entry per line, and applies the
// edits a decision asks for. It is used from the loop goroutine only.
type Store struct {
	blob      storage.Blob
	max       int
	cleanup   CleanupPolicy
	condenser Condenser
	logger    *zap.Logger

	// added counts entries appended since the last cleanup attempt
	added int
}

type Option func(*Store)

func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

func WithCleanup(policy CleanupPolicy, c Condenser) Option {
	return func(s *Store) {
		s.cleanup = policy
		s.condenser = c
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStore(blob storage.Blob, opts ...Option) *Store {
	s := &Store{
		blob:    blob,
		max:     DefaultMaxEntries,
		cleanup: DefaultCleanupPolicy(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("memory")
	return s
}

func (s *Store) MaxEntries() int { return s.max }

// Load returns the persisted entries, the seed when nothing usable is
// stored, or FreshStart when the blob can't be read.
func (s *Store) Load() []string {
	data, err := s.blob.Read()
	if err != nil {
		if storage.IsNotExist(err) {
			return clone(Seed)
		}
		s.logger.Warn("error loading memory", zap.Error(err))
		return clone(FreshStart)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return clone(Seed)
	}
	var entries []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			entries = append(entries, line)
		}
	}
	if len(entries) > s.max {
		s.logger.Info("memory file over limit, keeping most recent",
			zap.Int("entries", len(entries)), zap.Int("max", s.max))
	}
	return Cap(entries, s.max)
}

// Save overwrites the stored memory. Failures are logged and returned;
// callers are free to ignore them.
func (s *Store) Save(entries []string) error {
	if err := s.blob.Write([]byte(strings.Join(entries, "\n"))); err != nil {
		s.logger.Warn("error saving memory", zap.Error(err), zap.Int("entries", len(entries)))
		return fmt.Errorf("save memory: %w", err)
	}
	s.logger.Debug("memory saved", zap.Int("entries", len(entries)))
	return nil
}

// ApplyUpdates applies u to entries using the store's size limit.
func (s *Store) ApplyUpdates(entries []string, u types.MemoryUpdates) []string {
	out := ApplyUpdates(entries, u, s.max)
	for _, add := range u.Add {
		if normalize(add) != "" {
			s.added++
		}
	}
	s.logger.Debug("memory updated",
		zap.Int("added", len(u.Add)),
		zap.Ints("removed", u.Remove),
		zap.Int("before", len(entries)),
		zap.Int("after", len(out)),
	)
	return out
}

// ApplyUpdates returns a new list with removals (1-based, highest first),
// then the single update, then additions applied, trimmed to the most
// recent max entries. Out-of-range indices and blank update or add text
// are ignored. entries is not modified.
func ApplyUpdates(entries []string, u types.MemoryUpdates, max int) []string {
	out := clone(entries)

	if len(u.Remove) > 0 {
		idx := append([]int(nil), u.Remove...)
		sort.Sort(sort.Reverse(sort.IntSlice(idx)))
		last := 0
		for _, i := range idx {
			if i == last {
				continue
			}
			last = i
			if i >= 1 && i <= len(out) {
				out = append(out[:i-1], out[i:]...)
			}
		}
	}

	if u.Update != nil {
		// a blank entry would vanish on the next Load and shift every index after it
		content := normalize(u.Update.Content)
		if i := u.Update.Index; i >= 1 && i <= len(out) && content != "" {
			out[i-1] = content
		}
	}

	for _, add := range u.Add {
		if add = normalize(add); add != "" {
			out = append(out, add)
		}
	}

	return Cap(out, max)
}

// Cap keeps the most recent max entries.
func Cap(entries []string, max int) []string {
	if max > 0 && len(entries) > max {
		return clone(entries[len(entries)-max:])
	}
	return entries
}

// normalize folds line breaks so an entry always occupies one line.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func clone(entries []string) []string {
	return append([]string(nil), entries...)
}
