package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jeanpaul/gbagent/internal/memory"
	"github.com/jeanpaul/gbagent/internal/types"
)

// Session is the state of one play-through: the memory list and the
// counters the loop advances. It is owned by a single loop goroutine.
type Session struct {
	ID        string
	StartedAt time.Time

	// Frame is the nominal frame counter shown to the planner.
	Frame  int
	Cycles int

	entries     []string
	screenshots int
	store       *memory.Store
}

// NewSession loads memory from store and continues screenshot numbering
// after lastScreenshot.
func NewSession(store *memory.Store, lastScreenshot int) *Session {
	return &Session{
		ID:          uuid.New().String(),
		StartedAt:   time.Now(),
		entries:     store.Load(),
		screenshots: lastScreenshot,
		store:       store,
	}
}

// NextScreenshotIndex reserves the next screenshot number.
func (s *Session) NextScreenshotIndex() int {
	s.screenshots++
	return s.screenshots
}

func (s *Session) ScreenshotCount() int { return s.screenshots }

// Memory returns a copy of the current entries.
func (s *Session) Memory() []string {
	return append([]string(nil), s.entries...)
}

func (s *Session) Store() *memory.Store { return s.store }

// setMemory replaces the entries and persists them. A failed save is
// already logged by the store and does not stop play.
func (s *Session) setMemory(entries []string) {
	s.entries = entries
	_ = s.store.Save(entries)
}

// Snapshot is the per-cycle state written to the state directory.
type Snapshot struct {
	SessionID       string          `json:"session_id"`
	StartedAt       time.Time       `json:"started_at"`
	Timestamp       time.Time       `json:"timestamp"`
	Cycle           int             `json:"cycle"`
	Frame           int             `json:"frame"`
	ScreenshotCount int             `json:"screenshot_count"`
	Memory          []string        `json:"memory"`
	Plan            types.ToolPlan  `json:"plan"`
	Observations    []string        `json:"observations,omitempty"`
	Decision        types.Decision  `json:"decision"`
	Execution       ExecutionReport `json:"execution"`
}

func (s *Session) snapshot(r CycleReport) *Snapshot {
	obs := make([]string, 0, len(r.Observations))
	for _, o := range r.Observations {
		obs = append(obs, o.Summary())
	}
	return &Snapshot{
		SessionID:       s.ID,
		StartedAt:       s.StartedAt,
		Timestamp:       time.Now(),
		Cycle:           r.Cycle,
		Frame:           r.Frame,
		ScreenshotCount: s.screenshots,
		Memory:          s.Memory(),
		Plan:            r.Plan,
		Observations:    obs,
		Decision:        r.Decision,
		Execution:       r.Execution,
	}
}

// Save writes the snapshot as <dir>/<session id>.json, replacing the
// previous cycle's file.
func (s *Snapshot) Save(dir string) error {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Sanitize SessionID to prevent path traversal
	safeID := filepath.Base(s.SessionID)
	filename := filepath.Join(dir, fmt.Sprintf("%s.json", safeID))
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by Save.
func LoadSnapshot(filename string) (*Snapshot, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &snap, nil
}
