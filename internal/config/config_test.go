package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultProvider verifies xai is the default
func TestDefaultProvider(t *testing.T) {
	cfg := DefaultConfig()
	expected := "xai"

	if cfg.DefaultProvider != expected {
		t.Errorf("Default provider = %q, want %q", cfg.DefaultProvider, expected)
	}

	p := cfg.Provider()
	if p.Model != "grok-4" {
		t.Errorf("Default model = %q, want grok-4", p.Model)
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 320, cfg.Memory.MaxEntries)
	assert.Equal(t, 750*time.Millisecond, cfg.Actions.Delay)
	assert.Equal(t, 300*time.Millisecond, cfg.Actions.Settle)
	assert.Equal(t, 15, cfg.Loop.FrameStep)
}

func TestPurposeFillsDefaults(t *testing.T) {
	cfg := DefaultConfig()

	tool := cfg.Purpose(PurposeToolSelection)
	assert.Equal(t, 500, tool.MaxTokens)
	assert.Equal(t, 45*time.Second, tool.Timeout)
	assert.Equal(t, 15*time.Second, tool.TimeoutStep)
	assert.Equal(t, 3, tool.MaxAttempts)

	// Gameplay decisions get a longer timeout than tool selection.
	game := cfg.Purpose(PurposeGameplay)
	assert.Greater(t, game.Timeout, tool.Timeout)

	unknown := cfg.Purpose("nope")
	assert.Equal(t, 800, unknown.MaxTokens)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultProvider = "missing"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Loop.DefaultTool = "recall_screenshot"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Providers["xai"] = ProviderConfig{Type: "anthropic", BaseURL: "x", Model: "m"}
	assert.Error(t, cfg.Validate())
}

func TestLoadFileWithEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
providers:
  xai:
    type: openai
    base_url: https://api.x.ai/v1
    api_key: $GBAGENT_TEST_KEY
    model: grok-4
memory:
  max_entries: 40
actions:
  delay: 10ms
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	t.Setenv("GBAGENT_TEST_KEY", "secret")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Provider().APIKey)
	assert.Equal(t, 40, cfg.Memory.MaxEntries)
	assert.Equal(t, 10*time.Millisecond, cfg.Actions.Delay)
	// untouched keys keep their defaults
	assert.Equal(t, "memory.txt", cfg.Memory.File)
}

func TestLoadFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: green\n"), 0644))
	t.Setenv("GBAGENT_MEMORY_FILE", "other.txt")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "other.txt", cfg.Memory.File)
}

func TestCheckPrerequisites(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Emulator.ROM = filepath.Join(dir, "rom.gba")
	cfg.Emulator.Page = filepath.Join(dir, "page.html")
	cfg.Providers["xai"] = ProviderConfig{Type: "openai", BaseURL: "u", Model: "m", APIKey: "$XAI_API_KEY"}

	err := cfg.CheckPrerequisites()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPrerequisite))
	assert.Contains(t, err.Error(), "ROM")
	assert.Contains(t, err.Error(), "API key")

	require.NoError(t, os.WriteFile(cfg.Emulator.ROM, []byte{0}, 0644))
	require.NoError(t, os.WriteFile(cfg.Emulator.Page, []byte("<html></html>"), 0644))
	cfg.Providers["xai"] = ProviderConfig{Type: "openai", BaseURL: "u", Model: "m", APIKey: "k"}
	assert.NoError(t, cfg.CheckPrerequisites())
}

func TestPromptPackRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, SavePromptPack(path, PromptPack{Vision: "Describe it."}))

	pack, err := LoadPromptPack(path)
	require.NoError(t, err)
	assert.Equal(t, "Describe it.", pack.Vision)
	assert.Empty(t, pack.Gameplay)

	empty, err := LoadPromptPack("")
	require.NoError(t, err)
	assert.Equal(t, PromptPack{}, *empty)

	_, err = LoadPromptPack(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
