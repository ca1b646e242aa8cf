package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrPrerequisite marks a startup condition the agent cannot run without.
var ErrPrerequisite = errors.New("missing prerequisite")

type Config struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Reasoning       ReasoningConfig           `yaml:"reasoning" mapstructure:"reasoning"`
	Memory          MemoryConfig              `yaml:"memory" mapstructure:"memory"`
	Screenshots     ScreenshotConfig          `yaml:"screenshots" mapstructure:"screenshots"`
	Emulator        EmulatorConfig            `yaml:"emulator" mapstructure:"emulator"`
	Actions         ActionsConfig             `yaml:"actions" mapstructure:"actions"`
	Loop            LoopConfig                `yaml:"loop" mapstructure:"loop"`
	Logger          LoggerConfig              `yaml:"logger" mapstructure:"logger"`
	Metrics         MetricsConfig             `yaml:"metrics" mapstructure:"metrics"`
	PromptsFile     string                    `yaml:"prompts_file" mapstructure:"prompts_file"`
	StateDir        string                    `yaml:"state_dir" mapstructure:"state_dir"`
	Theme           string                    `yaml:"theme" mapstructure:"theme"`
}

type ProviderConfig struct {
	Type    string `yaml:"type" mapstructure:"type"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PurposeConfig tunes reasoning calls made for one purpose.
type PurposeConfig struct {
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	TimeoutStep time.Duration `yaml:"timeout_step" mapstructure:"timeout_step"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

type ReasoningConfig struct {
	MaxAttempts       int                      `yaml:"max_attempts" mapstructure:"max_attempts"`
	Timeout           time.Duration            `yaml:"timeout" mapstructure:"timeout"`
	TimeoutStep       time.Duration            `yaml:"timeout_step" mapstructure:"timeout_step"`
	RateLimitBackoff  time.Duration            `yaml:"rate_limit_backoff" mapstructure:"rate_limit_backoff"`
	RateLimitStep     time.Duration            `yaml:"rate_limit_step" mapstructure:"rate_limit_step"`
	TimeoutBackoff    time.Duration            `yaml:"timeout_backoff" mapstructure:"timeout_backoff"`
	ServerBackoff     time.Duration            `yaml:"server_backoff" mapstructure:"server_backoff"`
	ConnectionBackoff time.Duration            `yaml:"connection_backoff" mapstructure:"connection_backoff"`
	RequestsPerMinute int                      `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Purposes          map[string]PurposeConfig `yaml:"purposes" mapstructure:"purposes"`
}

type MemoryConfig struct {
	File              string `yaml:"file" mapstructure:"file"`
	MaxEntries        int    `yaml:"max_entries" mapstructure:"max_entries"`
	CleanupMinEntries int    `yaml:"cleanup_min_entries" mapstructure:"cleanup_min_entries"`
	CleanupCheckpoint int    `yaml:"cleanup_checkpoint" mapstructure:"cleanup_checkpoint"`
	CleanupInterval   int    `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	DuplicateWindow   int    `yaml:"duplicate_window" mapstructure:"duplicate_window"`
	// DuplicateRatio is the share of non-unique entries in the window that
	// triggers a cleanup.
	DuplicateRatio float64 `yaml:"duplicate_ratio" mapstructure:"duplicate_ratio"`
}

type ScreenshotConfig struct {
	Dir               string        `yaml:"dir" mapstructure:"dir"`
	OptimizeThreshold int           `yaml:"optimize_threshold" mapstructure:"optimize_threshold"`
	MaxDimension      int           `yaml:"max_dimension" mapstructure:"max_dimension"`
	CacheTTL          time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

type EmulatorConfig struct {
	Page          string        `yaml:"page" mapstructure:"page"`
	ROM           string        `yaml:"rom" mapstructure:"rom"`
	Headless      bool          `yaml:"headless" mapstructure:"headless"`
	// ChromePath overrides the browser binary; empty means search PATH.
	ChromePath    string        `yaml:"chrome_path" mapstructure:"chrome_path"`
	WindowWidth   int           `yaml:"window_width" mapstructure:"window_width"`
	WindowHeight  int           `yaml:"window_height" mapstructure:"window_height"`
	ReadyPolls    int           `yaml:"ready_polls" mapstructure:"ready_polls"`
	ReadyInterval time.Duration `yaml:"ready_interval" mapstructure:"ready_interval"`
	KeyTimeout    time.Duration `yaml:"key_timeout" mapstructure:"key_timeout"`
}

type ActionsConfig struct {
	Delay  time.Duration `yaml:"delay" mapstructure:"delay"`
	Settle time.Duration `yaml:"settle" mapstructure:"settle"`
	// Fallback is pressed whenever a decision cannot be parsed.
	Fallback string `yaml:"fallback" mapstructure:"fallback"`
}

type LoopConfig struct {
	CycleDelay  time.Duration `yaml:"cycle_delay" mapstructure:"cycle_delay"`
	FrameStep   int           `yaml:"frame_step" mapstructure:"frame_step"`
	MaxCycles   int           `yaml:"max_cycles" mapstructure:"max_cycles"`
	DefaultTool string        `yaml:"default_tool" mapstructure:"default_tool"`
}

type LoggerConfig struct {
	ServiceName string      `yaml:"service_name" mapstructure:"service_name"`
	Level       string      `yaml:"level" mapstructure:"level"`
	Format      string      `yaml:"format" mapstructure:"format"`
	AddSource   bool        `yaml:"add_source" mapstructure:"add_source"`
	LogFile     string      `yaml:"log_file" mapstructure:"log_file"`
	MaxSize     int         `yaml:"max_size" mapstructure:"max_size"`
	MaxBackups  int         `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge      int         `yaml:"max_age" mapstructure:"max_age"`
	Compress    bool        `yaml:"compress" mapstructure:"compress"`
	Colors      ColorConfig `yaml:"colors" mapstructure:"colors"`
}

type ColorConfig struct {
	Debug string `yaml:"debug" mapstructure:"debug"`
	Info  string `yaml:"info" mapstructure:"info"`
	Warn  string `yaml:"warn" mapstructure:"warn"`
	Error string `yaml:"error" mapstructure:"error"`
	Fatal string `yaml:"fatal" mapstructure:"fatal"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// Reasoning purposes. Each maps to an entry in ReasoningConfig.Purposes.
const (
	PurposeToolSelection = "tool_selection"
	PurposeGameplay      = "gameplay"
	PurposeVision        = "vision"
	PurposeDirectVision  = "direct_vision"
	PurposeMemoryCleanup = "memory_cleanup"
)

var envVarRe = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

func expandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: "xai",
		Providers: map[string]ProviderConfig{
			"xai": {Type: "openai", BaseURL: "https://api.x.ai/v1", APIKey: "$XAI_API_KEY", Model: "grok-4"},
		},
		Reasoning: ReasoningConfig{
			MaxAttempts:       3,
			Timeout:           45 * time.Second,
			TimeoutStep:       15 * time.Second,
			RateLimitBackoff:  5 * time.Second,
			RateLimitStep:     5 * time.Second,
			TimeoutBackoff:    5 * time.Second,
			ServerBackoff:     3 * time.Second,
			ConnectionBackoff: 5 * time.Second,
			Purposes: map[string]PurposeConfig{
				PurposeToolSelection: {MaxTokens: 500, Temperature: 0.7},
				PurposeGameplay:      {MaxTokens: 800, Temperature: 0.7, Timeout: 60 * time.Second},
				PurposeVision:        {MaxTokens: 1000, Temperature: 0.3},
				PurposeDirectVision:  {MaxTokens: 1200, Temperature: 0.3},
				PurposeMemoryCleanup: {MaxTokens: 1500, Temperature: 0.2},
			},
		},
		Memory: MemoryConfig{
			File:              "memory.txt",
			MaxEntries:        320,
			CleanupMinEntries: 50,
			CleanupCheckpoint: 100,
			CleanupInterval:   50,
			DuplicateWindow:   20,
			DuplicateRatio:    0.5,
		},
		Screenshots: ScreenshotConfig{
			Dir:               "screenshots",
			OptimizeThreshold: 500000,
			MaxDimension:      1200,
			CacheTTL:          30 * time.Minute,
		},
		Emulator: EmulatorConfig{
			Page:          "local_emulator.html",
			ROM:           "roms/pokemonfr.gba",
			WindowWidth:   1280,
			WindowHeight:  900,
			ReadyPolls:    30,
			ReadyInterval: time.Second,
			KeyTimeout:    5 * time.Second,
		},
		Actions: ActionsConfig{
			Delay:    750 * time.Millisecond,
			Settle:   300 * time.Millisecond,
			Fallback: "A",
		},
		Loop: LoopConfig{
			CycleDelay:  500 * time.Millisecond,
			FrameStep:   15,
			DefaultTool: "take_screenshot",
		},
		Logger: LoggerConfig{
			ServiceName: "gbagent",
			Level:       "info",
			Format:      "console",
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      7,
			Colors: ColorConfig{
				Debug: "cyan",
				Info:  "green",
				Warn:  "yellow",
				Error: "red",
				Fatal: "magenta",
			},
		},
		Theme: "green",
	}
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gbagent")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gbagent")
}

// Load reads .env, config.yaml and GBAGENT_* variables on top of the defaults.
func Load() (*Config, error) {
	// A missing .env is normal; the key may already be in the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(configDir())

	v.SetEnvPrefix("GBAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return load(v)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GBAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	bindDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	for name, p := range cfg.Providers {
		p.APIKey = expandEnv(p.APIKey)
		p.BaseURL = expandEnv(p.BaseURL)
		cfg.Providers[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults registers the scalar defaults with viper so that
// AutomaticEnv can override them (viper only consults the environment
// for keys it already knows about).
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("default_provider", cfg.DefaultProvider)
	v.SetDefault("memory.file", cfg.Memory.File)
	v.SetDefault("memory.max_entries", cfg.Memory.MaxEntries)
	v.SetDefault("screenshots.dir", cfg.Screenshots.Dir)
	v.SetDefault("emulator.page", cfg.Emulator.Page)
	v.SetDefault("emulator.rom", cfg.Emulator.ROM)
	v.SetDefault("emulator.headless", cfg.Emulator.Headless)
	v.SetDefault("emulator.chrome_path", cfg.Emulator.ChromePath)
	v.SetDefault("loop.max_cycles", cfg.Loop.MaxCycles)
	v.SetDefault("loop.default_tool", cfg.Loop.DefaultTool)
	v.SetDefault("logger.level", cfg.Logger.Level)
	v.SetDefault("logger.format", cfg.Logger.Format)
	v.SetDefault("logger.log_file", cfg.Logger.LogFile)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)
	v.SetDefault("prompts_file", cfg.PromptsFile)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("reasoning.requests_per_minute", cfg.Reasoning.RequestsPerMinute)
}

func (c *Config) ProviderFor(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok
}

// Provider returns the default provider's settings.
func (c *Config) Provider() ProviderConfig {
	return c.Providers[c.DefaultProvider]
}

// Purpose returns the settings for one reasoning purpose with the global
// retry defaults filled in.
func (c *Config) Purpose(name string) PurposeConfig {
	p := c.Reasoning.Purposes[name]
	if p.MaxTokens <= 0 {
		p.MaxTokens = 800
	}
	if p.Timeout <= 0 {
		p.Timeout = c.Reasoning.Timeout
	}
	if p.TimeoutStep <= 0 {
		p.TimeoutStep = c.Reasoning.TimeoutStep
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = c.Reasoning.MaxAttempts
	}
	return p
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DefaultProvider == "" {
		return fmt.Errorf("config: default_provider is required")
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return fmt.Errorf("config: default_provider %q not found in providers", c.DefaultProvider)
	}
	for name, p := range c.Providers {
		if p.Type != "openai" {
			return fmt.Errorf("config: provider %q has invalid type %q (must be openai)", name, p.Type)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("config: provider %q requires base_url", name)
		}
		if p.Model == "" {
			return fmt.Errorf("config: provider %q requires model", name)
		}
	}
	if c.Reasoning.MaxAttempts < 1 {
		c.Reasoning.MaxAttempts = 3
	}
	if c.Reasoning.Timeout <= 0 {
		c.Reasoning.Timeout = 45 * time.Second
	}
	if c.Reasoning.RequestsPerMinute < 0 {
		return fmt.Errorf("config: reasoning.requests_per_minute must not be negative")
	}
	if c.Memory.MaxEntries < 1 {
		return fmt.Errorf("config: memory.max_entries must be positive")
	}
	if c.Memory.DuplicateRatio <= 0 || c.Memory.DuplicateRatio > 1 {
		c.Memory.DuplicateRatio = 0.5
	}
	if c.Memory.DuplicateWindow < 1 {
		c.Memory.DuplicateWindow = 20
	}
	if c.Screenshots.MaxDimension < 1 {
		c.Screenshots.MaxDimension = 1200
	}
	switch c.Loop.DefaultTool {
	case "take_screenshot", "analyze_with_vision":
	default:
		return fmt.Errorf("config: loop.default_tool %q must be take_screenshot or analyze_with_vision", c.Loop.DefaultTool)
	}
	if c.Actions.Fallback == "" {
		c.Actions.Fallback = "A"
	}
	if c.Loop.FrameStep < 1 {
		c.Loop.FrameStep = 15
	}
	return nil
}

// CheckPrerequisites verifies the files and credentials a run needs.
func (c *Config) CheckPrerequisites() error {
	var missing []string
	if _, err := os.Stat(c.Emulator.ROM); err != nil {
		missing = append(missing, "ROM "+c.Emulator.ROM)
	}
	if _, err := os.Stat(c.Emulator.Page); err != nil {
		missing = append(missing, "emulator page "+c.Emulator.Page)
	}
	key := c.Provider().APIKey
	if key == "" || strings.HasPrefix(key, "$") {
		missing = append(missing, "API key (set XAI_API_KEY in the environment or .env)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrPrerequisite, strings.Join(missing, ", "))
	}
	return nil
}
