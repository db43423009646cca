package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zephyrtronium/rulebot/expr"
	"github.com/zephyrtronium/rulebot/history"
)

// Config holds all rulebot configuration.
type Config struct {
	// Name is the bot's display name.
	Name string `yaml:"name"`

	History HistoryConfig `yaml:"history"`
	Calc    CalcConfig    `yaml:"calc"`
	Chat    ChatConfig    `yaml:"chat"`
	Logging LoggingConfig `yaml:"logging"`
}

// HistoryConfig configures conversation history.
type HistoryConfig struct {
	// File is where /save, /load, and the exit autosave go.
	File string `yaml:"file"`
	// Recent is the number of entries /history shows.
	Recent int `yaml:"recent"`
}

// CalcConfig configures the calculator.
type CalcConfig struct {
	Prec   uint   `yaml:"prec"`   // bits
	Format string `yaml:"format"` // fmt verb for results
}

// ChatConfig configures the interactive loop.
type ChatConfig struct {
	Prompt      string `yaml:"prompt"`
	TypingDelay string `yaml:"typing_delay"` // per rune, e.g. "2ms"
	RulesFile   string `yaml:"rules_file"`   // empty for built-in replies
	QuizFile    string `yaml:"quiz_file"`    // empty for built-in questions
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`      // debug, info, warn, error
	File      string `yaml:"file"`       // empty for stderr
	DebugMode bool   `yaml:"debug_mode"` // false = no logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "RuleBot",
		History: HistoryConfig{
			File:   history.DefaultFile,
			Recent: 40,
		},
		Calc: CalcConfig{
			Prec:   64,
			Format: "%g",
		},
		Chat: ChatConfig{
			Prompt:      "You: ",
			TypingDelay: "0s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults.
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("RULEBOT_HISTORY_FILE"); path != "" {
		c.History.File = path
	}
	if level := os.Getenv("RULEBOT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		c.Logging.DebugMode = true
	}
	if d := os.Getenv("RULEBOT_TYPING_DELAY"); d != "" {
		c.Chat.TypingDelay = d
	}
}

// GetTypingDelay returns the per-rune typing delay as a duration.
func (c *Config) GetTypingDelay() time.Duration {
	d, err := time.ParseDuration(c.Chat.TypingDelay)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("bot name must not be empty")
	}
	if c.History.File == "" {
		return fmt.Errorf("history file not configured")
	}
	if c.History.Recent <= 0 {
		return fmt.Errorf("history.recent must be positive, got %d", c.History.Recent)
	}
	if c.Calc.Prec < expr.MinPrec || c.Calc.Prec > 4096 {
		return fmt.Errorf("calc.prec must be in %d..4096, got %d", expr.MinPrec, c.Calc.Prec)
	}
	if !strings.Contains(c.Calc.Format, "%") {
		return fmt.Errorf("calc.format %q has no verb", c.Calc.Format)
	}
	if c.Chat.TypingDelay != "" {
		if _, err := time.ParseDuration(c.Chat.TypingDelay); err != nil {
			return fmt.Errorf("invalid chat.typing_delay: %w", err)
		}
	}

	validLevel := false
	for _, l := range ValidLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLevels)
	}

	return nil
}
