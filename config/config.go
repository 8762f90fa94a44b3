// Package config loads hark's TOML configuration and watches it for
// edits. A missing file is created with defaults so the first run
// leaves something to edit.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"hark/ptt"
)

type Config struct {
	Hotkey        HotkeyConfig        `toml:"hotkey"`
	Shortcuts     ShortcutsConfig     `toml:"shortcuts"`
	Audio         AudioConfig         `toml:"audio"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Web           WebConfig           `toml:"web"`
	History       HistoryConfig       `toml:"history"`
}

type HotkeyConfig struct {
	Combo      string `toml:"combo"`       // hold to talk, tap for hands-free
	Toggle     string `toml:"toggle"`      // plain start/stop shortcut
	Enabled    bool   `toml:"enabled"`
	HoldMs     int    `toml:"hold_ms"`     // hold shorter than this goes hands-free
	DebounceMs int    `toml:"debounce_ms"` // settle window for noisy bindings
	CooldownMs int    `toml:"cooldown_ms"` // minimum gap between toggle taps
	Noisy      *bool  `toml:"noisy"`       // override the per-family default
}

// ShortcutsConfig controls the shortcuts that only exist while a
// recording is on screen.
type ShortcutsConfig struct {
	Escape  bool   `toml:"escape"`  // esc cancels and discards the take
	Enhance string `toml:"enhance"` // key toggling transcript enhancement, "" disables
	Prompts bool   `toml:"prompts"` // digits 1-9 pick the enhancement prompt
}

type AudioConfig struct {
	Device     string `toml:"device"`
	MaxSeconds int    `toml:"max_seconds"`
	Format     string `toml:"format"` // flac or wav
}

type TranscriptionConfig struct {
	Provider string `toml:"provider"` // empty picks by available API key
	Language string `toml:"language"`
	Enhance  bool   `toml:"enhance"`
	Prompt   int    `toml:"prompt"` // active enhancement prompt, 1-9
}

type WebConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // empty uses the config directory
}

func Default() *Config {
	return &Config{
		Hotkey: HotkeyConfig{
			Combo:      "fn",
			Toggle:     "ctrl+shift+d",
			Enabled:    true,
			HoldMs:     1000,
			DebounceMs: 75,
			CooldownMs: 500,
		},
		Shortcuts: ShortcutsConfig{
			Escape:  true,
			Enhance: "e",
			Prompts: true,
		},
		Audio: AudioConfig{
			Device:     "",
			MaxSeconds: 120,
			Format:     "flac",
		},
		Transcription: TranscriptionConfig{
			Provider: "",
			Language: "",
			Enhance:  false,
			Prompt:   1,
		},
		Web: WebConfig{
			Enabled: false,
			Port:    8317,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "",
		},
	}
}

// Dir returns hark's config directory, creating it if needed.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "hark")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config at path, creating it with defaults when it
// does not exist. Unknown keys are ignored; missing keys keep their
// default values.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// HistoryPath resolves the history database location.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Options assembles the engine configuration from the hotkey section.
func (h HotkeyConfig) Options() (ptt.Options, error) {
	b, err := ParseCombo(h.Combo)
	if err != nil {
		return ptt.Options{}, fmt.Errorf("hotkey combo: %w", err)
	}
	if h.Noisy != nil {
		b.Noisy = *h.Noisy
	}
	opts := ptt.Options{
		Binding: b,
		Enabled: h.Enabled,
	}
	if h.HoldMs > 0 {
		opts.Threshold = msToDuration(h.HoldMs)
	}
	if h.DebounceMs > 0 {
		opts.Debounce = msToDuration(h.DebounceMs)
	}
	if h.CooldownMs > 0 {
		opts.Cooldown = msToDuration(h.CooldownMs)
	}
	return opts, nil
}

// ToggleBinding parses the plain toggle shortcut, which may be unset.
func (h HotkeyConfig) ToggleBinding() (ptt.Binding, error) {
	if h.Toggle == "" {
		return ptt.Binding{}, nil
	}
	return ParseCombo(h.Toggle)
}
