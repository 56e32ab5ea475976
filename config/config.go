package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/javanhut/liminal/grid"
)

// TerminalConfig holds screen settings
type TerminalConfig struct {
	Rows            int `toml:"rows"`
	Cols            int `toml:"cols"`
	ScrollbackLimit int `toml:"scrollback_limit"`
	// Default colours as #rrggbb or #rgb
	Foreground string `toml:"foreground"`
	Background string `toml:"background"`
}

// ShellConfig holds shell-specific settings
type ShellConfig struct {
	// Path to shell binary (empty = $SHELL, then system default)
	Path             string `toml:"path"`
	WorkingDirectory string `toml:"working_directory"`
	// Env extra environment variables
	Env map[string]string `toml:"env"`
}

// PumpConfig sizes the shell I/O channels
type PumpConfig struct {
	InputBuffer  int `toml:"input_buffer"`
	OutputBuffer int `toml:"output_buffer"`
	ChunkSize    int `toml:"chunk_size"`
}

// Config holds the terminal configuration
type Config struct {
	Terminal TerminalConfig `toml:"terminal"`
	Shell    ShellConfig    `toml:"shell"`
	Pump     PumpConfig     `toml:"pump"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Terminal: TerminalConfig{
			Rows:            24,
			Cols:            80,
			ScrollbackLimit: grid.DefaultScrollback,
			Foreground:      "#c8c8c8",
			Background:      "#000000",
		},
		Shell: ShellConfig{
			Env: map[string]string{},
		},
		Pump: PumpConfig{
			InputBuffer:  64,
			OutputBuffer: 256,
			ChunkSize:    4096,
		},
	}
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "liminal")
	}
	return filepath.Join(homeDir, ".config", "liminal")
}

// DefaultPath returns the path to the config file
func DefaultPath() string {
	return filepath.Join(GetConfigDir(), "config.toml")
}

// Load reads the configuration at path over the defaults. A missing file
// yields the defaults and nothing is written.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	if cfg.Shell.Env == nil {
		cfg.Shell.Env = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks sizes and colours
func (c *Config) Validate() error {
	if c.Terminal.Rows < 1 || c.Terminal.Cols < 1 {
		return fmt.Errorf("terminal size %dx%d must be at least 1x1", c.Terminal.Cols, c.Terminal.Rows)
	}
	if c.Terminal.ScrollbackLimit < 0 {
		return fmt.Errorf("scrollback_limit %d must not be negative", c.Terminal.ScrollbackLimit)
	}
	if c.Pump.InputBuffer < 1 || c.Pump.OutputBuffer < 1 || c.Pump.ChunkSize < 1 {
		return errors.New("pump buffers and chunk_size must be positive")
	}
	if _, _, err := c.Terminal.Colors(); err != nil {
		return err
	}
	return nil
}

// Colors parses the default foreground and background. An empty value
// keeps the grid default.
func (t *TerminalConfig) Colors() (fg, bg grid.RGB, err error) {
	fg, bg = grid.DefaultFg, grid.DefaultBg

	if t.Foreground != "" {
		if fg, err = parseHex(t.Foreground); err != nil {
			return fg, bg, fmt.Errorf("foreground: %w", err)
		}
	}
	if t.Background != "" {
		if bg, err = parseHex(t.Background); err != nil {
			return fg, bg, fmt.Errorf("background: %w", err)
		}
	}
	return fg, bg, nil
}

func parseHex(s string) (grid.RGB, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return grid.RGB{}, err
	}
	r, g, b := c.RGB255()
	return grid.RGB{R: r, G: g, B: b}, nil
}
