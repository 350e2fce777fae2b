// Package config loads and validates the capture pipeline's configuration
// from YAML or JSON files, with sensible defaults for every knob.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/captrail/captrail/pkg/captrail/buffer"
	"github.com/captrail/captrail/pkg/captrail/queue"
)

// MaxPathLength bounds the log path. Paths beyond this are rejected at
// validation rather than discovered as open failures at runtime.
const MaxPathLength = 260

// Mode selects the pipeline's operating profile.
type Mode string

const (
	// ModeNormal is the default profile: buffered writes, interval flushes.
	ModeNormal Mode = "normal"

	// ModeStealth minimizes the pipeline's own footprint: no operational
	// logging beyond errors.
	ModeStealth Mode = "stealth"

	// ModeDebug flushes the buffer every tick and logs verbosely.
	ModeDebug Mode = "debug"
)

// valid reports whether m is a known mode.
func (m Mode) valid() bool {
	switch m {
	case ModeNormal, ModeStealth, ModeDebug:
		return true
	}
	return false
}

// Duration wraps time.Duration for config files. It accepts either a bare
// integer (milliseconds) or a duration string like "1s" or "10ms".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var ms int64
	if err := node.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be milliseconds or a duration string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON implements json.Unmarshaler with the same contract as
// UnmarshalYAML.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be milliseconds or a duration string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Filters selects which event classes the pipeline admits.
type Filters struct {
	// CaptureKeyboard admits key events.
	CaptureKeyboard bool `yaml:"capture_keyboard" json:"capture_keyboard"`

	// CaptureMouse admits pointer events.
	CaptureMouse bool `yaml:"capture_mouse" json:"capture_mouse"`

	// CaptureWindowChanges admits foreground window transitions.
	CaptureWindowChanges bool `yaml:"capture_window_changes" json:"capture_window_changes"`

	// IgnoreInjected drops synthetic input events.
	IgnoreInjected bool `yaml:"ignore_injected" json:"ignore_injected"`
}

// Logging configures the pipeline's operational logger.
type Logging struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" json:"level"`

	// Format is json or text.
	Format string `yaml:"format" json:"format"`
}

// Config is the complete pipeline configuration.
type Config struct {
	// LogPath is where formatted entries are appended.
	LogPath string `yaml:"log_path" json:"log_path"`

	// Mode selects the operating profile.
	Mode Mode `yaml:"mode" json:"mode"`

	// FlushInterval is how often the buffer is flushed regardless of fill.
	FlushInterval Duration `yaml:"flush_interval_ms" json:"flush_interval_ms"`

	// PollInterval is the dispatcher tick period.
	PollInterval Duration `yaml:"poll_interval_ms" json:"poll_interval_ms"`

	// MaxFileSize is the rotation threshold in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// RotateLogs enables size-based rotation.
	RotateLogs bool `yaml:"rotate_logs" json:"rotate_logs"`

	// BufferEvents routes entries through the aggregation buffer. When
	// false every entry is written immediately.
	BufferEvents bool `yaml:"buffer_events" json:"buffer_events"`

	// QueueCapacity is the event queue's usable slot count plus one.
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`

	// BufferCapacity is the aggregation buffer size in bytes.
	BufferCapacity int `yaml:"buffer_capacity" json:"buffer_capacity"`

	// RetryAttempts bounds each file write.
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`

	// RetryBackoff is the fixed delay between write attempts.
	RetryBackoff Duration `yaml:"retry_backoff_ms" json:"retry_backoff_ms"`

	// HistoryPath is the SQLite session history database. Empty disables
	// session history.
	HistoryPath string `yaml:"history_path" json:"history_path"`

	// MaintenanceSchedule is a cron expression for scheduled flush and
	// rotation. Empty disables scheduled maintenance.
	MaintenanceSchedule string `yaml:"maintenance_schedule" json:"maintenance_schedule"`

	// Filters selects admitted event classes.
	Filters Filters `yaml:"filters" json:"filters"`

	// Logging configures the operational logger.
	Logging Logging `yaml:"logging" json:"logging"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		LogPath:        filepath.Join("logs", "captrail.log"),
		Mode:           ModeNormal,
		FlushInterval:  Duration(time.Second),
		PollInterval:   Duration(10 * time.Millisecond),
		MaxFileSize:    10 * 1024 * 1024,
		RotateLogs:     true,
		BufferEvents:   true,
		QueueCapacity:  1024,
		BufferCapacity: 4096,
		RetryAttempts:  3,
		RetryBackoff:   Duration(10 * time.Millisecond),
		Filters: Filters{
			CaptureKeyboard:      true,
			CaptureMouse:         true,
			CaptureWindowChanges: true,
			IgnoreInjected:       false,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values the pipeline cannot run
// with. It returns the first problem found.
func (c Config) Validate() error {
	if c.LogPath == "" {
		return errors.New("log_path must not be empty")
	}
	if len(c.LogPath) > MaxPathLength {
		return fmt.Errorf("log_path exceeds %d characters", MaxPathLength)
	}
	if !c.Mode.valid() {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.FlushInterval <= 0 {
		return errors.New("flush_interval_ms must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval_ms must be positive")
	}
	if c.QueueCapacity < queue.MinCapacity {
		return fmt.Errorf("queue_capacity must be at least %d", queue.MinCapacity)
	}
	if c.BufferEvents && c.BufferCapacity < buffer.MinCapacity {
		return fmt.Errorf("buffer_capacity must be at least %d when buffering", buffer.MinCapacity)
	}
	if c.RetryAttempts < 1 {
		return errors.New("retry_attempts must be at least 1")
	}
	if c.RetryBackoff < 0 {
		return errors.New("retry_backoff_ms must not be negative")
	}
	if c.RotateLogs {
		if c.MaxFileSize <= 0 {
			return errors.New("max_file_size must be positive when rotation is enabled")
		}
		if c.BufferEvents && c.MaxFileSize < int64(c.BufferCapacity) {
			return errors.New("max_file_size must not be smaller than buffer_capacity")
		}
	}
	return nil
}

// FromFile loads a configuration file, layering it over Default().
// The format is chosen by extension: .json is JSON, everything else YAML.
func FromFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
