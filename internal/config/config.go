// Package config handles configuration file loading and parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// AppName is the directory name used under XDG paths and for the
// control socket.
const AppName = "ewwnotifyd"

// Config is the daemon configuration, loaded from
// $XDG_CONFIG_HOME/ewwnotifyd/config.toml.
type Config struct {
	EwwBinaryPath string `toml:"eww_binary_path"`

	IconDirs  []string `toml:"icon_dirs"`
	IconTheme string   `toml:"icon_theme"`
	IconSize  int      `toml:"icon_size"`

	// EwwNotificationWindow is either a single window name or a list
	// of window names. Driver operations fan out over all of them.
	EwwNotificationWindow any    `toml:"eww_notification_window"`
	EwwNotificationWidget string `toml:"eww_notification_widget"`
	EwwNotificationVar    string `toml:"eww_notification_var"`

	EwwHistoryWindow string `toml:"eww_history_window"`
	EwwHistoryWidget string `toml:"eww_history_widget"`
	EwwHistoryVar    string `toml:"eww_history_var"`

	EwwReplyWindow string `toml:"eww_reply_window"`
	EwwReplyWidget string `toml:"eww_reply_widget"`
	EwwReplyVar    string `toml:"eww_reply_var"`
	EwwReplyText   string `toml:"eww_reply_text"`

	MaxNotifications        int    `toml:"max_notifications"`
	NotificationOrientation string `toml:"notification_orientation"` // "v" or "h"

	// UpdateHistory pushes a history refresh on every new notification.
	UpdateHistory bool `toml:"update_history"`

	Timeout TimeoutConfig `toml:"timeout"`
	Audio   AudioConfig   `toml:"audio"`
}

// TimeoutConfig contains default expiry timeouts per urgency level,
// in seconds. A value of 0 means never expire.
type TimeoutConfig struct {
	Low      int `toml:"low"`
	Normal   int `toml:"normal"`
	Critical int `toml:"critical"`
}

// AudioConfig contains notification sound settings.
type AudioConfig struct {
	Enabled bool        `toml:"enabled"`
	Volume  int         `toml:"volume"` // 0-100
	Sounds  SoundConfig `toml:"sounds"`
}

// SoundConfig contains per-urgency sound file paths.
type SoundConfig struct {
	Low      string `toml:"low"`
	Normal   string `toml:"normal"`
	Critical string `toml:"critical"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		EwwBinaryPath: "eww",
		IconDirs: []string{
			"/usr/share/icons",
			"~/.local/share/icons",
		},
		IconTheme:               "hicolor",
		IconSize:                48,
		EwwNotificationWindow:   "notification-frame",
		EwwNotificationWidget:   "notification-card",
		EwwNotificationVar:      "notifications",
		EwwHistoryWindow:        "history-frame",
		EwwHistoryWidget:        "history-card",
		EwwHistoryVar:           "history",
		EwwReplyWindow:          "reply-frame",
		EwwReplyWidget:          "reply-box",
		EwwReplyVar:             "reply",
		EwwReplyText:            "reply-text",
		MaxNotifications:        10,
		NotificationOrientation: "v",
		Timeout: TimeoutConfig{
			Low:      5,
			Normal:   10,
			Critical: 0,
		},
		UpdateHistory: true,
		Audio: AudioConfig{
			Enabled: true,
			Volume:  80,
			Sounds:  SoundConfig{},
		},
	}
}

// NotificationWindows normalizes eww_notification_window into a list of
// window names, whether the config carries a single name or a list.
func (c *Config) NotificationWindows() []string {
	switch v := c.EwwNotificationWindow.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		names := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

// Path returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppName, "config.toml")
}

// SocketPath returns the control socket path.
func SocketPath() string {
	return filepath.Join(os.TempDir(), AppName+"_ipc_socket")
}

// PixmapDir returns the directory where image-data pixmaps are persisted.
func PixmapDir() string {
	return filepath.Join(os.TempDir(), AppName+"-data")
}

// Load loads the configuration from the given path (the default path if
// empty). A missing file is written out with defaults, matching first-run
// behavior; a malformed one is a fatal ConfigError for the caller.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := cfg.Save(path); werr != nil {
				return nil, fmt.Errorf("failed to write default config: %w", werr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// The window spec is decoded into an empty interface so a TOML array
	// is accepted as well as a string; an absent key keeps the default.
	defaultWindow := cfg.EwwNotificationWindow
	cfg.EwwNotificationWindow = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.EwwNotificationWindow == nil {
		cfg.EwwNotificationWindow = defaultWindow
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given path, creating parent
// directories as needed. The write goes through a temp file so a crash
// never leaves a truncated config behind.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.NotificationOrientation != "v" && c.NotificationOrientation != "h" {
		return fmt.Errorf("notification_orientation must be %q or %q, got %q",
			"v", "h", c.NotificationOrientation)
	}
	if c.MaxNotifications < 1 {
		return fmt.Errorf("max_notifications must be at least 1, got %d", c.MaxNotifications)
	}
	if c.IconSize < 1 {
		return fmt.Errorf("icon_size must be positive, got %d", c.IconSize)
	}
	if len(c.NotificationWindows()) == 0 {
		return fmt.Errorf("eww_notification_window must name at least one window")
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("audio volume must be between 0 and 100, got %d", c.Audio.Volume)
	}
	return nil
}

// TimeoutForUrgency returns the configured timeout in milliseconds for
// the given urgency level (0=low, 1=normal, 2=critical). Unknown levels
// use the normal timeout. 0 means never expire.
func (c *Config) TimeoutForUrgency(urgency int) int {
	switch urgency {
	case 0:
		return c.Timeout.Low * 1000
	case 2:
		return c.Timeout.Critical * 1000
	default:
		return c.Timeout.Normal * 1000
	}
}

// EffectiveTimeout derives the expiry timeout in milliseconds for a
// notification. A non-negative client-supplied timeout is used directly;
// -1 falls back to the per-urgency configured timeout.
func (c *Config) EffectiveTimeout(expireTimeout int32, urgency int) int {
	if expireTimeout >= 0 {
		return int(expireTimeout)
	}
	return c.TimeoutForUrgency(urgency)
}

// SoundForUrgency returns the configured sound file path for the given
// urgency level.
func (c *Config) SoundForUrgency(urgency int) string {
	switch urgency {
	case 0:
		return c.Audio.Sounds.Low
	case 2:
		return c.Audio.Sounds.Critical
	default:
		return c.Audio.Sounds.Normal
	}
}
