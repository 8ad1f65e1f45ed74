package audio

import (
	"log/slog"
	"sync"

	"github.com/jmylchreest/ewwnotifyd/internal/config"
)

// Manager maps notification urgencies to configured sounds and owns the
// player lifecycle.
type Manager struct {
	mu     sync.RWMutex
	cfg    *config.Config
	player *Player
	logger *slog.Logger
}

// NewManager creates a Manager for the given configuration.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:    cfg,
		player: NewPlayer(logger),
		logger: logger,
	}
	m.player.SetVolume(float64(cfg.Audio.Volume) / 100)
	return m
}

// UpdateConfig applies a hot-reloaded configuration.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.player.SetVolume(float64(cfg.Audio.Volume) / 100)
}

func (m *Manager) config() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// PlayFile plays an explicit sound file, e.g. from the sound-file hint.
func (m *Manager) PlayFile(path string) {
	if !m.config().Audio.Enabled {
		return
	}
	if err := m.player.Play(path); err != nil {
		m.logger.Debug("failed to play sound file", "file", path, "error", err)
	}
}

// PlayForUrgency plays the configured sound for the given urgency
// level, if any.
func (m *Manager) PlayForUrgency(urgency int) {
	cfg := m.config()
	if !cfg.Audio.Enabled {
		return
	}
	path := cfg.SoundForUrgency(urgency)
	if path == "" {
		return
	}
	if err := m.player.Play(path); err != nil {
		m.logger.Debug("failed to play urgency sound", "urgency", urgency, "error", err)
	}
}

// Close releases the player.
func (m *Manager) Close() {
	m.player.Close()
}
