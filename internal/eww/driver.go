// Package eww drives the external widget-toolkit CLI: window open/close
// and variable updates. The daemon is expected to outlive a flapping
// renderer, so every failure here is logged and swallowed.
package eww

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/alessio/shellescape"

	"github.com/jmylchreest/ewwnotifyd/internal/config"
	"github.com/jmylchreest/ewwnotifyd/internal/registry"
)

// Runner executes a renderer command line and returns its combined
// output. Swappable in tests.
type Runner func(cmdline string) (string, error)

func shellRunner(cmdline string) (string, error) {
	out, err := exec.Command("sh", "-c", cmdline).CombinedOutput()
	return string(out), err
}

// Driver issues commands to the renderer CLI.
type Driver struct {
	logger *slog.Logger
	run    Runner

	mu  sync.RWMutex
	cfg *config.Config
}

// NewDriver creates a Driver for the given configuration.
func NewDriver(cfg *config.Config, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		logger: logger,
		run:    shellRunner,
		cfg:    cfg,
	}
}

// SetRunner replaces the command runner. Used by tests.
func (d *Driver) SetRunner(run Runner) {
	d.run = run
}

// UpdateConfig swaps the configuration, e.g. after a hot reload.
func (d *Driver) UpdateConfig(cfg *config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

func (d *Driver) config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ActiveWindows queries the renderer for its open windows.
func (d *Driver) ActiveWindows() []string {
	cfg := d.config()
	out, err := d.run(cfg.EwwBinaryPath + " active-windows")
	if err != nil {
		d.logger.Warn("failed to query active windows", "error", err)
		return nil
	}
	var windows []string
	for _, line := range strings.Split(out, "\n") {
		name, _, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if ok && name != "" {
			windows = append(windows, name)
		}
	}
	return windows
}

// OpenWindow opens the named window. Already-open windows are left
// alone to avoid redundant flicker.
func (d *Driver) OpenWindow(name string) {
	for _, open := range d.ActiveWindows() {
		if open == name {
			return
		}
	}
	cfg := d.config()
	if _, err := d.run(cfg.EwwBinaryPath + " open " + name); err != nil {
		d.logger.Warn("failed to open window", "window", name, "error", err)
	}
}

// CloseWindow closes the named window.
func (d *Driver) CloseWindow(name string) {
	cfg := d.config()
	if _, err := d.run(cfg.EwwBinaryPath + " close " + name); err != nil {
		d.logger.Warn("failed to close window", "window", name, "error", err)
	}
}

// ToggleWindow toggles the named window.
func (d *Driver) ToggleWindow(name string) {
	cfg := d.config()
	if _, err := d.run(cfg.EwwBinaryPath + " open --toggle " + name); err != nil {
		d.logger.Warn("failed to toggle window", "window", name, "error", err)
	}
}

// UpdateVar pushes a variable assignment to the renderer. The value is
// shell-escaped and newlines are rewritten to <br> so the assignment
// survives the renderer's line-oriented parser.
func (d *Driver) UpdateVar(name, value string) {
	cfg := d.config()
	quoted := strings.ReplaceAll(shellescape.Quote(value), "\n", "<br>")
	cmdline := fmt.Sprintf("%s update %s=%s", cfg.EwwBinaryPath, name, quoted)
	if _, err := d.run(cmdline); err != nil {
		d.logger.Warn("failed to update variable", "var", name, "error", err)
	}
}

// UpdateNotifications pushes the active-notification payload and keeps
// the notification window state in agreement: open while entries exist,
// closed once the last one is gone.
func (d *Driver) UpdateNotifications(active []registry.Notification) {
	cfg := d.config()
	payload := BuildActivePayload(active, cfg.NotificationOrientation, cfg.EwwNotificationWidget)
	d.UpdateVar(cfg.EwwNotificationVar, payload)
	if len(active) > 0 {
		for _, window := range cfg.NotificationWindows() {
			d.OpenWindow(window)
		}
		return
	}
	for _, window := range cfg.NotificationWindows() {
		d.CloseWindow(window)
	}
}

// UpdateHistory pushes the history payload without touching the window.
func (d *Driver) UpdateHistory(history []registry.HistoryEntry) {
	cfg := d.config()
	payload := BuildHistoryPayload(history, cfg.NotificationOrientation, cfg.EwwHistoryWidget)
	d.UpdateVar(cfg.EwwHistoryVar, payload)
}

// OpenHistory pushes the history payload and opens the history window.
func (d *Driver) OpenHistory(history []registry.HistoryEntry) {
	d.UpdateHistory(history)
	d.OpenWindow(d.config().EwwHistoryWindow)
}

// CloseHistory closes the history window.
func (d *Driver) CloseHistory() {
	d.CloseWindow(d.config().EwwHistoryWindow)
}

// ToggleHistory pushes the history payload and toggles the window.
func (d *Driver) ToggleHistory(history []registry.HistoryEntry) {
	d.UpdateHistory(history)
	d.ToggleWindow(d.config().EwwHistoryWindow)
}

// OpenReply brings up the inline-reply surface for the given id: the
// reply text variable is cleared, the reply widget is set, and the
// reply window is opened.
func (d *Driver) OpenReply(id uint32) {
	cfg := d.config()
	d.UpdateVar(cfg.EwwReplyText, "")
	d.UpdateVar(cfg.EwwReplyVar, BuildReplyWidget(cfg.EwwReplyWidget, id))
	d.OpenWindow(cfg.EwwReplyWindow)
}

// CloseReply closes the reply window.
func (d *Driver) CloseReply() {
	d.CloseWindow(d.config().EwwReplyWindow)
}
