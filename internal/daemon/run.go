package daemon

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/ewwnotifyd/internal/audio"
	"github.com/jmylchreest/ewwnotifyd/internal/config"
	"github.com/jmylchreest/ewwnotifyd/internal/dbus"
	"github.com/jmylchreest/ewwnotifyd/internal/eww"
	"github.com/jmylchreest/ewwnotifyd/internal/icon"
	"github.com/jmylchreest/ewwnotifyd/internal/ipc"
	"github.com/jmylchreest/ewwnotifyd/internal/registry"
)

// Run wires the components together and serves until ctx is cancelled.
// cfgPath is the file cfg was loaded from (empty for the default) and
// is watched for reloads. Failing to own the bus name or to bind the
// control socket is fatal; a flapping renderer and a broken config
// reload are not.
func Run(ctx context.Context, cfg *config.Config, cfgPath, version string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	reg := registry.New(cfg.MaxNotifications)
	driver := eww.NewDriver(cfg, logger)
	icons := icon.NewResolver(cfg, logger)
	sounds := audio.NewManager(cfg, logger)
	defer sounds.Close()

	d := New(cfg, reg, driver, icons, sounds, logger)
	d.SetContext(ctx)

	server := dbus.NewServer(d, logger)
	info := dbus.DefaultServerInfo()
	info.Version = version
	server.SetServerInfo(info)
	d.SetSignals(server)

	if err := server.Start(); err != nil {
		return err
	}
	defer func() { _ = server.Stop() }()

	listener := ipc.NewListener(config.SocketPath(), d, logger)
	if err := listener.Start(ctx); err != nil {
		return err
	}
	defer listener.Stop()

	if cfgPath == "" {
		cfgPath = config.Path()
	}
	watcher, err := NewConfigWatcher(cfgPath, logger)
	if err != nil {
		logger.Warn("config hot-reload unavailable", "error", err)
	} else {
		watcher.SetReloadCallback(func(newCfg *config.Config) {
			d.ApplyConfig(newCfg)
			driver.UpdateConfig(newCfg)
			sounds.UpdateConfig(newCfg)
			logger.Info("configuration reloaded")
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	logger.Info("ewwnotifyd ready",
		"bus_name", dbus.BusName, "socket", config.SocketPath())

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
