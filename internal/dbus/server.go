// Package dbus implements the org.freedesktop.Notifications D-Bus
// interface.
package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	// Interface is the notification interface name.
	Interface = "org.freedesktop.Notifications"
	// Path is the notification object path.
	Path = "/org/freedesktop/Notifications"
	// BusName is the well-known bus name to claim.
	BusName = "org.freedesktop.Notifications"
)

// Service is the notification lifecycle engine behind the bus interface.
// The IPC layer drives the same object, so both transports serialize on
// the same state machine.
type Service interface {
	Notify(n *Notification) (uint32, error)
	CloseNotification(id uint32) error
	OpenHistory() error
	CloseHistory() error
	ToggleHistory() error
	ReplyClose(id uint32) error
}

// Server exports the freedesktop Notifications interface on the session
// bus and emits its signals. State lives in the Service; the Server only
// translates.
type Server struct {
	mu      sync.Mutex
	conn    *dbus.Conn
	logger  *slog.Logger
	service Service
	info    ServerInfo
	running bool
}

// NewServer creates a Server for the given service.
func NewServer(service Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:  logger,
		service: service,
		info:    DefaultServerInfo(),
	}
}

// SetServerInfo sets the tuple returned by GetServerInformation.
func (s *Server) SetServerInfo(info ServerInfo) {
	s.info = info
}

// Start connects to the session bus, exports the service object and
// claims the well-known name. Failure to own the name is fatal to the
// daemon.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server already running")
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, Path, Interface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: Path,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: notificationMethods(),
				Signals: notificationSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), Path,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue|dbus.NameFlagReplaceExisting)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", BusName)
	}

	s.running = true
	s.logger.Info("D-Bus notification server started", "interface", Interface, "path", Path)
	return nil
}

// Stop releases the bus name. The shared session connection stays open.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(BusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
	}

	s.logger.Info("D-Bus notification server stopped")
	return nil
}

// Notify handles incoming notification requests.
// D-Bus method: Notify(susssasa{sv}i) -> u
func (s *Server) Notify(
	appName string,
	replacesID uint32,
	appIcon string,
	summary string,
	body string,
	actions []string,
	hints map[string]dbus.Variant,
	expireTimeout int32,
) (uint32, *dbus.Error) {
	s.logger.Debug("Notify called",
		"app_name", appName,
		"replaces_id", replacesID,
		"summary", summary,
	)

	id, err := s.service.Notify(&Notification{
		AppName:       appName,
		ReplacesID:    replacesID,
		AppIcon:       appIcon,
		Summary:       summary,
		Body:          body,
		Actions:       actions,
		Hints:         hints,
		ExpireTimeout: expireTimeout,
	})
	if err != nil {
		// The notify path is infallible with respect to the bus: an id
		// was assigned before anything downstream could fail.
		s.logger.Warn("notify handling failed", "id", id, "error", err)
	}
	return id, nil
}

// CloseNotification closes a notification by id.
// D-Bus method: CloseNotification(u)
func (s *Server) CloseNotification(id uint32) *dbus.Error {
	s.logger.Debug("CloseNotification called", "id", id)
	if err := s.service.CloseNotification(id); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// GetCapabilities returns the capabilities supported by this server.
// D-Bus method: GetCapabilities() -> as
func (s *Server) GetCapabilities() ([]string, *dbus.Error) {
	s.logger.Debug("GetCapabilities called")
	return ServerCapabilities, nil
}

// GetServerInformation returns the fixed server information tuple.
// D-Bus method: GetServerInformation() -> (ssss)
func (s *Server) GetServerInformation() (string, string, string, string, *dbus.Error) {
	s.logger.Debug("GetServerInformation called")
	return s.info.Name, s.info.Vendor, s.info.Version, s.info.SpecVersion, nil
}

// OpenHistory refreshes the history payload and opens the history
// window. The IPC layer calls the same Service method directly.
func (s *Server) OpenHistory() *dbus.Error {
	if err := s.service.OpenHistory(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// CloseHistory closes the history window.
func (s *Server) CloseHistory() *dbus.Error {
	if err := s.service.CloseHistory(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// ToggleHistory refreshes the history payload and toggles the window.
func (s *Server) ToggleHistory() *dbus.Error {
	if err := s.service.ToggleHistory(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// ReplyClose clears the notification's actions and closes the reply
// window; the notification itself stays.
func (s *Server) ReplyClose(id uint32) *dbus.Error {
	if err := s.service.ReplyClose(id); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// ActionInvoked emits the ActionInvoked signal.
func (s *Server) ActionInvoked(id uint32, actionKey string) error {
	return s.emit("ActionInvoked", id, actionKey)
}

// NotificationClosed emits the NotificationClosed signal.
func (s *Server) NotificationClosed(id uint32, reason CloseReason) error {
	return s.emit("NotificationClosed", id, uint32(reason))
}

// NotificationReplied emits the NotificationReplied signal.
func (s *Server) NotificationReplied(id uint32, message string) error {
	return s.emit("NotificationReplied", id, message)
}

func (s *Server) emit(name string, values ...any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.Emit(Path, Interface+"."+name, values...)
}

// notificationMethods returns the D-Bus method introspection data.
func notificationMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "GetCapabilities",
			Args: []introspect.Arg{
				{Name: "capabilities", Type: "as", Direction: "out"},
			},
		},
		{
			Name: "GetServerInformation",
			Args: []introspect.Arg{
				{Name: "name", Type: "s", Direction: "out"},
				{Name: "vendor", Type: "s", Direction: "out"},
				{Name: "version", Type: "s", Direction: "out"},
				{Name: "spec_version", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "Notify",
			Args: []introspect.Arg{
				{Name: "app_name", Type: "s", Direction: "in"},
				{Name: "replaces_id", Type: "u", Direction: "in"},
				{Name: "app_icon", Type: "s", Direction: "in"},
				{Name: "summary", Type: "s", Direction: "in"},
				{Name: "body", Type: "s", Direction: "in"},
				{Name: "actions", Type: "as", Direction: "in"},
				{Name: "hints", Type: "a{sv}", Direction: "in"},
				{Name: "expire_timeout", Type: "i", Direction: "in"},
				{Name: "id", Type: "u", Direction: "out"},
			},
		},
		{
			Name: "CloseNotification",
			Args: []introspect.Arg{
				{Name: "id", Type: "u", Direction: "in"},
			},
		},
		{Name: "OpenHistory"},
		{Name: "CloseHistory"},
		{Name: "ToggleHistory"},
		{
			Name: "ReplyClose",
			Args: []introspect.Arg{
				{Name: "id", Type: "u", Direction: "in"},
			},
		},
	}
}

// notificationSignals returns the D-Bus signal introspection data.
func notificationSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "NotificationClosed",
			Args: []introspect.Arg{
				{Name: "id", Type: "u"},
				{Name: "reason", Type: "u"},
			},
		},
		{
			Name: "ActionInvoked",
			Args: []introspect.Arg{
				{Name: "id", Type: "u"},
				{Name: "action_key", Type: "s"},
			},
		},
		{
			Name: "NotificationReplied",
			Args: []introspect.Arg{
				{Name: "id", Type: "u"},
				{Name: "message", Type: "s"},
			},
		},
	}
}
