// Package assets carries the starter eww stylesheet and widget markup
// and writes them into the user's eww configuration.
package assets

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed ewwnotifyd.scss ewwnotifyd.yuck
var files embed.FS

// Dir returns the eww configuration directory the generated files go
// into.
func Dir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "eww")
}

// Generate writes the requested template files. Existing files are
// overwritten; the templates are a starting point, not state.
func Generate(css, yuck bool) error {
	dir := Dir()
	if dir == "" {
		return fmt.Errorf("unable to determine eww config directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	write := func(name string) error {
		data, err := files.ReadFile(name)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	}

	if css {
		if err := write("ewwnotifyd.scss"); err != nil {
			return err
		}
	}
	if yuck {
		if err := write("ewwnotifyd.yuck"); err != nil {
			return err
		}
	}
	return nil
}
