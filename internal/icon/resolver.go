// Package icon resolves icon names to files on disk and persists
// image-data pixmaps so the renderer can load them by path.
package icon

import (
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/ewwnotifyd/internal/config"
)

// searchBudget bounds a single icon lookup; a slow or enormous icon
// directory must not stall the notify path.
const searchBudget = 2 * time.Second

var iconExtensions = map[string]bool{
	".png": true,
	".svg": true,
	".xpm": true,
}

// Resolver locates icons by name inside the configured icon
// directories.
type Resolver struct {
	logger *slog.Logger
	cfg    *config.Config
}

// NewResolver creates a Resolver for the given configuration.
func NewResolver(cfg *config.Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger, cfg: cfg}
}

// Resolve maps an icon name to a file path. Absolute and ~-relative
// names pass through; anything else is searched for in the icon
// directories, preferring the configured theme. Returns false when no
// file was found within the search budget.
func (r *Resolver) Resolve(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if strings.HasPrefix(name, "/") {
		return name, true
	}
	if strings.HasPrefix(name, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		return filepath.Join(home, strings.TrimPrefix(name, "~")), true
	}

	deadline := time.Now().Add(searchBudget)
	for _, dir := range r.cfg.IconDirs {
		dir = expandHome(dir)
		// The theme subtree wins over a loose hit elsewhere.
		for _, root := range []string{filepath.Join(dir, r.cfg.IconTheme), dir} {
			if path, ok := r.search(root, name, deadline); ok {
				return path, true
			}
			if time.Now().After(deadline) {
				r.logger.Warn("icon search timed out", "icon", name)
				return "", false
			}
		}
	}
	return "", false
}

// errFound terminates a walk early once a match is in hand.
var errFound = fmt.Errorf("icon found")

func (r *Resolver) search(root, name string, deadline time.Time) (string, bool) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fs.SkipAll
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		ext := filepath.Ext(base)
		if !iconExtensions[ext] {
			return nil
		}
		if strings.TrimSuffix(base, ext) == name {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && err != errFound {
		return "", false
	}
	return found, found != ""
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Persist writes an image-data pixmap (the seven-field hint structure:
// width, height, rowstride, has_alpha, bits_per_sample, channels, data)
// to the pixmap cache as <id>.png and returns its path. Returns false
// on any malformed structure; the caller falls back to the literal
// icon string.
func (r *Resolver) Persist(fields []any, id uint32) (string, bool) {
	if len(fields) != 7 {
		return "", false
	}
	width, ok1 := asInt(fields[0])
	height, ok2 := asInt(fields[1])
	rowstride, ok3 := asInt(fields[2])
	hasAlpha, ok4 := fields[3].(bool)
	channels, ok5 := asInt(fields[5])
	data, ok6 := fields[6].([]byte)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
		return "", false
	}
	if width <= 0 || height <= 0 || channels < 3 || rowstride < width*channels {
		return "", false
	}
	if len(data) < rowstride*(height-1)+width*channels {
		return "", false
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := data[y*rowstride:]
		for x := 0; x < width; x++ {
			px := row[x*channels:]
			var a byte = 0xff
			if hasAlpha && channels >= 4 {
				a = px[3]
			}
			off := img.PixOffset(x, y)
			img.Pix[off+0] = px[0]
			img.Pix[off+1] = px[1]
			img.Pix[off+2] = px[2]
			img.Pix[off+3] = a
		}
	}

	dir := config.PixmapDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Warn("failed to create pixmap dir", "dir", dir, "error", err)
		return "", false
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.png", id))
	f, err := os.Create(path)
	if err != nil {
		r.logger.Warn("failed to create pixmap file", "path", path, "error", err)
		return "", false
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		r.logger.Warn("failed to encode pixmap", "path", path, "error", err)
		return "", false
	}
	return path, true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case uint32:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
