// Package prefs persists the small set of console settings that survive
// between runs: the active theme and the listing page size.
//
// Unlike the service configuration in internal/config, prefs are never
// worth refusing to start over. A missing, unreadable, or malformed file
// yields Defaults, and the file is rewritten the next time a setting
// changes from inside the console.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultPath = "~/.config/canopy/prefs.toml"

// Prefs are the console settings persisted between runs.
type Prefs struct {
	Theme    string `toml:"theme"`
	PageSize int    `toml:"page_size"`
}

// Defaults returns the settings used when no prefs file exists.
func Defaults() Prefs {
	return Prefs{Theme: "Moss", PageSize: 25}
}

// DefaultPath returns where prefs live unless overridden with -prefs.
func DefaultPath() string { return defaultPath }

// Load reads prefs from path, or from DefaultPath when path is empty.
// Any failure along the way falls back to Defaults.
func Load(path string) Prefs {
	resolved, err := resolve(path)
	if err != nil {
		return Defaults()
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return Defaults()
	}
	p := Defaults()
	if err := toml.Unmarshal(raw, &p); err != nil {
		return Defaults()
	}
	return p.normalized()
}

// normalized replaces unusable values with their defaults, so a
// hand-edited file with a blank theme or page_size = 0 does not leave
// the console unstyled or with empty tables.
func (p Prefs) normalized() Prefs {
	d := Defaults()
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = d.Theme
	}
	if p.PageSize <= 0 {
		p.PageSize = d.PageSize
	}
	return p
}

// Save writes prefs to path, creating parent directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	raw, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(resolved, raw, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

// resolve expands a leading ~ and absolutizes the path, substituting
// the default location when path is blank.
func resolve(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		p = defaultPath
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}
