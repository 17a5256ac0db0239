// Package config loads Vico's environment-variable configuration and
// resolves its XDG Base Directory Specification paths.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds Vico's standard data/config/cache/state directories.
type Paths struct {
	Data   string // ~/.local/share/vico
	Config string // ~/.config/vico
	Cache  string // ~/.cache/vico
	State  string // ~/.local/state/vico
}

// GetPaths returns the standard paths for Vico's on-disk state.
func GetPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultDataHome()), "vico"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "vico"),
		Cache:  filepath.Join(getEnvOrDefault("XDG_CACHE_HOME", defaultCacheHome()), "vico"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "vico"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// MemoryDBPath returns the path to the memory store's SQLite database.
func (p *Paths) MemoryDBPath() string {
	return filepath.Join(p.Data, "memory.db")
}

// ResearchDBPath returns the path to the research corpus's SQLite database.
func (p *Paths) ResearchDBPath() string {
	return filepath.Join(p.Data, "research.db")
}

// ConfigFile returns the path to the optional JSONC config overlay.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.Config, "vico.jsonc")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultCacheHome() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "cache")
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}
