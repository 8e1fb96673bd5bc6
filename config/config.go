package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Dir returns the vty configuration directory.
// Respects XDG_CONFIG_HOME on Unix, APPDATA on Windows.
func Dir() string {
	var base string

	if runtime.GOOS == "windows" {
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	} else {
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(base, "vty")
}

// InitFile returns the path to init.lua
func InitFile() string {
	return filepath.Join(Dir(), "init.lua")
}

// ListenAddress returns the listen address, honoring VTY_LISTEN.
func ListenAddress() string {
	if addr := os.Getenv("VTY_LISTEN"); addr != "" {
		return addr
	}
	return "127.0.0.1:2602"
}

// IdleTimeout returns the session idle timeout, honoring
// VTY_IDLE_TIMEOUT (a Go duration string). Zero disables it.
func IdleTimeout() time.Duration {
	if v := os.Getenv("VTY_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 10 * time.Minute
}
