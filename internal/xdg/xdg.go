// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

// Package xdg locates phonepass files under the XDG Base Directory layout.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "phonepass"

// ConfigFileName is the config file looked up in ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for phonepass.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path and whether it exists.
// Permission errors count as existing so the load reports them.
func ConfigFile() (string, bool, error) {
	path := filepath.Join(ConfigDir(), ConfigFileName)
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, true, nil
	case errors.Is(err, fs.ErrNotExist):
		return path, false, nil
	case errors.Is(err, fs.ErrPermission):
		return path, true, nil
	default:
		return path, false, oops.Code("XDG_STAT_FAILED").With("path", path).Wrap(err)
	}
}
