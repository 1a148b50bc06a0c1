// Viera Bridge
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Viera Bridge.
//
// Viera Bridge is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Viera Bridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Viera Bridge.  If not, see <http://www.gnu.org/licenses/>.

package atvremote

import (
	"os"
	"path/filepath"
)

// BinaryName is the external control binary for the companion device.
const BinaryName = "atvremote"

// Locator resolves the path to the external control binary. The search
// path is explicit state owned by whoever constructs the locator, not a
// package global.
type Locator struct {
	dirs      []string
	userGlobs []string
}

// NewLocator creates a locator over the default well-known installation
// directories plus per-user local bin directories.
func NewLocator() *Locator {
	home, _ := os.UserHomeDir()
	return &Locator{
		dirs: []string{
			"/usr/local/bin",
			"/usr/bin",
			"/opt/homebrew/bin",
			filepath.Join(home, ".local", "bin"),
		},
		userGlobs: []string{
			// user-level python installs on mac
			filepath.Join(home, "Library", "Python", "*", "bin"),
		},
	}
}

// NewLocatorDirs creates a locator searching only the given directories,
// in order. Used by tests and by config path overrides.
func NewLocatorDirs(dirs ...string) *Locator {
	return &Locator{dirs: dirs}
}

// Locate returns the first executable match for the control binary, or an
// empty string if no directory holds one. A miss is not an error.
func (l *Locator) Locate() string {
	dirs := make([]string, 0, len(l.dirs))
	dirs = append(dirs, l.dirs...)

	for _, glob := range l.userGlobs {
		matches, err := filepath.Glob(glob)
		if err != nil {
			continue
		}
		dirs = append(dirs, matches...)
	}

	for _, dir := range dirs {
		path := filepath.Join(dir, BinaryName)
		if isExecutable(path) {
			return path
		}
	}

	return ""
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
