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

package atvremote_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZaparooProject/viera-bridge/pkg/atvremote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBinary(t *testing.T, dir string, mode os.FileMode) string {
	t.Helper()

	path := filepath.Join(dir, atvremote.BinaryName)
	err := os.WriteFile(path, []byte("#!/bin/sh\n"), mode)
	require.NoError(t, err)
	return path
}

func TestLocate(t *testing.T) {
	t.Parallel()

	t.Run("finds_executable_in_first_dir", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := writeBinary(t, dir, 0o755)

		locator := atvremote.NewLocatorDirs(dir, t.TempDir())
		assert.Equal(t, path, locator.Locate())
	})

	t.Run("search_order_is_respected", func(t *testing.T) {
		t.Parallel()

		first := t.TempDir()
		second := t.TempDir()
		firstPath := writeBinary(t, first, 0o755)
		writeBinary(t, second, 0o755)

		locator := atvremote.NewLocatorDirs(first, second)
		assert.Equal(t, firstPath, locator.Locate())
	})

	t.Run("skips_non_executable_files", func(t *testing.T) {
		t.Parallel()

		plain := t.TempDir()
		executable := t.TempDir()
		writeBinary(t, plain, 0o644)
		wantPath := writeBinary(t, executable, 0o755)

		locator := atvremote.NewLocatorDirs(plain, executable)
		assert.Equal(t, wantPath, locator.Locate())
	})

	t.Run("empty_when_not_found", func(t *testing.T) {
		t.Parallel()

		locator := atvremote.NewLocatorDirs(t.TempDir())
		assert.Empty(t, locator.Locate())
	})

	t.Run("missing_dirs_are_not_errors", func(t *testing.T) {
		t.Parallel()

		locator := atvremote.NewLocatorDirs(filepath.Join(t.TempDir(), "nope"))
		assert.Empty(t, locator.Locate())
	})
}
