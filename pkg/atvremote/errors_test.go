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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecError(t *testing.T) {
	t.Parallel()

	t.Run("non_zero_exit_message_carries_code", func(t *testing.T) {
		t.Parallel()

		err := &ExecError{Kind: ExecNonZeroExit, ExitCode: 2}
		assert.Contains(t, err.Error(), "code 2")
	})

	t.Run("unwraps_cause", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("boom")
		err := &ExecError{Kind: ExecSpawnFailure, Err: cause}
		require.ErrorIs(t, err, cause)
	})

	t.Run("kind_strings", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "spawn failure", ExecSpawnFailure.String())
		assert.Equal(t, "timeout", ExecTimeout.String())
		assert.Equal(t, "non-zero exit", ExecNonZeroExit.String())
	})
}

func TestTruncateOutput(t *testing.T) {
	t.Parallel()

	t.Run("short_output_untouched", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "hello", truncateOutput("hello"))
	})

	t.Run("long_output_truncated", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("x", outputLimit*2)
		got := truncateOutput(long)
		assert.Len(t, got, outputLimit+len("... (truncated)"))
		assert.True(t, strings.HasSuffix(got, "... (truncated)"))
	})
}
