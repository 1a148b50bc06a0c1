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

import "fmt"

// ExecErrorKind classifies a failed invocation of the control binary.
type ExecErrorKind int

const (
	// ExecSpawnFailure means the process could not be started at all.
	ExecSpawnFailure ExecErrorKind = iota
	// ExecTimeout means the process was killed after exceeding its deadline.
	ExecTimeout
	// ExecNonZeroExit means the process ran but exited with a non-zero code.
	ExecNonZeroExit
)

func (k ExecErrorKind) String() string {
	switch k {
	case ExecSpawnFailure:
		return "spawn failure"
	case ExecTimeout:
		return "timeout"
	case ExecNonZeroExit:
		return "non-zero exit"
	default:
		return "unknown"
	}
}

// ExecError is returned for every failed one-shot invocation. Output holds
// truncated captured output for diagnostics.
type ExecError struct {
	Err      error
	Output   string
	Kind     ExecErrorKind
	ExitCode int
}

func (e *ExecError) Error() string {
	switch e.Kind {
	case ExecNonZeroExit:
		return fmt.Sprintf("atvremote exited with code %d", e.ExitCode)
	case ExecTimeout:
		return "atvremote timed out"
	default:
		return fmt.Sprintf("failed to run atvremote: %v", e.Err)
	}
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// outputLimit bounds how much captured output an ExecError carries.
const outputLimit = 1024

func truncateOutput(s string) string {
	if len(s) <= outputLimit {
		return s
	}
	return s[:outputLimit] + "... (truncated)"
}
