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

// Package atvremote manages the external control binary used to reach the
// companion streaming device: locating or provisioning it, one-shot
// invocations with hard timeouts, and long-lived interactive processes.
package atvremote

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// RunResult holds the fully captured output of a one-shot invocation.
type RunResult struct {
	Stdout string
	Stderr string
}

// Combined returns stdout followed by stderr.
func (r RunResult) Combined() string {
	return r.Stdout + r.Stderr
}

// Runner invokes the external control binary. It is an interface so
// pairing, wake and discovery can be tested without a real binary.
type Runner interface {
	// Run executes the binary once, capturing stdout and stderr fully and
	// killing the process when the timeout expires.
	Run(ctx context.Context, timeout time.Duration, args ...string) (RunResult, error)

	// Start spawns a long-lived interactive process. The returned handle
	// exclusively owns the process; callers must terminate it on every
	// exit path.
	Start(args ...string) (Process, error)
}

// ExecRunner runs a concrete binary on the real system.
type ExecRunner struct {
	binary string
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner creates a runner for the control binary at path.
func NewExecRunner(binary string) *ExecRunner {
	return &ExecRunner{binary: binary}
}

// Binary returns the path the runner invokes.
func (r *ExecRunner) Binary() string {
	return r.binary
}

// Run executes the binary once and classifies any failure as an ExecError.
func (r *ExecRunner) Run(
	ctx context.Context, timeout time.Duration, args ...string,
) (RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return result, &ExecError{
			Kind:   ExecTimeout,
			Err:    err,
			Output: truncateOutput(result.Combined()),
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, &ExecError{
			Kind:     ExecNonZeroExit,
			ExitCode: exitErr.ExitCode(),
			Err:      err,
			Output:   truncateOutput(result.Combined()),
		}
	}

	return result, &ExecError{Kind: ExecSpawnFailure, Err: err}
}

// Start spawns the binary as an interactive process with a combined
// incremental output buffer.
func (r *ExecRunner) Start(args ...string) (Process, error) {
	return startProcess(r.binary, args)
}
