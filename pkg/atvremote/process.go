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
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/ZaparooProject/viera-bridge/pkg/helpers/syncutil"
)

// terminateGrace is how long Terminate waits after SIGTERM before killing
// the process outright.
const terminateGrace = 3 * time.Second

// Process is a handle to a long-lived interactive subprocess. Ownership is
// exclusive: whoever holds the handle must call Terminate on every exit
// path. Terminate is idempotent and safe on an already-exited process.
type Process interface {
	// Output returns all combined stdout/stderr output captured so far.
	Output() string

	// Changed is signaled whenever new output arrives. The channel has a
	// buffer of one; readers must re-check Output after each receive.
	Changed() <-chan struct{}

	// Done is closed when the process has exited.
	Done() <-chan struct{}

	// ExitCode returns the process exit code. Only valid after Done is
	// closed; -1 means the process was killed or the code is unknown.
	ExitCode() int

	// WriteLine writes a line followed by a line terminator to the
	// process's standard input.
	WriteLine(line string) error

	// Terminate requests process termination. Terminating an exited
	// process is a no-op.
	Terminate()
}

// outputBuffer accumulates combined process output and signals arrivals.
type outputBuffer struct {
	changed chan struct{}
	mu      syncutil.Mutex
	buf     strings.Builder
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.buf.Write(p)
	b.mu.Unlock()

	select {
	case b.changed <- struct{}{}:
	default:
	}

	return len(p), nil
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type proc struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	out      *outputBuffer
	done     chan struct{}
	mu       syncutil.Mutex
	exitCode int
}

var _ Process = (*proc)(nil)

func startProcess(binary string, args []string) (Process, error) {
	cmd := exec.Command(binary, args...)

	out := &outputBuffer{changed: make(chan struct{}, 1)}
	cmd.Stdout = out
	cmd.Stderr = out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ExecError{Kind: ExecSpawnFailure, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &ExecError{Kind: ExecSpawnFailure, Err: err}
	}

	p := &proc{
		cmd:      cmd,
		stdin:    stdin,
		out:      out,
		done:     make(chan struct{}),
		exitCode: -1,
	}

	go p.wait()

	return p, nil
}

func (p *proc) wait() {
	err := p.cmd.Wait()

	code := 0
	if err != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}

	p.mu.Lock()
	p.exitCode = code
	p.mu.Unlock()

	_ = p.stdin.Close()
	close(p.done)
}

func (p *proc) Output() string {
	return p.out.String()
}

func (p *proc) Changed() <-chan struct{} {
	return p.out.changed
}

func (p *proc) Done() <-chan struct{} {
	return p.done
}

func (p *proc) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *proc) WriteLine(line string) error {
	_, err := io.WriteString(p.stdin, line+"\n")
	if err != nil {
		return fmt.Errorf("failed to write to process stdin: %w", err)
	}
	return nil
}

func (p *proc) Terminate() {
	select {
	case <-p.done:
		return
	default:
	}

	// ask politely first, then follow up with a hard kill if the process
	// is still around after the grace period
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = p.cmd.Process.Kill()
		return
	}

	go func() {
		select {
		case <-p.done:
		case <-time.After(terminateGrace):
			_ = p.cmd.Process.Kill()
		}
	}()
}
