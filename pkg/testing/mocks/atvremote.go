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

package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/ZaparooProject/viera-bridge/pkg/atvremote"
	"github.com/stretchr/testify/mock"
)

// MockRunner is a testify mock for atvremote.Runner.
type MockRunner struct {
	mock.Mock
}

var _ atvremote.Runner = (*MockRunner)(nil)

func (m *MockRunner) Run(
	ctx context.Context, timeout time.Duration, args ...string,
) (atvremote.RunResult, error) {
	called := m.Called(ctx, timeout, args)
	result, _ := called.Get(0).(atvremote.RunResult)
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return result, called.Error(1)
}

func (m *MockRunner) Start(args ...string) (atvremote.Process, error) {
	called := m.Called(args)
	proc, _ := called.Get(0).(atvremote.Process)
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return proc, called.Error(1)
}

// FakeProcess is a scripted stand-in for atvremote.Process. Tests drive
// it by calling Emit to append output and Exit to end the process, and
// inspect the lines written to its stdin.
type FakeProcess struct {
	changed  chan struct{}
	done     chan struct{}
	writeErr error
	onWrite  func(line string)

	mu       sync.Mutex
	output   string
	lines    []string
	exitCode int
	exited   bool
}

var _ atvremote.Process = (*FakeProcess)(nil)

func NewFakeProcess() *FakeProcess {
	return &FakeProcess{
		changed:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		exitCode: -1,
	}
}

// Emit appends output and signals a change, as a real subprocess writing
// to its pipe would.
func (p *FakeProcess) Emit(output string) {
	p.mu.Lock()
	p.output += output
	p.mu.Unlock()

	select {
	case p.changed <- struct{}{}:
	default:
	}
}

// Exit marks the process as finished with the given code. Safe to call
// more than once.
func (p *FakeProcess) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return
	}
	p.exited = true
	p.exitCode = code
	close(p.done)
}

// SetWriteErr makes subsequent WriteLine calls fail.
func (p *FakeProcess) SetWriteErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// OnWriteLine installs a hook invoked after every successful WriteLine,
// letting tests script the process reacting to its stdin.
func (p *FakeProcess) OnWriteLine(fn func(line string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onWrite = fn
}

// Lines returns everything written to the fake's stdin so far.
func (p *FakeProcess) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// Terminated reports whether Terminate has ended the process.
func (p *FakeProcess) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited && p.exitCode == -1
}

func (p *FakeProcess) Output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

func (p *FakeProcess) Changed() <-chan struct{} {
	return p.changed
}

func (p *FakeProcess) Done() <-chan struct{} {
	return p.done
}

func (p *FakeProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *FakeProcess) WriteLine(line string) error {
	p.mu.Lock()
	if p.writeErr != nil {
		err := p.writeErr
		p.mu.Unlock()
		return err
	}
	p.lines = append(p.lines, line)
	onWrite := p.onWrite
	p.mu.Unlock()

	if onWrite != nil {
		onWrite(line)
	}
	return nil
}

// Terminate ends the process with an unknown exit code, mirroring a
// killed subprocess.
func (p *FakeProcess) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return
	}
	p.exited = true
	p.exitCode = -1
	close(p.done)
}
