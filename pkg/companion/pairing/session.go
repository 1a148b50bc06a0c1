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

// Package pairing drives the two-step interactive pairing flow against a
// long-lived control binary subprocess, extracting an opaque credential
// blob from its output.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ZaparooProject/viera-bridge/pkg/atvremote"
	"github.com/ZaparooProject/viera-bridge/pkg/companion"
	"github.com/ZaparooProject/viera-bridge/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// State is the pairing session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateAwaitingPin
	StateFinishing
	StatePaired
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateAwaitingPin:
		return "awaiting pin"
	case StateFinishing:
		return "finishing"
	case StatePaired:
		return "paired"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StatePaired || s == StateFailed || s == StateCancelled
}

var (
	// ErrNoActiveSession is returned by Finish when the session is not
	// awaiting a PIN or its subprocess has already terminated.
	ErrNoActiveSession = errors.New("no active pairing session")
	// ErrTimeout is returned when the subprocess produces neither a PIN
	// prompt nor an exit within the session budget.
	ErrTimeout = errors.New("pairing timed out")
	// ErrNoCredentials is returned when the subprocess exited non-zero
	// without an extractable credential string.
	ErrNoCredentials = errors.New("no credentials extracted from pairing output")
	// ErrCancelled is returned to pending callers when the session is
	// cancelled underneath them.
	ErrCancelled = errors.New("pairing session cancelled")
)

// sessionTimeout is the budget for each interactive phase: waiting for a
// PIN prompt after start, and waiting for exit after the PIN is written.
// The two budgets are enforced separately.
const sessionTimeout = 30 * time.Second

// pinPromptMarker is the output fragment indicating the device wants a PIN.
const pinPromptMarker = "Enter PIN"

// Credential extraction is a two-stage heuristic inherited from the
// protocol tooling's human-oriented output: a labeled "credentials:" line
// wins, otherwise the last long hex-colon token in the output. The order
// matters when both appear; do not reorder.
var (
	credentialLabelRe = regexp.MustCompile(`(?i)credentials:\s*(\S+)`)
	hexColonTokenRe   = regexp.MustCompile(`\b[0-9a-fA-F]{16,}(?::[0-9a-fA-F]+)+\b`)
)

// ExtractCredentials applies the two-stage credential heuristic to raw
// subprocess output. Returns an empty string when neither stage matches.
func ExtractCredentials(output string) string {
	if match := credentialLabelRe.FindStringSubmatch(output); match != nil {
		return match[1]
	}

	matches := hexColonTokenRe.FindAllString(output, -1)
	if len(matches) > 0 {
		return matches[len(matches)-1]
	}

	return ""
}

// Session drives one pairing attempt for a single protocol. A session owns
// exactly one subprocess and releases it on every exit path. Sessions are
// single use: a failed or cancelled session cannot be restarted.
type Session struct {
	runner     atvremote.Runner
	clock      clockwork.Clock
	process    atvremote.Process
	credential string
	protocol   companion.Protocol
	state      State
	mu         syncutil.Mutex
}

// NewSession creates an idle pairing session. A nil clock uses the real
// wall clock.
func NewSession(runner atvremote.Runner, clock clockwork.Clock) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{
		runner: runner,
		clock:  clock,
		state:  StateIdle,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Protocol returns the protocol this session pairs over. Empty until
// Start has been called.
func (s *Session) Protocol() companion.Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocol
}

// Credential returns the extracted credential blob. Only valid in
// StatePaired.
func (s *Session) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// transition moves to a new state unless a terminal state has already
// been reached, which happens when Cancel races the watch loops.
func (s *Session) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = to
	return true
}

// Start spawns the pairing subprocess scoped to one protocol and waits
// for either a PIN prompt or an early exit. On return the session is in
// StateAwaitingPin (interactive pairing continues via Finish), StatePaired
// (protocols that pair without a PIN), or a terminal failure state.
func (s *Session) Start(
	ctx context.Context, identity companion.Identity, protocol companion.Protocol,
) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("pairing session already started: %s", s.state)
	}
	if !protocol.Valid() {
		s.state = StateFailed
		s.mu.Unlock()
		return fmt.Errorf("unknown pairing protocol: %q", protocol)
	}
	s.state = StateStarting
	s.protocol = protocol
	s.mu.Unlock()

	proc, err := s.runner.Start(companion.PairArgs(identity, protocol)...)
	if err != nil {
		s.transition(StateFailed)
		return fmt.Errorf("failed to start pairing process: %w", err)
	}

	s.mu.Lock()
	s.process = proc
	cancelled := s.state.Terminal()
	s.mu.Unlock()

	// Cancel may have landed while the process was spawning, before it had
	// anything to terminate. Release the subprocess here instead of letting
	// it run out the phase deadline.
	if cancelled {
		proc.Terminate()
		return ErrCancelled
	}

	log.Info().Msgf("pairing started for protocol %s", protocol)

	deadline := s.clock.After(sessionTimeout)
	for {
		select {
		case <-proc.Done():
			return s.resolveEarlyExit(proc)

		case <-deadline:
			proc.Terminate()
			s.transition(StateFailed)
			return ErrTimeout

		case <-ctx.Done():
			proc.Terminate()
			s.transition(StateFailed)
			return fmt.Errorf("pairing aborted: %w", ctx.Err())

		case <-proc.Changed():
			if strings.Contains(proc.Output(), pinPromptMarker) {
				if !s.transition(StateAwaitingPin) {
					proc.Terminate()
					return ErrCancelled
				}
				log.Debug().Msg("pairing process prompted for pin")
				return nil
			}
		}
	}
}

// resolveEarlyExit handles a pairing process that exited before any PIN
// prompt: some protocols pair without an interactive step and print
// credentials straight away.
func (s *Session) resolveEarlyExit(proc atvremote.Process) error {
	output := proc.Output()

	if cred := ExtractCredentials(output); cred != "" {
		s.mu.Lock()
		terminal := s.state.Terminal()
		if !terminal {
			s.state = StatePaired
			s.credential = cred
		}
		s.mu.Unlock()
		if terminal {
			return ErrCancelled
		}
		return nil
	}

	s.transition(StateFailed)
	if proc.ExitCode() != 0 {
		return fmt.Errorf("pairing process exited with code %d: %w",
			proc.ExitCode(), ErrNoCredentials)
	}
	return ErrNoCredentials
}

// Finish writes the PIN to the live subprocess and waits for it to exit,
// then extracts the credential from its full output. Valid only from
// StateAwaitingPin with a live process; anything else fails immediately
// with ErrNoActiveSession without touching any process.
func (s *Session) Finish(ctx context.Context, pin string) (string, error) {
	s.mu.Lock()
	if s.state != StateAwaitingPin || s.process == nil {
		s.mu.Unlock()
		return "", ErrNoActiveSession
	}
	proc := s.process
	select {
	case <-proc.Done():
		s.mu.Unlock()
		return "", ErrNoActiveSession
	default:
	}
	s.state = StateFinishing
	s.mu.Unlock()

	if err := proc.WriteLine(pin); err != nil {
		proc.Terminate()
		s.transition(StateFailed)
		return "", fmt.Errorf("failed to send pin: %w", err)
	}

	deadline := s.clock.After(sessionTimeout)
	select {
	case <-proc.Done():
	case <-deadline:
		proc.Terminate()
		s.transition(StateFailed)
		return "", ErrTimeout
	case <-ctx.Done():
		proc.Terminate()
		s.transition(StateFailed)
		return "", fmt.Errorf("pairing aborted: %w", ctx.Err())
	}

	output := proc.Output()
	cred := ExtractCredentials(output)
	if cred == "" && proc.ExitCode() == 0 {
		// best effort: a clean exit without a recognizable credential
		// line still counts, using the trimmed output as the blob
		cred = strings.TrimSpace(output)
	}

	if cred == "" {
		s.transition(StateFailed)
		return "", fmt.Errorf("pairing process exited with code %d: %w",
			proc.ExitCode(), ErrNoCredentials)
	}

	s.mu.Lock()
	terminal := s.state.Terminal()
	if !terminal {
		s.state = StatePaired
		s.credential = cred
	}
	s.mu.Unlock()
	if terminal {
		return "", ErrCancelled
	}

	log.Info().Msgf("pairing finished for protocol %s", s.Protocol())
	return cred, nil
}

// Cancel terminates the session and its subprocess. Safe from every state
// and idempotent: cancelling a terminal session or an already-exited
// process is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	proc := s.process
	if !s.state.Terminal() {
		s.state = StateCancelled
	}
	s.mu.Unlock()

	if proc != nil {
		proc.Terminate()
	}
}
