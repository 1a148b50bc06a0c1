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

// Package wake tries an ordered cascade of remote commands against the
// companion device until one succeeds, relying on HDMI-CEC to carry the
// power-on through to the television.
package wake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/viera-bridge/pkg/atvremote"
	"github.com/ZaparooProject/viera-bridge/pkg/companion"
	"github.com/rs/zerolog/log"
)

// attemptTimeout bounds a single strategy invocation. Device wake can be
// slow, so the budget is generous.
const attemptTimeout = 20 * time.Second

// ErrNoUsableCredentials is returned before any strategy runs when the
// credential set has neither an airplay nor a companion credential.
var ErrNoUsableCredentials = errors.New("credentials unusable for wake: need airplay or companion")

// Strategy describes one protocol/command pair in the cascade. Strategies
// are data so ordering stays explicit and testable.
type Strategy struct {
	Label    string
	Command  string
	Protocol companion.Protocol
	// RequiresCredential skips the strategy when its protocol's
	// credential is absent rather than invoking a command that cannot
	// authenticate.
	RequiresCredential bool
}

// Args builds the invocation for this strategy from the device identity
// and only the credential relevant to its protocol. An absent credential
// simply omits the argument.
func (s Strategy) Args(id companion.Identity, creds companion.Credentials) []string {
	args := id.Args()
	args = append(args, creds.Args(s.Protocol)...)
	args = append(args, s.Command)
	return args
}

// DefaultStrategies is the fixed cascade order. Later strategies are
// weaker signals that tend to wake the device only as a side effect, so
// the order matters.
var DefaultStrategies = []Strategy{
	{
		Label:              "companion power on",
		Command:            "turn_on",
		Protocol:           companion.ProtocolCompanion,
		RequiresCredential: true,
	},
	{
		Label:    "airplay power on",
		Command:  "turn_on",
		Protocol: companion.ProtocolAirPlay,
	},
	{
		Label:    "airplay app launch",
		Command:  "launch_app=com.apple.TVWatchList",
		Protocol: companion.ProtocolAirPlay,
	},
	{
		Label:    "mrp home hold",
		Command:  "home_hold",
		Protocol: companion.ProtocolMRP,
	},
}

// AttemptResult records the outcome of a single strategy for diagnostics.
// It is not persisted.
type AttemptResult struct {
	StrategyLabel string
	RawOutput     string
	Succeeded     bool
}

// AllStrategiesFailedError aggregates a fully failed cascade. Only the
// attempt count is carried to bound the error's size.
type AllStrategiesFailedError struct {
	Attempts int
}

func (e *AllStrategiesFailedError) Error() string {
	return fmt.Sprintf("all %d wake strategies failed", e.Attempts)
}

// Result reports which strategy woke the device.
type Result struct {
	StrategyLabel string
}

// Waker runs the wake cascade through the control binary.
type Waker struct {
	runner     atvremote.Runner
	strategies []Strategy
}

// New creates a waker using the default strategy cascade.
func New(runner atvremote.Runner) *Waker {
	return &Waker{runner: runner, strategies: DefaultStrategies}
}

// NewWithStrategies creates a waker with an explicit cascade. Used by
// tests to control ordering.
func NewWithStrategies(runner atvremote.Runner, strategies []Strategy) *Waker {
	return &Waker{runner: runner, strategies: strategies}
}

// Wake tries each strategy in order and returns on the first success. A
// strategy failure is logged and the cascade proceeds; if every strategy
// fails the cascade fails with an AllStrategiesFailedError. The cascade
// itself is never retried here; that is the caller's decision.
func (w *Waker) Wake(
	ctx context.Context, identity companion.Identity, creds companion.Credentials,
) (Result, error) {
	if !identity.Valid() {
		return Result{}, errors.New("companion identity is empty")
	}
	if !creds.UsableForWake() {
		return Result{}, ErrNoUsableCredentials
	}

	attempts := 0
	for _, strategy := range w.strategies {
		if strategy.RequiresCredential && creds[strategy.Protocol] == "" {
			log.Debug().Msgf("skipping wake strategy %q: no %s credential",
				strategy.Label, strategy.Protocol)
			continue
		}

		attempts++
		attempt := w.attempt(ctx, strategy, identity, creds)
		if attempt.Succeeded {
			log.Info().Msgf("wake strategy %q succeeded", attempt.StrategyLabel)
			return Result{StrategyLabel: attempt.StrategyLabel}, nil
		}

		log.Warn().Msgf("wake strategy %q failed, trying next", attempt.StrategyLabel)
	}

	return Result{}, &AllStrategiesFailedError{Attempts: attempts}
}

func (w *Waker) attempt(
	ctx context.Context, strategy Strategy,
	identity companion.Identity, creds companion.Credentials,
) AttemptResult {
	result, err := w.runner.Run(
		ctx, attemptTimeout, strategy.Args(identity, creds)...)

	attempt := AttemptResult{
		StrategyLabel: strategy.Label,
		Succeeded:     err == nil,
		RawOutput:     result.Combined(),
	}
	if err != nil {
		log.Debug().Err(err).Msgf("wake attempt %q output: %s",
			strategy.Label, attempt.RawOutput)
	}

	return attempt
}
