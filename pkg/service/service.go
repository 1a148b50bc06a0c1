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

// Package service orchestrates the TV control client, the companion wake
// cascade and the pairing flow behind one coordinator that the API layer
// calls into.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/viera-bridge/pkg/atvremote"
	"github.com/ZaparooProject/viera-bridge/pkg/companion"
	"github.com/ZaparooProject/viera-bridge/pkg/companion/discovery"
	"github.com/ZaparooProject/viera-bridge/pkg/companion/pairing"
	"github.com/ZaparooProject/viera-bridge/pkg/companion/wake"
	"github.com/ZaparooProject/viera-bridge/pkg/config"
	"github.com/ZaparooProject/viera-bridge/pkg/helpers/syncutil"
	"github.com/ZaparooProject/viera-bridge/pkg/viera"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// tunerKeyDelay is how long to wait after a successful wake before sending
// the final switch-to-tuner key. The TV needs a moment to come up on CEC
// before it accepts network commands.
const tunerKeyDelay = 3 * time.Second

// Service coordinates all device operations. It owns the single active
// pairing session per managed device: starting a new session terminates
// the old one first.
type Service struct {
	cfg           *config.Instance
	client        *viera.Client
	store         CredentialStore
	metrics       *Metrics
	clock         clockwork.Clock
	notifications chan Notification

	mu      syncutil.Mutex
	runner  atvremote.Runner
	session *pairing.Session
}

// New creates a service for the configured TV and companion device. A nil
// clock uses the real wall clock.
func New(cfg *config.Instance, store CredentialStore, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		cfg:           cfg,
		client:        viera.NewClient(cfg.TVHost(), clock),
		store:         store,
		metrics:       NewMetrics(),
		clock:         clock,
		notifications: make(chan Notification, 32),
	}
}

// Client returns the TV control client.
func (s *Service) Client() *viera.Client {
	return s.client
}

// Metrics returns the service metric set for registration.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Notifications returns the event stream channel consumed by the API
// layer.
func (s *Service) Notifications() <-chan Notification {
	return s.notifications
}

func (s *Service) notify(method string, params any) {
	select {
	case s.notifications <- Notification{Method: method, Params: params}:
	default:
		log.Debug().Msgf("dropping notification, no consumer: %s", method)
	}
}

// SetRunner injects the control binary runner, overriding lazy
// resolution. Used by tests.
func (s *Service) SetRunner(runner atvremote.Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner = runner
}

// resolveRunner returns the control binary runner, locating or
// provisioning the binary on first use.
func (s *Service) resolveRunner(ctx context.Context) (atvremote.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner != nil {
		return s.runner, nil
	}

	if path := s.cfg.AtvremotePath(); path != "" {
		s.runner = atvremote.NewExecRunner(path)
		return s.runner, nil
	}

	installer := atvremote.NewInstaller(atvremote.NewLocator(), nil)
	path, err := installer.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	s.runner = atvremote.NewExecRunner(path)
	return s.runner, nil
}

func (s *Service) identity() companion.Identity {
	return companion.Identity{
		Identifier: s.cfg.CompanionIdentifier(),
		Address:    s.cfg.CompanionAddress(),
	}
}

// SendKey sends one remote control key press to the TV.
func (s *Service) SendKey(ctx context.Context, key string) error {
	err := s.client.SendKey(ctx, key)
	s.metrics.observeCommand("key", err)
	return err
}

// Volume returns the TV volume, or nil when the TV did not report one.
func (s *Service) Volume(ctx context.Context) (*int, error) {
	volume, err := s.client.GetVolume(ctx)
	s.metrics.observeCommand("get_volume", err)
	return volume, err
}

// SetVolume sets the TV volume.
func (s *Service) SetVolume(ctx context.Context, level float64) error {
	err := s.client.SetVolume(ctx, level)
	s.metrics.observeCommand("set_volume", err)
	return err
}

// Mute returns the TV mute state, or nil when the TV did not report one.
func (s *Service) Mute(ctx context.Context) (*bool, error) {
	muted, err := s.client.GetMute(ctx)
	s.metrics.observeCommand("get_mute", err)
	return muted, err
}

// SetMute sets the TV mute state.
func (s *Service) SetMute(ctx context.Context, muted bool) error {
	err := s.client.SetMute(ctx, muted)
	s.metrics.observeCommand("set_mute", err)
	return err
}

// SendChannelNumber enters a channel number on the TV digit by digit.
func (s *Service) SendChannelNumber(ctx context.Context, number int) error {
	err := s.client.SendChannelNumber(ctx, number)
	s.metrics.observeCommand("channel", err)
	return err
}

// IsAvailable reports whether the TV is reachable. Never errors.
func (s *Service) IsAvailable(ctx context.Context) bool {
	available := s.client.IsAvailable(ctx)
	s.metrics.setAvailable(available)
	return available
}

// PowerOn wakes the companion device so HDMI-CEC powers the TV on, then
// switches the TV to the tuner input. Returns the label of the wake
// strategy that succeeded.
func (s *Service) PowerOn(ctx context.Context) (string, error) {
	runner, err := s.resolveRunner(ctx)
	if err != nil {
		s.metrics.observeWake(err)
		return "", err
	}

	creds, err := s.store.Load()
	if err != nil {
		s.metrics.observeWake(err)
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}

	result, err := wake.New(runner).Wake(ctx, s.identity(), creds)
	s.metrics.observeWake(err)
	if err != nil {
		return "", err
	}

	// the wake has already succeeded at this point; a failed tuner switch
	// is logged but does not undo that
	s.clock.Sleep(tunerKeyDelay)
	if err := s.SendKey(ctx, viera.KeyTV); err != nil {
		log.Warn().Err(err).Msg("tv woke but switching to tuner failed")
	}

	return result.StrategyLabel, nil
}

// Scan discovers companion devices, directed at address when non-empty.
func (s *Service) Scan(ctx context.Context, address string) ([]discovery.Device, error) {
	runner, err := s.resolveRunner(ctx)
	if err != nil {
		return nil, err
	}
	return discovery.NewScanner(runner).Scan(ctx, address)
}

// StartPairing begins a pairing session for one protocol, replacing any
// session already active: the old session's subprocess is terminated
// before the new one spawns.
func (s *Service) StartPairing(
	ctx context.Context, protocol companion.Protocol,
) (pairing.State, error) {
	runner, err := s.resolveRunner(ctx)
	if err != nil {
		return pairing.StateFailed, err
	}

	s.mu.Lock()
	if s.session != nil {
		log.Info().Msg("replacing active pairing session")
		s.session.Cancel()
	}
	session := pairing.NewSession(runner, s.clock)
	s.session = session
	s.mu.Unlock()

	err = session.Start(ctx, s.identity(), protocol)
	state := session.State()
	s.notifyPairing(session)

	if state == pairing.StatePaired {
		s.metrics.observePairing("paired")
		if storeErr := s.store.Store(protocol, session.Credential()); storeErr != nil {
			return state, fmt.Errorf("paired but failed to store credential: %w", storeErr)
		}
	} else if state.Terminal() {
		s.metrics.observePairing("failed")
	}

	return state, err
}

// FinishPairing completes the active session with the user's PIN and
// persists the extracted credential.
func (s *Service) FinishPairing(ctx context.Context, pin string) error {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		return pairing.ErrNoActiveSession
	}

	credential, err := session.Finish(ctx, pin)
	s.notifyPairing(session)
	if err != nil {
		s.metrics.observePairing("failed")
		return err
	}

	s.metrics.observePairing("paired")
	if err := s.store.Store(session.Protocol(), credential); err != nil {
		return fmt.Errorf("paired but failed to store credential: %w", err)
	}
	return nil
}

// CancelPairing terminates the active pairing session, if any. Idempotent.
func (s *Service) CancelPairing() {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		return
	}

	session.Cancel()
	s.metrics.observePairing("cancelled")
	s.notifyPairing(session)
}

// PairingState returns the state of the active session, or StateIdle when
// none has been started.
func (s *Service) PairingState() pairing.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return pairing.StateIdle
	}
	return s.session.State()
}

func (s *Service) notifyPairing(session *pairing.Session) {
	s.notify(NotificationPairingState, PairingStateParams{
		Protocol: string(session.Protocol()),
		State:    session.State().String(),
	})
}
