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

package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/viera-bridge/pkg/atvremote"
	"github.com/ZaparooProject/viera-bridge/pkg/companion"
	"github.com/ZaparooProject/viera-bridge/pkg/companion/pairing"
	"github.com/ZaparooProject/viera-bridge/pkg/config"
	"github.com/ZaparooProject/viera-bridge/pkg/testing/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// tvServer is a minimal fake TV that records SOAP request bodies.
type tvServer struct {
	server *httptest.Server

	mu     sync.Mutex
	bodies []string
	status int
}

func newTVServer(t *testing.T) *tvServer {
	t.Helper()

	tv := &tvServer{status: http.StatusOK}
	tv.server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			tv.mu.Lock()
			tv.bodies = append(tv.bodies, string(body))
			status := tv.status
			tv.mu.Unlock()
			w.WriteHeader(status)
		}))
	t.Cleanup(tv.server.Close)
	return tv
}

func (tv *tvServer) setStatus(status int) {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	tv.status = status
}

func (tv *tvServer) recordedBodies() []string {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	return append([]string(nil), tv.bodies...)
}

type testEnv struct {
	svc    *Service
	tv     *tvServer
	store  *FileCredentialStore
	runner *mocks.MockRunner
	clock  *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	cfg.SetTVHost("tv.local")
	cfg.SetCompanion("aa:bb", "10.0.0.42")

	tv := newTVServer(t)
	store := NewFileCredentialStore(
		filepath.Join(t.TempDir(), config.CredsFile))
	clock := clockwork.NewFakeClock()
	runner := &mocks.MockRunner{}

	svc := New(cfg, store, clock)
	svc.Client().Transport().SetBaseURL(tv.server.URL)
	svc.SetRunner(runner)

	return &testEnv{
		svc:    svc,
		tv:     tv,
		store:  store,
		runner: runner,
		clock:  clock,
	}
}

func TestServiceCommands(t *testing.T) {
	t.Parallel()

	t.Run("send_key_reaches_tv", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		err := env.svc.SendKey(context.Background(), "mute")
		require.NoError(t, err)

		bodies := env.tv.recordedBodies()
		require.Len(t, bodies, 1)
		assert.Contains(t, bodies[0], "NRC_MUTE-ONOFF")
	})

	t.Run("is_available_false_on_server_error", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.tv.setStatus(http.StatusInternalServerError)
		assert.False(t, env.svc.IsAvailable(context.Background()))
	})
}

func TestPowerOn(t *testing.T) {
	t.Parallel()

	t.Run("wake_then_tuner_key", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		require.NoError(t,
			env.store.Store(companion.ProtocolAirPlay, "deadbeef01:aabb"))

		env.runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
			Return(atvremote.RunResult{}, nil).Once()

		type powerResult struct {
			strategy string
			err      error
		}
		done := make(chan powerResult, 1)
		go func() {
			strategy, err := env.svc.PowerOn(context.Background())
			done <- powerResult{strategy, err}
		}()

		// the tuner key press waits for the device to come up
		env.clock.BlockUntil(1)
		assert.Empty(t, env.tv.recordedBodies())
		env.clock.Advance(tunerKeyDelay)

		result := <-done
		require.NoError(t, result.err)
		assert.Equal(t, "airplay power on", result.strategy)

		bodies := env.tv.recordedBodies()
		require.Len(t, bodies, 1)
		assert.Contains(t, bodies[0], "NRC_TV-ONOFF")
	})

	t.Run("fails_without_usable_credentials", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		_, err := env.svc.PowerOn(context.Background())
		require.Error(t, err)
		env.runner.AssertNotCalled(t, "Run")
	})
}

func TestServicePairing(t *testing.T) {
	t.Parallel()

	t.Run("state_idle_before_any_session", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		assert.Equal(t, pairing.StateIdle, env.svc.PairingState())
	})

	t.Run("pin_flow_persists_credential", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)

		proc := mocks.NewFakeProcess()
		proc.Emit("Enter PIN on screen: ")
		proc.OnWriteLine(func(string) {
			proc.Emit("Credentials: deadbeef0123456789:aabbccdd\n")
			proc.Exit(0)
		})
		env.runner.On("Start", mock.Anything).Return(proc, nil)

		state, err := env.svc.StartPairing(
			context.Background(), companion.ProtocolCompanion)
		require.NoError(t, err)
		assert.Equal(t, pairing.StateAwaitingPin, state)

		err = env.svc.FinishPairing(context.Background(), "1234")
		require.NoError(t, err)
		assert.Equal(t, pairing.StatePaired, env.svc.PairingState())

		creds, err := env.store.Load()
		require.NoError(t, err)
		assert.Equal(t,
			"deadbeef0123456789:aabbccdd",
			creds[companion.ProtocolCompanion])
	})

	t.Run("start_replaces_active_session", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)

		first := mocks.NewFakeProcess()
		first.Emit("Enter PIN: ")
		second := mocks.NewFakeProcess()
		second.Emit("Enter PIN: ")

		env.runner.On("Start", mock.Anything).Return(first, nil).Once()
		env.runner.On("Start", mock.Anything).Return(second, nil).Once()

		_, err := env.svc.StartPairing(
			context.Background(), companion.ProtocolCompanion)
		require.NoError(t, err)

		_, err = env.svc.StartPairing(
			context.Background(), companion.ProtocolAirPlay)
		require.NoError(t, err)

		assert.True(t, first.Terminated())
		assert.Equal(t, pairing.StateAwaitingPin, env.svc.PairingState())
	})

	t.Run("finish_without_session_fails", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		err := env.svc.FinishPairing(context.Background(), "1234")
		require.ErrorIs(t, err, pairing.ErrNoActiveSession)
	})

	t.Run("cancel_without_session_is_noop", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.svc.CancelPairing()
		env.svc.CancelPairing()
		assert.Equal(t, pairing.StateIdle, env.svc.PairingState())
	})

	t.Run("state_changes_are_notified", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)

		proc := mocks.NewFakeProcess()
		proc.Emit("Credentials: deadbeef01234567:aabb\n")
		proc.Exit(0)
		env.runner.On("Start", mock.Anything).Return(proc, nil)

		state, err := env.svc.StartPairing(
			context.Background(), companion.ProtocolAirPlay)
		require.NoError(t, err)
		assert.Equal(t, pairing.StatePaired, state)

		select {
		case notif := <-env.svc.Notifications():
			assert.Equal(t, NotificationPairingState, notif.Method)
			params, ok := notif.Params.(PairingStateParams)
			require.True(t, ok)
			assert.Equal(t, "airplay", params.Protocol)
			assert.Equal(t, "paired", params.State)
		default:
			t.Fatal("expected a pairing state notification")
		}
	})
}

// guard against sleep-based digit pacing regressing into wall clock waits
func TestSendChannelNumberUsesInjectedClock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	done := make(chan error, 1)
	go func() {
		done <- env.svc.SendChannelNumber(context.Background(), 42)
	}()

	env.clock.BlockUntil(1)
	env.clock.Advance(300 * time.Millisecond)
	require.NoError(t, <-done)

	bodies := env.tv.recordedBodies()
	require.Len(t, bodies, 2)
	assert.Contains(t, strings.Join(bodies, "\n"), "NRC_D4-ONOFF")
	assert.Contains(t, strings.Join(bodies, "\n"), "NRC_D2-ONOFF")
}
