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

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZaparooProject/viera-bridge/pkg/atvremote"
	"github.com/ZaparooProject/viera-bridge/pkg/config"
	"github.com/ZaparooProject/viera-bridge/pkg/service"
	"github.com/ZaparooProject/viera-bridge/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type apiTestEnv struct {
	api    *httptest.Server
	tv     *httptest.Server
	svc    *service.Service
	runner *mocks.MockRunner
}

// fakeTVHandler answers reachability probes and SOAP queries with fixed
// values.
func fakeTVHandler(w http.ResponseWriter, r *http.Request) {
	action := r.Header.Get("SOAPAction")
	switch {
	case strings.Contains(action, "GetVolume"):
		_, _ = w.Write([]byte("<CurrentVolume>25</CurrentVolume>"))
	case strings.Contains(action, "GetMute"):
		_, _ = w.Write([]byte("<CurrentMute>0</CurrentMute>"))
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func newAPITestEnv(t *testing.T) *apiTestEnv {
	t.Helper()

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	cfg.SetTVHost("tv.local")
	cfg.SetCompanion("aa:bb", "10.0.0.42")

	tv := httptest.NewServer(http.HandlerFunc(fakeTVHandler))
	t.Cleanup(tv.Close)

	store := service.NewFileCredentialStore(
		filepath.Join(t.TempDir(), config.CredsFile))
	svc := service.New(cfg, store, nil)
	svc.Client().Transport().SetBaseURL(tv.URL)

	runner := &mocks.MockRunner{}
	svc.SetRunner(runner)

	server := NewServer(cfg, svc)
	api := httptest.NewServer(server.Router())
	t.Cleanup(api.Close)

	return &apiTestEnv{
		api:    api,
		tv:     tv,
		svc:    svc,
		runner: runner,
	}
}

func (env *apiTestEnv) do(
	t *testing.T, method, path string, body any,
) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(
		t.Context(), method, env.api.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	env := newAPITestEnv(t)
	status, body := env.do(t, http.MethodGet, "/api/v1/version", nil)
	require.Equal(t, http.StatusOK, status)

	var resp VersionResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, config.AppName, resp.App)
	assert.Equal(t, config.AppVersion, resp.Version)
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("reports_state_when_reachable", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		status, body := env.do(t, http.MethodGet, "/api/v1/status", nil)
		require.Equal(t, http.StatusOK, status)

		var resp StatusResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.True(t, resp.Available)
		require.NotNil(t, resp.Volume)
		assert.Equal(t, 25, *resp.Volume)
		require.NotNil(t, resp.Muted)
		assert.False(t, *resp.Muted)
	})

	t.Run("unavailable_tv_reports_false", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		env.tv.Close()

		status, body := env.do(t, http.MethodGet, "/api/v1/status", nil)
		require.Equal(t, http.StatusOK, status)

		var resp StatusResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.False(t, resp.Available)
		assert.Nil(t, resp.Volume)
	})
}

func TestKeyEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("sends_key", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/v1/keys",
			KeyRequest{Key: "volup"})
		assert.Equal(t, http.StatusNoContent, status)
	})

	t.Run("empty_key_is_bad_request", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/v1/keys", KeyRequest{})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unreachable_tv_is_bad_gateway", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		env.tv.Close()

		status, _ := env.do(t, http.MethodPost, "/api/v1/keys",
			KeyRequest{Key: "volup"})
		assert.Equal(t, http.StatusBadGateway, status)
	})

	t.Run("malformed_body_is_bad_request", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		req, err := http.NewRequestWithContext(t.Context(),
			http.MethodPost, env.api.URL+"/api/v1/keys",
			strings.NewReader("{not json"))
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestVolumeEndpoints(t *testing.T) {
	t.Parallel()

	env := newAPITestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/volume", nil)
	require.Equal(t, http.StatusOK, status)

	var resp VolumeResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.Level)
	assert.Equal(t, 25, *resp.Level)

	status, _ = env.do(t, http.MethodPut, "/api/v1/volume",
		VolumeRequest{Level: 55.4})
	assert.Equal(t, http.StatusNoContent, status)
}

func TestMuteEndpoints(t *testing.T) {
	t.Parallel()

	env := newAPITestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/mute", nil)
	require.Equal(t, http.StatusOK, status)

	var resp MuteResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.Muted)
	assert.False(t, *resp.Muted)

	status, _ = env.do(t, http.MethodPut, "/api/v1/mute",
		MuteRequest{Muted: true})
	assert.Equal(t, http.StatusNoContent, status)
}

func TestChannelEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("sends_channel", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/v1/channel",
			ChannelRequest{Number: 7})
		assert.Equal(t, http.StatusNoContent, status)
	})

	t.Run("negative_channel_is_bad_request", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/v1/channel",
			ChannelRequest{Number: -1})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestPowerOnEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("no_credentials_is_conflict", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/v1/power/on", nil)
		assert.Equal(t, http.StatusConflict, status)
	})
}

func TestDevicesEndpoint(t *testing.T) {
	t.Parallel()

	scanOutput := "Name: Living Room\nAddress: 10.0.0.42\nMAC: AA:BB:CC:DD:EE:FF\n"

	t.Run("lists_devices", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		env.runner.On("Run", mock.Anything, mock.Anything, []string{"scan"}).
			Return(atvremote.RunResult{Stdout: scanOutput}, nil)

		status, body := env.do(t, http.MethodGet, "/api/v1/devices", nil)
		require.Equal(t, http.StatusOK, status)

		var devices []DeviceResponse
		require.NoError(t, json.Unmarshal(body, &devices))
		require.Len(t, devices, 1)
		assert.Equal(t, "Living Room", devices[0].Name)
		assert.Equal(t, "AA:BB:CC:DD:EE:FF", devices[0].Identifier)
	})

	t.Run("address_query_directs_scan", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		env.runner.On("Run", mock.Anything, mock.Anything,
			[]string{"--scan-hosts", "10.0.0.42", "scan"}).
			Return(atvremote.RunResult{Stdout: scanOutput}, nil)

		status, _ := env.do(t, http.MethodGet,
			"/api/v1/devices?address=10.0.0.42", nil)
		require.Equal(t, http.StatusOK, status)
		env.runner.AssertExpectations(t)
	})
}

func TestPairingEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("state_starts_idle", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		status, body := env.do(t, http.MethodGet, "/api/v1/pairing", nil)
		require.Equal(t, http.StatusOK, status)

		var resp PairStateResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, "idle", resp.State)
	})

	t.Run("unknown_protocol_is_bad_request", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/v1/pairing",
			PairStartRequest{Protocol: "bluetooth"})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("pin_without_session_is_conflict", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		status, _ := env.do(t, http.MethodPost, "/api/v1/pairing/pin",
			PairPinRequest{Pin: "1234"})
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("full_pin_flow", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)

		proc := mocks.NewFakeProcess()
		proc.Emit("Enter PIN on screen: ")
		proc.OnWriteLine(func(string) {
			proc.Emit("Credentials: deadbeef0123456789:aabbccdd\n")
			proc.Exit(0)
		})
		env.runner.On("Start", mock.Anything).Return(proc, nil)

		status, body := env.do(t, http.MethodPost, "/api/v1/pairing",
			PairStartRequest{Protocol: "companion"})
		require.Equal(t, http.StatusOK, status)

		var resp PairStateResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, "awaiting pin", resp.State)

		status, body = env.do(t, http.MethodPost, "/api/v1/pairing/pin",
			PairPinRequest{Pin: "1234"})
		require.Equal(t, http.StatusOK, status)
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, "paired", resp.State)
	})

	t.Run("cancel_is_idempotent", func(t *testing.T) {
		t.Parallel()

		env := newAPITestEnv(t)
		status, _ := env.do(t, http.MethodDelete, "/api/v1/pairing", nil)
		assert.Equal(t, http.StatusNoContent, status)
		status, _ = env.do(t, http.MethodDelete, "/api/v1/pairing", nil)
		assert.Equal(t, http.StatusNoContent, status)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newAPITestEnv(t)

	// drive one command so the counter vector has a series
	status, _ := env.do(t, http.MethodPost, "/api/v1/keys",
		KeyRequest{Key: "volup"})
	require.Equal(t, http.StatusNoContent, status)

	status, body := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "vierabridge_tv_commands_total")
	assert.Contains(t, string(body), "vierabridge_tv_available")
}
