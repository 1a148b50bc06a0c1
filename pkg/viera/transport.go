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

// Package viera implements the SOAP/UPnP control protocol spoken by
// Panasonic Viera televisions on port 55000.
package viera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPort is the fixed port the TV's control services listen on.
	DefaultPort = 55000

	// RemoteControlPath is the endpoint for remote control key events.
	RemoteControlPath = "/nrc/control_0"
	// RenderingControlPath is the endpoint for volume and mute control.
	RenderingControlPath = "/dmr/control_0"

	// RemoteControlURN identifies the vendor network control service.
	RemoteControlURN = "urn:panasonic-com:service:p00NetworkControl:1"
	// RenderingControlURN identifies the standard UPnP rendering service.
	RenderingControlURN = "urn:schemas-upnp-org:service:RenderingControl:1"

	// statusDocumentPath is the UPnP device description document used as a
	// reachability probe.
	statusDocumentPath = "/nrc/ddd.xml"

	// DefaultTimeout bounds every request to the TV. The design treats "the
	// TV did not answer" as the expected failure mode, not exceptional.
	DefaultTimeout = 5 * time.Second
)

// TransportErrorKind classifies a failed request to the TV.
type TransportErrorKind int

const (
	// TransportTimeout means the request deadline expired in flight.
	TransportTimeout TransportErrorKind = iota
	// TransportHTTPStatus means the TV answered with a non-200 status.
	TransportHTTPStatus
	// TransportConnection means the request failed at the socket level.
	TransportConnection
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportTimeout:
		return "timeout"
	case TransportHTTPStatus:
		return "http status"
	case TransportConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// TransportError is returned for every failed SOAP request. All kinds are
// recoverable from the caller's perspective; this layer never retries.
type TransportError struct {
	Err        error
	Kind       TransportErrorKind
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.Kind == TransportHTTPStatus {
		return fmt.Sprintf("tv request failed: %s %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("tv request failed: %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport issues single SOAP 1.1 requests to the TV's control endpoints.
type Transport struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// NewTransport creates a transport for the TV at host using the fixed
// control port and default timeout.
func NewTransport(host string) *Transport {
	return &Transport{
		baseURL:    "http://" + host + ":" + strconv.Itoa(DefaultPort),
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
	}
}

// BaseURL returns the current TV base URL.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// SetBaseURL overrides the TV base URL. Used by tests to point the
// transport at a local server.
func (t *Transport) SetBaseURL(url string) {
	t.baseURL = strings.TrimSuffix(url, "/")
}

// SetTimeout overrides the per-request deadline. Used by tests to
// exercise the timeout path without waiting out the default.
func (t *Transport) SetTimeout(d time.Duration) {
	t.timeout = d
}

// Send posts one SOAP envelope to path and returns the raw response body.
// The body fragment is embedded verbatim: callers must pre-sanitize any
// values placed into it.
func (t *Transport) Send(ctx context.Context, path, urn, action, body string) (string, error) {
	envelope := "<?xml version=\"1.0\" encoding=\"utf-8\"?>" +
		"<s:Envelope xmlns:s=\"http://schemas.xmlsoap.org/soap/envelope/\"" +
		" s:encodingStyle=\"http://schemas.xmlsoap.org/soap/encoding/\">" +
		"<s:Body>" +
		"<u:" + action + " xmlns:u=\"" + urn + "\">" + body + "</u:" + action + ">" +
		"</s:Body>" +
		"</s:Envelope>"

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, t.baseURL+path, strings.NewReader(envelope))
	if err != nil {
		return "", &TransportError{Kind: TransportConnection, Err: err}
	}

	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", `"`+urn+"#"+action+`"`)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", classifyRequestError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{Kind: TransportHTTPStatus, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyRequestError(err)
	}

	return string(data), nil
}

// Probe issues a plain GET against the device description document with the
// same timeout discipline as Send. A nil error means the TV answered 200.
func (t *Transport) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, t.baseURL+statusDocumentPath, http.NoBody)
	if err != nil {
		return &TransportError{Kind: TransportConnection, Err: err}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return classifyRequestError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{Kind: TransportHTTPStatus, StatusCode: resp.StatusCode}
	}

	return nil
}

func classifyRequestError(err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: TransportTimeout, Err: err}
	}
	return &TransportError{Kind: TransportConnection, Err: err}
}
