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

// Package companion holds the shared types for the streaming box whose
// remote protocol is used to trigger HDMI-CEC wake-on of the television.
package companion

import "strconv"

// Protocol is one of the transport protocols the companion device pairs
// over. The set is closed.
type Protocol string

const (
	ProtocolMRP       Protocol = "mrp"
	ProtocolAirPlay   Protocol = "airplay"
	ProtocolCompanion Protocol = "companion"
)

// Protocols lists every supported protocol in pairing order.
var Protocols = []Protocol{ProtocolMRP, ProtocolAirPlay, ProtocolCompanion}

// Valid reports whether p is a member of the closed protocol set.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolMRP, ProtocolAirPlay, ProtocolCompanion:
		return true
	default:
		return false
	}
}

// DefaultPort returns the well-known default port used when pairing over p.
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolAirPlay:
		return 7000
	case ProtocolCompanion:
		return 49153
	default:
		return 49152
	}
}

// CredentialArg returns the control binary flag carrying p's credential.
func (p Protocol) CredentialArg() string {
	return "--" + string(p) + "-credentials"
}

// Identity identifies the companion device. At least one field must be
// non-empty; both may be set.
type Identity struct {
	Identifier string
	Address    string
}

// Valid reports whether the identity can address a device at all.
func (id Identity) Valid() bool {
	return id.Identifier != "" || id.Address != ""
}

// Args returns the control binary arguments selecting this device.
func (id Identity) Args() []string {
	var args []string
	if id.Identifier != "" {
		args = append(args, "--id", id.Identifier)
	}
	if id.Address != "" {
		args = append(args, "--address", id.Address)
	}
	return args
}

// Credentials maps protocol names to opaque credential blobs. Blobs are
// never parsed, only passed through to the control binary.
type Credentials map[Protocol]string

// UsableForWake reports whether the set can plausibly wake the device: at
// least one of the airplay or companion credentials must be present.
func (c Credentials) UsableForWake() bool {
	return c[ProtocolAirPlay] != "" || c[ProtocolCompanion] != ""
}

// Args returns the credential arguments for the given protocol, or nothing
// if the credential is absent.
func (c Credentials) Args(p Protocol) []string {
	cred := c[p]
	if cred == "" {
		return nil
	}
	return []string{p.CredentialArg(), cred}
}

// PairArgs builds the full argument list for an interactive pairing run
// scoped to a single protocol on its default port.
func PairArgs(id Identity, p Protocol) []string {
	args := id.Args()
	args = append(args,
		"--protocol", string(p),
		"--port", strconv.Itoa(p.DefaultPort()),
		"pair",
	)
	return args
}
