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

// Notification methods pushed to connected event stream clients.
const (
	NotificationAvailability = "tv.availability"
	NotificationPairingState = "pairing.state"
)

// Notification is one event pushed to the API event stream.
type Notification struct {
	Params any    `json:"params,omitempty"`
	Method string `json:"method"`
}

// AvailabilityParams reports a TV reachability change.
type AvailabilityParams struct {
	Available bool `json:"available"`
}

// PairingStateParams reports a pairing session state change.
type PairingStateParams struct {
	Protocol string `json:"protocol"`
	State    string `json:"state"`
}
