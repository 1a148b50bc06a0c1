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

package viera

import (
	"fmt"
	"strings"
)

// Common NRC key event tokens. Any bare name passed to SendKey is
// normalized to this form, so the constants exist for discoverability
// rather than completeness.
const (
	KeyPower    = "NRC_POWER-ONOFF"
	KeyTV       = "NRC_TV-ONOFF"
	KeyVolumeUp = "NRC_VOLUP-ONOFF"
	KeyVolumeDn = "NRC_VOLDOWN-ONOFF"
	KeyMute     = "NRC_MUTE-ONOFF"
	KeyChanUp   = "NRC_CH_UP-ONOFF"
	KeyChanDn   = "NRC_CH_DOWN-ONOFF"
	KeyEnter    = "NRC_ENTER-ONOFF"
	KeyReturn   = "NRC_RETURN-ONOFF"
	KeyMenu     = "NRC_MENU-ONOFF"
)

const (
	keyPrefix = "NRC_"
	keySuffix = "-ONOFF"
)

// NormalizeKey converts a bare key name like "VOLUP" into the vendor key
// event token form "NRC_VOLUP-ONOFF". Tokens already in that form pass
// through unchanged.
func NormalizeKey(code string) string {
	if strings.HasPrefix(code, keyPrefix) {
		return code
	}
	return keyPrefix + strings.ToUpper(code) + keySuffix
}

// DigitKey returns the key event token for a single decimal digit.
func DigitKey(digit int) string {
	return fmt.Sprintf("NRC_D%d-ONOFF", digit)
}
