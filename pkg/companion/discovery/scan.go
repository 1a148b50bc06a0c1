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

// Package discovery finds candidate companion devices by invoking the
// external control binary in scan mode and parsing its block-structured
// text output.
package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ZaparooProject/viera-bridge/pkg/atvremote"
)

// scanTimeout bounds one scan invocation. Broadcast scans wait for slow
// responders, so the budget is generous.
const scanTimeout = 30 * time.Second

// macRe matches a six-group colon-separated hex MAC address.
var macRe = regexp.MustCompile(`^(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// separatorRe matches horizontal rule lines between scan output blocks.
var separatorRe = regexp.MustCompile(`^[-=]{4,}$`)

// Device is one candidate companion device found by a scan.
type Device struct {
	Name       string
	Identifier string
	Address    string
}

// Scanner runs companion device scans through the control binary.
type Scanner struct {
	runner atvremote.Runner
}

// NewScanner creates a scanner using the given runner.
func NewScanner(runner atvremote.Runner) *Scanner {
	return &Scanner{runner: runner}
}

// Scan discovers companion devices. When address is non-empty a directed
// scan of that host is used instead of broadcast discovery, which is
// required on networks where multicast is unavailable.
func (s *Scanner) Scan(ctx context.Context, address string) ([]Device, error) {
	var args []string
	if address != "" {
		args = append(args, "--scan-hosts", address)
	}
	args = append(args, "scan")

	result, err := s.runner.Run(ctx, scanTimeout, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for devices: %w", err)
	}

	return ParseScanOutput(result.Stdout), nil
}

// ParseScanOutput parses the scan text into candidate devices. Blocks are
// separated by blank lines or rule lines; labeled fields are matched by
// line prefix. Blocks with no name and no usable identifier or address
// are dropped.
func ParseScanOutput(output string) []Device {
	var devices []Device

	for _, block := range splitBlocks(output) {
		device, ok := parseBlock(block)
		if ok {
			devices = append(devices, device)
		}
	}

	return devices
}

func splitBlocks(output string) [][]string {
	var blocks [][]string
	var current []string

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, current)
			current = nil
		}
	}

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || separatorRe.MatchString(trimmed) {
			flush()
			continue
		}
		current = append(current, trimmed)
	}
	flush()

	return blocks
}

func parseBlock(lines []string) (Device, bool) {
	var device Device
	var identifiers []string
	var mac string

	inIdentifiers := false
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "Name:"):
			device.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			inIdentifiers = false
		case strings.HasPrefix(line, "Address:"):
			device.Address = strings.TrimSpace(strings.TrimPrefix(line, "Address:"))
			inIdentifiers = false
		case strings.HasPrefix(line, "MAC:"):
			mac = strings.TrimSpace(strings.TrimPrefix(line, "MAC:"))
			inIdentifiers = false
		case strings.HasPrefix(line, "Identifiers:"):
			inIdentifiers = true
		case inIdentifiers && strings.HasPrefix(line, "-"):
			id := strings.TrimSpace(strings.TrimPrefix(line, "-"))
			if id != "" {
				identifiers = append(identifiers, id)
			}
		default:
			inIdentifiers = false
		}
	}

	device.Identifier = selectIdentifier(identifiers, mac)

	if device.Name == "" && device.Identifier == "" && device.Address == "" {
		return Device{}, false
	}

	return device, true
}

// selectIdentifier picks the most stable identifier for a device: a
// MAC-form identifier is preferred, then the first listed identifier,
// then the MAC field itself.
func selectIdentifier(identifiers []string, mac string) string {
	for _, id := range identifiers {
		if macRe.MatchString(id) {
			return id
		}
	}

	if len(identifiers) > 0 {
		return identifiers[0]
	}

	return mac
}
