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
	"context"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// digitPressDelay is the pause between key presses during multi-digit
// channel entry. The TV drops presses that arrive back to back.
const digitPressDelay = 300 * time.Millisecond

var (
	currentVolumeRe = regexp.MustCompile(`<CurrentVolume>(\d+)</CurrentVolume>`)
	currentMuteRe   = regexp.MustCompile(`<CurrentMute>([01])</CurrentMute>`)
)

// Client exposes typed remote control and rendering control commands for a
// single television. Methods are safe to call concurrently except
// SendChannelNumber, which must not overlap with itself for the same
// logical channel entry.
type Client struct {
	transport *Transport
	clock     clockwork.Clock
}

// NewClient creates a control client for the TV at host. A nil clock uses
// the real wall clock.
func NewClient(host string, clock clockwork.Clock) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		transport: NewTransport(host),
		clock:     clock,
	}
}

// Transport returns the underlying SOAP transport.
func (c *Client) Transport() *Transport {
	return c.transport
}

// SendKey sends a single remote control key press. Bare key names are
// normalized to the vendor token form first.
func (c *Client) SendKey(ctx context.Context, code string) error {
	key := NormalizeKey(code)
	_, err := c.transport.Send(
		ctx, RemoteControlPath, RemoteControlURN, "X_SendKey",
		"<X_KeyEvent>"+key+"</X_KeyEvent>")
	if err != nil {
		return err
	}
	return nil
}

// GetVolume returns the current volume in 0..100, or nil if the TV's
// response did not contain a volume value.
func (c *Client) GetVolume(ctx context.Context) (*int, error) {
	body, err := c.transport.Send(
		ctx, RenderingControlPath, RenderingControlURN, "GetVolume",
		"<InstanceID>0</InstanceID><Channel>Master</Channel>")
	if err != nil {
		return nil, err
	}

	match := currentVolumeRe.FindStringSubmatch(body)
	if match == nil {
		return nil, nil
	}

	volume, err := strconv.Atoi(match[1])
	if err != nil {
		return nil, nil
	}

	return &volume, nil
}

// SetVolume sets the TV volume. The level is rounded to the nearest
// integer and clamped to 0..100 before sending.
func (c *Client) SetVolume(ctx context.Context, level float64) error {
	volume := int(math.Round(level))
	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}

	_, err := c.transport.Send(
		ctx, RenderingControlPath, RenderingControlURN, "SetVolume",
		"<InstanceID>0</InstanceID><Channel>Master</Channel>"+
			"<DesiredVolume>"+strconv.Itoa(volume)+"</DesiredVolume>")
	if err != nil {
		return err
	}
	return nil
}

// GetMute returns the current mute state, or nil if the TV's response did
// not contain one.
func (c *Client) GetMute(ctx context.Context) (*bool, error) {
	body, err := c.transport.Send(
		ctx, RenderingControlPath, RenderingControlURN, "GetMute",
		"<InstanceID>0</InstanceID><Channel>Master</Channel>")
	if err != nil {
		return nil, err
	}

	match := currentMuteRe.FindStringSubmatch(body)
	if match == nil {
		return nil, nil
	}

	muted := match[1] == "1"
	return &muted, nil
}

// SetMute sets the TV mute state.
func (c *Client) SetMute(ctx context.Context, muted bool) error {
	flag := "0"
	if muted {
		flag = "1"
	}

	_, err := c.transport.Send(
		ctx, RenderingControlPath, RenderingControlURN, "SetMute",
		"<InstanceID>0</InstanceID><Channel>Master</Channel>"+
			"<DesiredMute>"+flag+"</DesiredMute>")
	if err != nil {
		return err
	}
	return nil
}

// IsAvailable reports whether the TV answers its device description
// document. Every failure mode resolves to false: reachability is polled
// frequently and transient errors are not worth surfacing.
func (c *Client) IsAvailable(ctx context.Context) bool {
	err := c.transport.Probe(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("tv availability probe failed")
		return false
	}
	return true
}

// SendChannelNumber enters a channel number digit by digit. Presses are
// strictly sequential with a fixed pause between each so the TV registers
// multi-digit entry.
func (c *Client) SendChannelNumber(ctx context.Context, number int) error {
	if number < 0 {
		number = -number
	}

	digits := strconv.Itoa(number)
	for i, d := range digits {
		if i > 0 {
			c.clock.Sleep(digitPressDelay)
		}
		if err := c.SendKey(ctx, DigitKey(int(d-'0'))); err != nil {
			return err
		}
	}

	return nil
}
