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
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Poller probes TV reachability on a fixed interval and publishes a
// notification whenever the availability state flips.
type Poller struct {
	service  *Service
	clock    clockwork.Clock
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewPoller creates a poller for the service's TV. A nil clock uses the
// real wall clock.
func NewPoller(svc *Service, interval time.Duration, clock clockwork.Clock) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		service:  svc,
		clock:    clock,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. The first probe happens immediately
// so consumers see an availability state without waiting a full interval.
// Calling Start again is a no-op.
func (p *Poller) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	last := p.service.IsAvailable(ctx)
	p.announce(last)

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			current := p.service.IsAvailable(ctx)
			if current != last {
				log.Info().Msgf("tv availability changed: %t", current)
				p.announce(current)
			}
			last = current
		}
	}
}

func (p *Poller) announce(available bool) {
	p.service.notify(NotificationAvailability, AvailabilityParams{
		Available: available,
	})
}

// Stop halts the polling loop and waits for it to exit. Idempotent, and
// safe on a poller that was never started.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	if p.started.Load() {
		<-p.done
	}
}
