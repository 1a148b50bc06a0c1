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

package atvremote

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaparooProject/viera-bridge/pkg/helpers/command"
	"github.com/rs/zerolog/log"
)

// installMethod is one way of provisioning the control binary. Methods are
// attempted strictly in order until one succeeds.
type installMethod struct {
	label string
	name  string
	args  []string
}

// pyatvPackage is the python distribution that ships atvremote.
const pyatvPackage = "pyatv"

var installMethods = []installMethod{
	{label: "pipx", name: "pipx", args: []string{"install", pyatvPackage}},
	{label: "pip3 --user", name: "pip3", args: []string{"install", "--user", pyatvPackage}},
	{label: "pip3", name: "pip3", args: []string{"install", pyatvPackage}},
}

// Installer provisions the control binary on demand when the locator
// cannot find one.
type Installer struct {
	locator *Locator
	exec    command.Executor
}

// NewInstaller creates an installer using the given locator. A nil
// executor uses the real system command executor.
func NewInstaller(locator *Locator, exec command.Executor) *Installer {
	if exec == nil {
		exec = &command.RealExecutor{}
	}
	return &Installer{locator: locator, exec: exec}
}

// Ensure returns the path to the control binary, installing it via the
// ordered fallback methods if it is entirely absent. Provisioning failure
// is fatal for the calling operation and names every attempted method.
func (i *Installer) Ensure(ctx context.Context) (string, error) {
	if path := i.locator.Locate(); path != "" {
		return path, nil
	}

	log.Info().Msgf("%s not found, attempting install", BinaryName)

	attempted := make([]string, 0, len(installMethods))
	for _, method := range installMethods {
		attempted = append(attempted, method.label)

		err := i.exec.Run(ctx, method.name, method.args...)
		if err != nil {
			log.Warn().Err(err).Msgf("install via %s failed", method.label)
			continue
		}

		if path := i.locator.Locate(); path != "" {
			log.Info().Msgf("installed %s %s via %s: %s",
				BinaryName, i.binaryVersion(ctx, path), method.label, path)
			return path, nil
		}

		log.Warn().Msgf("install via %s succeeded but %s still not found", method.label, BinaryName)
	}

	return "", fmt.Errorf(
		"failed to install %s, attempted: %s",
		BinaryName, strings.Join(attempted, ", "))
}

// binaryVersion asks a freshly installed binary for its version string.
// Purely informational: a probe failure never fails the install.
func (i *Installer) binaryVersion(ctx context.Context, path string) string {
	out, err := i.exec.Output(ctx, path, "--version")
	if err != nil {
		log.Debug().Err(err).Msg("version probe failed")
		return "(unknown version)"
	}
	return strings.TrimSpace(string(out))
}
