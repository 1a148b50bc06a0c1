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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ZaparooProject/viera-bridge/pkg/api"
	"github.com/ZaparooProject/viera-bridge/pkg/config"
	"github.com/ZaparooProject/viera-bridge/pkg/helpers"
	"github.com/ZaparooProject/viera-bridge/pkg/service"
	"github.com/adrg/xdg"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	tvHost := flag.String(
		"tv",
		"",
		"set the TV host address and save it to config",
	)
	companionID := flag.String(
		"companion",
		"",
		"set the companion device identifier and save it to config",
	)
	companionAddr := flag.String(
		"companion-address",
		"",
		"set the companion device address and save it to config",
	)
	showVersion := flag.Bool(
		"version",
		false,
		"print version and exit",
	)
	verbose := flag.Bool(
		"verbose",
		false,
		"also log to stderr",
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", config.AppName, config.AppVersion)
		return nil
	}

	configDir := filepath.Join(xdg.ConfigHome, config.AppName)
	logDir := filepath.Join(xdg.StateHome, config.AppName)

	var logWriters []io.Writer
	if *verbose {
		logWriters = []io.Writer{os.Stderr}
	}
	err := helpers.InitLogging(logDir, logWriters)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg, err := config.NewConfig(configDir, config.BaseDefaults)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.SetDebugLogging(cfg.DebugLogging())

	if *tvHost != "" || *companionID != "" || *companionAddr != "" {
		if *tvHost != "" {
			cfg.SetTVHost(*tvHost)
		}
		if *companionID != "" || *companionAddr != "" {
			cfg.SetCompanion(*companionID, *companionAddr)
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	if cfg.TVHost() == "" {
		return errors.New("no TV host configured, set one with -tv")
	}

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	log.Info().Msgf(
		"starting %s v%s, device id %s",
		config.AppName, config.AppVersion, cfg.DeviceID(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := service.NewFileCredentialStore(
		filepath.Join(cfg.Dir(), config.CredsFile),
	)
	svc := service.New(cfg, store, nil)

	poller := service.NewPoller(svc, cfg.PollInterval(), nil)
	poller.Start(ctx)
	defer poller.Stop()

	go api.Start(ctx, cfg, svc)
	log.Info().Msgf("api listening on port %d", cfg.APIPort())

	sigs := make(chan os.Signal, 1)
	defer close(sigs)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs
	log.Info().Msg("shutting down")
	svc.CancelPairing()

	return nil
}
