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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/viera-bridge/pkg/companion"
	"github.com/ZaparooProject/viera-bridge/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
)

// CredentialStore persists opaque pairing credential blobs on behalf of
// the core. The core never parses the blobs and never persists anything
// itself.
type CredentialStore interface {
	Store(protocol companion.Protocol, credential string) error
	Load() (companion.Credentials, error)
}

// FileCredentialStore keeps credential blobs in a TOML file, verbatim.
type FileCredentialStore struct {
	path string
	mu   syncutil.Mutex
}

var _ CredentialStore = (*FileCredentialStore)(nil)

// NewFileCredentialStore creates a store backed by the file at path. The
// file is created on first Store.
func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

type credsFile struct {
	Credentials map[string]string `toml:"credentials"`
}

// Store writes one credential blob, preserving the others.
func (f *FileCredentialStore) Store(protocol companion.Protocol, credential string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	vals, err := f.read()
	if err != nil {
		return err
	}

	if vals.Credentials == nil {
		vals.Credentials = make(map[string]string)
	}
	vals.Credentials[string(protocol)] = credential

	data, err := toml.Marshal(&vals)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

// Load returns all stored credentials. A missing file is an empty set,
// not an error.
func (f *FileCredentialStore) Load() (companion.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	vals, err := f.read()
	if err != nil {
		return nil, err
	}

	creds := make(companion.Credentials, len(vals.Credentials))
	for name, blob := range vals.Credentials {
		creds[companion.Protocol(name)] = blob
	}
	return creds, nil
}

func (f *FileCredentialStore) read() (credsFile, error) {
	var vals credsFile

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return vals, nil
	}
	if err != nil {
		return vals, fmt.Errorf("failed to read credentials file: %w", err)
	}

	if err := toml.Unmarshal(data, &vals); err != nil {
		return vals, fmt.Errorf("failed to unmarshal credentials file: %w", err)
	}
	return vals, nil
}
