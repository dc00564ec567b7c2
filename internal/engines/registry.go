/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engines manages the user's chess engines: the installed-engine registry,
// downloads of engine archives with progress events, and the default-engine catalog.
// Engines are never run here.
package engines

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"gochessstudio/internal/domain"
)

// RegistryFileName is the default file name inside the app data dir.
const RegistryFileName = "engines.yaml"

var (
	// ErrInvalidEngine is returned by Add when the form data is incomplete or clashes.
	ErrInvalidEngine = errors.New("invalid engine")
	// ErrNotFound is returned when no engine has the requested name.
	ErrNotFound = errors.New("engine not found")
)

type registryFile struct {
	Engines []domain.Engine `yaml:"engines"`
}

// Registry is the persisted list of installed engines. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	path    string
	engines []domain.Engine
}

// LoadRegistry reads the registry at path. A missing file yields an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{path: path}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read engines registry: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse engines registry: %w", err)
	}
	r.engines = f.Engines
	return r, nil
}

// Path returns the registry file path.
func (r *Registry) Path() string { return r.path }

// List returns a copy of the installed engines in insertion order.
func (r *Registry) List() []domain.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Engine(nil), r.engines...)
}

// Get returns the engine called name.
func (r *Registry) Get(name string) (domain.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.index(name); i >= 0 {
		return r.engines[i], true
	}
	return domain.Engine{}, false
}

// Has reports whether an engine called name is installed.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Validate checks e against the registry without adding it: name and path are
// required and the name must not be taken.
func (r *Registry) Validate(e domain.Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.validateLocked(e)
}

func (r *Registry) validateLocked(e domain.Engine) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEngine)
	}
	if r.index(e.Name) >= 0 {
		return fmt.Errorf("%w: name %q already used", ErrInvalidEngine, e.Name)
	}
	if strings.TrimSpace(e.Path) == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidEngine)
	}
	if e.Elo != nil && *e.Elo < 0 {
		return fmt.Errorf("%w: elo must not be negative", ErrInvalidEngine)
	}
	return nil
}

// Add validates e, appends it and writes the registry.
func (r *Registry) Add(e domain.Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.validateLocked(e); err != nil {
		return err
	}
	e.DownloadURL, e.DownloadSize = "", 0
	r.engines = append(r.engines, e)
	if err := r.saveLocked(); err != nil {
		r.engines = r.engines[:len(r.engines)-1]
		return err
	}
	return nil
}

// Remove deletes the engine called name and writes the registry. The executable is
// left on disk.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	prev := r.engines
	r.engines = append(append([]domain.Engine(nil), prev[:i]...), prev[i+1:]...)
	if err := r.saveLocked(); err != nil {
		r.engines = prev
		return err
	}
	return nil
}

func (r *Registry) index(name string) int {
	for i, e := range r.engines {
		if e.Name == name {
			return i
		}
	}
	return -1
}

func (r *Registry) saveLocked() error {
	if r.path == "" {
		return nil
	}
	b, err := yaml.Marshal(registryFile{Engines: r.engines})
	if err != nil {
		return fmt.Errorf("marshal engines registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write engines registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace engines registry: %w", err)
	}
	return nil
}

// NameFromPath derives a display name from an executable path, e.g.
// "/opt/stockfish_15_x64.exe" gives "stockfish_15_x64".
func NameFromPath(path string) string {
	base := filepath.Base(filepath.FromSlash(path))
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".exe") {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}
