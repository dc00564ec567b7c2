/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engines

import (
	"context"
	"fmt"
	"runtime"

	"gochessstudio/internal/domain"
)

// Source lists the default engines published for an operating system.
// backend.Client implements it.
type Source interface {
	Engines(ctx context.Context, os string) ([]domain.Engine, error)
}

// Entry is a catalog engine plus whether one of that name is already installed.
type Entry struct {
	domain.Engine
	Installed bool `json:"installed"`
}

// Catalog joins the remote default-engine list with the local registry.
type Catalog struct {
	src Source
	reg *Registry
}

// NewCatalog returns a catalog over src. reg may be nil.
func NewCatalog(src Source, reg *Registry) *Catalog {
	return &Catalog{src: src, reg: reg}
}

// Defaults fetches the default engines for os ("linux", "windows", "macos").
func (c *Catalog) Defaults(ctx context.Context, os string) ([]Entry, error) {
	list, err := c.src.Engines(ctx, os)
	if err != nil {
		return nil, fmt.Errorf("fetch default engines: %w", err)
	}
	out := make([]Entry, 0, len(list))
	for _, e := range list {
		out = append(out, Entry{Engine: e, Installed: c.reg != nil && c.reg.Has(e.Name)})
	}
	return out, nil
}

// CurrentOS maps runtime.GOOS onto the catalog's OS names.
func CurrentOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}
