// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agents

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/opschat/internal/model"
)

// =============================================================================
// CATALOG FILE
// =============================================================================

// catalog is the on-disk shape of the agents file.
type catalog struct {
	Agents []model.Agent `toml:"agent"`
}

// parseCatalog reads and validates one catalog file.
func parseCatalog(path string) ([]model.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cat catalog
	if err := toml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(cat.Agents))
	for _, a := range cat.Agents {
		if a.Name == "" {
			return nil, fmt.Errorf("parse %s: agent entry without a name", path)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("parse %s: duplicate agent %q", path, a.Name)
		}
		seen[a.Name] = true
	}
	return cat.Agents, nil
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds the loaded agent catalog. All methods are safe for
// concurrent use.
type Registry struct {
	path string

	mu     sync.RWMutex
	agents []model.Agent
	byName map[string]model.Agent

	watcher  *fsnotify.Watcher
	onChange func()
	done     chan struct{}
}

// Load reads the catalog file. A missing file yields an empty registry
// rather than an error, so a bare install still starts.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path, byName: map[string]model.Agent{}}

	agents, err := parseCatalog(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	r.replace(agents)
	return r, nil
}

// replace swaps in a new catalog.
func (r *Registry) replace(agents []model.Agent) {
	byName := make(map[string]model.Agent, len(agents))
	for _, a := range agents {
		byName[a.Name] = a
	}
	r.mu.Lock()
	r.agents = agents
	r.byName = byName
	r.mu.Unlock()
}

// List returns the catalog in file order.
func (r *Registry) List() []model.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Lookup finds an agent by name.
func (r *Registry) Lookup(name string) (model.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// DisplayName returns the agent's display name, falling back to the raw
// name for agents not in the catalog.
func (r *Registry) DisplayName(name string) string {
	if a, ok := r.Lookup(name); ok && a.DisplayName != "" {
		return a.DisplayName
	}
	return name
}

// Watch reloads the catalog when the file changes. onChange, if non-nil,
// runs after each successful reload. Editors that rename-over the file
// are handled by watching the parent directory.
func (r *Registry) Watch(onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(r.path)); err != nil {
		w.Close()
		return err
	}

	r.watcher = w
	r.onChange = onChange
	r.done = make(chan struct{})
	go r.watchLoop()
	return nil
}

// watchLoop applies catalog edits until Close. A reload that fails to
// parse keeps the previous catalog.
func (r *Registry) watchLoop() {
	target := filepath.Clean(r.path)
	for {
		select {
		case <-r.done:
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			agents, err := parseCatalog(r.path)
			if err != nil {
				continue
			}
			r.replace(agents)
			if r.onChange != nil {
				r.onChange()
			}
		case _, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher, if one was started.
func (r *Registry) Close() error {
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	return r.watcher.Close()
}
