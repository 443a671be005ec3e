// Module auto-loading keyed on config section names
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"fmt"
	"strings"
	"sync"
)

// Module is a host object instantiated from a config section.
type Module interface {
	GetName() string
}

// ModuleFactory builds a module from its config section.
type ModuleFactory func(section *Section) (Module, error)

// Registry maps config section names to module factories and tracks
// what has been loaded. Filter modules register under a bare name
// ("smooth_axis") or a name prefix ("input_shaper" matching
// "input_shaper stepper_x").
type Registry struct {
	mu sync.RWMutex

	exact    map[string]ModuleFactory
	prefixes map[string]ModuleFactory
	loaded   map[string]Module
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{
		exact:    make(map[string]ModuleFactory),
		prefixes: make(map[string]ModuleFactory),
		loaded:   make(map[string]Module),
	}
}

// Register adds a factory for an exact section name.
func (r *Registry) Register(name string, factory ModuleFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[name] = factory
}

// RegisterPrefix adds a factory for sections of the form
// "<prefix> <instance>".
func (r *Registry) RegisterPrefix(prefix string, factory ModuleFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = factory
}

// LoadModules instantiates modules for every config section with a
// registered factory. Sections without a factory are left for the
// unused-section report.
func (r *Registry) LoadModules(cfg *Config) (map[string]Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	modules := make(map[string]Module)
	for _, section := range cfg.GetSections() {
		name := section.GetName()
		if m, ok := r.loaded[name]; ok {
			modules[name] = m
			continue
		}
		factory := r.lookupLocked(name)
		if factory == nil {
			continue
		}
		cfg.markSectionAccessed(name)
		module, err := factory(section)
		if err != nil {
			return nil, fmt.Errorf("failed to load module [%s]: %w", name, err)
		}
		modules[name] = module
		r.loaded[name] = module
	}
	return modules, nil
}

func (r *Registry) lookupLocked(sectionName string) ModuleFactory {
	if factory, ok := r.exact[sectionName]; ok {
		return factory
	}
	if idx := strings.IndexByte(sectionName, ' '); idx > 0 {
		if factory, ok := r.prefixes[sectionName[:idx]]; ok {
			return factory
		}
	}
	return nil
}

// HasFactory checks whether any factory matches the section name.
func (r *Registry) HasFactory(sectionName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(sectionName) != nil
}

// GetModule returns a loaded module by section name, or nil.
func (r *Registry) GetModule(name string) Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded[name]
}

// GetLoadedModules returns a copy of the loaded module map.
func (r *Registry) GetLoadedModules() map[string]Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]Module, len(r.loaded))
	for k, v := range r.loaded {
		result[k] = v
	}
	return result
}
