// Package printer holds the host object registry and lifecycle events.
//
// Modules register themselves by name, look each other up lazily and
// subscribe to lifecycle events such as "klippy:connect", which fires
// once after all config modules are loaded.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package printer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nonanon1/klipper/pkg/errors"
	"github.com/nonanon1/klipper/pkg/log"
)

// Lifecycle event names.
const (
	EventConnect    = "klippy:connect"
	EventReady      = "klippy:ready"
	EventDisconnect = "klippy:disconnect"
)

// EventHandler runs when a lifecycle event fires. A non-nil error from
// a connect handler aborts startup.
type EventHandler func() error

// Printer is the registry tying host objects and events together.
type Printer struct {
	mu sync.RWMutex

	objects  map[string]interface{}
	handlers map[string][]EventHandler

	state    string
	stateMsg string

	logger *log.Logger
}

// New creates an empty printer registry.
func New(logger *log.Logger) *Printer {
	return &Printer{
		objects:  make(map[string]interface{}),
		handlers: make(map[string][]EventHandler),
		state:    "startup",
		logger:   logger.WithPrefix("printer"),
	}
}

// AddObject registers a host object under a name. Names must be
// unique.
func (p *Printer) AddObject(name string, obj interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.objects[name]; ok {
		return fmt.Errorf("printer object '%s' already created", name)
	}
	p.objects[name] = obj
	return nil
}

// LookupObject returns a registered object or an error.
func (p *Printer) LookupObject(name string) (interface{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	obj, ok := p.objects[name]
	if !ok {
		return nil, errors.New(errors.ErrRuntime,
			fmt.Sprintf("printer object '%s' not found", name))
	}
	return obj, nil
}

// LookupObjectOptional returns a registered object or nil.
func (p *Printer) LookupObjectOptional(name string) interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.objects[name]
}

// ObjectNames returns the registered object names, sorted.
func (p *Printer) ObjectNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.objects))
	for name := range p.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterEventHandler subscribes a handler to a lifecycle event.
// Handlers run in registration order.
func (p *Printer) RegisterEventHandler(event string, handler EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[event] = append(p.handlers[event], handler)
}

// SendEvent fires an event. The first handler error stops the chain
// and is returned.
func (p *Printer) SendEvent(event string) error {
	p.mu.RLock()
	handlers := make([]EventHandler, len(p.handlers[event]))
	copy(handlers, p.handlers[event])
	p.mu.RUnlock()

	for _, h := range handlers {
		if err := h(); err != nil {
			p.logger.ErrorFields("event handler failed", log.Fields{
				"event": event,
				"error": err.Error(),
			})
			return err
		}
	}
	return nil
}

// Connect fires klippy:connect and transitions to the ready state on
// success. A fatal handler error moves the printer to an error state.
func (p *Printer) Connect() error {
	if err := p.SendEvent(EventConnect); err != nil {
		p.setState("error", err.Error())
		return err
	}
	p.setState("ready", "Printer is ready")
	return p.SendEvent(EventReady)
}

func (p *Printer) setState(state, msg string) {
	p.mu.Lock()
	p.state = state
	p.stateMsg = msg
	p.mu.Unlock()
	p.logger.InfoFields("state change", log.Fields{"state": state})
}

// State returns the lifecycle state and its message.
func (p *Printer) State() (string, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.stateMsg
}
