// Package gcode dispatches extended G-code commands to host modules.
//
// Modules register plain commands ("SET_SMOOTH_AXIS") or mux commands
// ("SET_INPUT_SHAPER AXIS=stepper_x") where one name fans out to
// per-instance handlers keyed on a parameter value.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nonanon1/klipper/pkg/errors"
	"github.com/nonanon1/klipper/pkg/log"
)

// Handler processes a parsed command.
type Handler func(cmd *Command) error

type muxCommand struct {
	key      string
	handlers map[string]Handler
	help     string
}

// Dispatcher routes command lines to registered handlers.
type Dispatcher struct {
	mu sync.RWMutex

	commands map[string]Handler
	mux      map[string]*muxCommand
	help     map[string]string
	order    []string

	logger *log.Logger
}

// NewDispatcher creates an empty command dispatcher.
func NewDispatcher(logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		commands: make(map[string]Handler),
		mux:      make(map[string]*muxCommand),
		help:     make(map[string]string),
		logger:   logger.WithPrefix("gcode"),
	}
}

// RegisterCommand registers a handler with help text. Registering a
// name twice is a programming error.
func (d *Dispatcher) RegisterCommand(name, help string, handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	name = strings.ToUpper(name)
	if _, ok := d.commands[name]; ok {
		return fmt.Errorf("gcode: command %s already registered", name)
	}
	if _, ok := d.mux[name]; ok {
		return fmt.Errorf("gcode: command %s already registered as mux", name)
	}
	d.commands[name] = handler
	d.help[name] = help
	d.order = append(d.order, name)
	sort.Strings(d.order)
	return nil
}

// RegisterMuxCommand registers a per-instance handler for a shared
// command name. key selects the routing parameter and value the
// instance; an empty value makes the handler the default used when the
// key parameter is absent.
func (d *Dispatcher) RegisterMuxCommand(name, key, value, help string, handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	name = strings.ToUpper(name)
	if _, ok := d.commands[name]; ok {
		return fmt.Errorf("gcode: command %s already registered", name)
	}
	mc, ok := d.mux[name]
	if !ok {
		mc = &muxCommand{
			key:      strings.ToUpper(key),
			handlers: make(map[string]Handler),
			help:     help,
		}
		d.mux[name] = mc
		d.help[name] = help
		d.order = append(d.order, name)
		sort.Strings(d.order)
	}
	if mc.key != strings.ToUpper(key) {
		return fmt.Errorf("gcode: mux command %s key mismatch (%s vs %s)", name, mc.key, key)
	}
	if _, ok := mc.handlers[value]; ok {
		return fmt.Errorf("gcode: mux command %s value %q already registered", name, value)
	}
	mc.handlers[value] = handler
	return nil
}

// Dispatch parses a command line, runs the matching handler and
// returns any queued response lines.
func (d *Dispatcher) Dispatch(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ";") {
		return nil, nil
	}
	cmd, err := parseCommand(line)
	if err != nil {
		return nil, err
	}
	defer cmd.release()

	d.mu.RLock()
	handler, plain := d.commands[cmd.name]
	mc, muxed := d.mux[cmd.name]
	d.mu.RUnlock()

	switch {
	case plain:
	case muxed:
		handler, err = d.routeMux(cmd, mc)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New(errors.ErrGCodeUnknownCmd,
			fmt.Sprintf("unknown command: %s", cmd.name))
	}

	if err := handler(cmd); err != nil {
		d.logger.WarnFields("command failed", log.Fields{
			"command": cmd.name,
			"error":   err.Error(),
		})
		return nil, err
	}
	return cmd.Responses(), nil
}

func (d *Dispatcher) routeMux(cmd *Command, mc *muxCommand) (Handler, error) {
	value, err := cmd.Get(mc.key, "")
	if err != nil {
		return nil, err
	}
	if handler, ok := mc.handlers[value]; ok {
		return handler, nil
	}
	return nil, errors.GCodeInvalidParameterError(cmd.name, mc.key, value,
		"no handler registered for this value")
}

// HelpText returns the registered commands and their help lines.
func (d *Dispatcher) HelpText() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]string, 0, len(d.order))
	for _, name := range d.order {
		result = append(result, fmt.Sprintf("%s: %s", name, d.help[name]))
	}
	return result
}
