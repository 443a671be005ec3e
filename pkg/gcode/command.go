// Parsed extended G-code command with typed parameter access
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nonanon1/klipper/pkg/errors"
	"github.com/nonanon1/klipper/pkg/pool"
)

// Command is a single parsed command line. Parameter names are
// case-insensitive and stored uppercased.
type Command struct {
	name      string
	params    map[string]string
	responses []string
}

// parseCommand splits "CMD KEY=VALUE KEY2=VALUE2" into a Command.
// The parameter map comes from the argument pool; release frees it.
func parseCommand(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New(errors.ErrGCodeParse, "empty command line")
	}
	cmd := &Command{
		name:   strings.ToUpper(fields[0]),
		params: pool.GetArgsMap(),
	}
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			cmd.release()
			return nil, errors.New(errors.ErrGCodeParse,
				fmt.Sprintf("malformed parameter '%s' in %s", f, cmd.name))
		}
		cmd.params[strings.ToUpper(kv[0])] = kv[1]
	}
	return cmd, nil
}

func (c *Command) release() {
	pool.PutArgsMap(c.params)
	c.params = nil
}

// Name returns the uppercased command name.
func (c *Command) Name() string { return c.name }

// HasParam checks whether a parameter was supplied.
func (c *Command) HasParam(name string) bool {
	_, ok := c.params[strings.ToUpper(name)]
	return ok
}

// Get returns a string parameter, or the fallback when absent.
func (c *Command) Get(name string, fallback ...string) (string, error) {
	if v, ok := c.params[strings.ToUpper(name)]; ok {
		return v, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return "", errors.New(errors.ErrGCodeInvalidParam,
		fmt.Sprintf("command '%s' requires parameter '%s'", c.name, name))
}

// FloatBounds constrains a float parameter the same way config options
// are constrained.
type FloatBounds struct {
	MinVal *float64
	MaxVal *float64
	Above  *float64
	Below  *float64
}

// Float returns a pointer suitable for FloatBounds fields.
func Float(v float64) *float64 { return &v }

// GetFloat returns a float parameter checked against bounds, or the
// fallback when absent. Fallback values bypass the bounds check.
func (c *Command) GetFloat(name string, bounds FloatBounds, fallback ...float64) (float64, error) {
	raw, ok := c.params[strings.ToUpper(name)]
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return 0, errors.New(errors.ErrGCodeInvalidParam,
			fmt.Sprintf("command '%s' requires parameter '%s'", c.name, name))
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.GCodeInvalidParameterError(c.name, name, raw, "not a number")
	}
	if bounds.MinVal != nil && v < *bounds.MinVal {
		return 0, errors.GCodeInvalidParameterError(c.name, name, raw,
			fmt.Sprintf("must have minimum of %v", *bounds.MinVal))
	}
	if bounds.MaxVal != nil && v > *bounds.MaxVal {
		return 0, errors.GCodeInvalidParameterError(c.name, name, raw,
			fmt.Sprintf("must have maximum of %v", *bounds.MaxVal))
	}
	if bounds.Above != nil && v <= *bounds.Above {
		return 0, errors.GCodeInvalidParameterError(c.name, name, raw,
			fmt.Sprintf("must be above %v", *bounds.Above))
	}
	if bounds.Below != nil && v >= *bounds.Below {
		return 0, errors.GCodeInvalidParameterError(c.name, name, raw,
			fmt.Sprintf("must be below %v", *bounds.Below))
	}
	return v, nil
}

// GetInt returns an integer parameter, or the fallback when absent.
func (c *Command) GetInt(name string, fallback ...int) (int, error) {
	raw, ok := c.params[strings.ToUpper(name)]
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return 0, errors.New(errors.ErrGCodeInvalidParam,
			fmt.Sprintf("command '%s' requires parameter '%s'", c.name, name))
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.GCodeInvalidParameterError(c.name, name, raw, "not an integer")
	}
	return v, nil
}

// RespondInfo queues an informational response line for the caller.
func (c *Command) RespondInfo(format string, args ...interface{}) {
	c.responses = append(c.responses, fmt.Sprintf(format, args...))
}

// Responses returns the queued response lines.
func (c *Command) Responses() []string { return c.responses }
