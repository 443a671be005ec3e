// Package config parses printer configuration files with access
// tracking and typed validation.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"fmt"

	"github.com/nonanon1/klipper/pkg/errors"
)

// NewConfigError creates a config error with section/option context.
func NewConfigError(section, option, message string) *errors.HostError {
	return errors.New(errors.ErrConfigValidation, message).
		SetSection(section).
		SetOption(option)
}

// ErrMissingOption reports a required option that was not specified.
func ErrMissingOption(section, option string) *errors.HostError {
	return errors.New(errors.ErrConfigOption,
		fmt.Sprintf("option '%s' in section '%s' must be specified", option, section)).
		SetSection(section).
		SetOption(option)
}

// ErrMissingSection reports a missing section.
func ErrMissingSection(section string) *errors.HostError {
	return errors.New(errors.ErrConfigSection,
		fmt.Sprintf("section '%s' not found", section)).
		SetSection(section)
}

// ErrInvalidValue reports an option that failed to parse.
func ErrInvalidValue(section, option, value, expected string) *errors.HostError {
	return errors.ConfigValidationError(section, option,
		fmt.Sprintf("invalid value '%s', expected %s", value, expected))
}

// ErrOutOfRange reports a value outside the allowed range.
func ErrOutOfRange(section, option string, value float64, constraint string) *errors.HostError {
	return errors.ConfigValidationError(section, option,
		fmt.Sprintf("value %v %s", value, constraint))
}

// ErrInvalidChoice reports a value not in the allowed choice set.
func ErrInvalidChoice(section, option, value string, choices []string) *errors.HostError {
	return errors.ConfigValidationError(section, option,
		fmt.Sprintf("'%s' is not a valid choice (valid: %v)", value, choices))
}
