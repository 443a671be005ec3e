// Unified error handling for the filter lifecycle host
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import "fmt"

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// G-code command errors
	ErrGCodeParse        ErrorCode = "GCODE_PARSE"
	ErrGCodeUnknownCmd   ErrorCode = "GCODE_UNKNOWN_CMD"
	ErrGCodeInvalidParam ErrorCode = "GCODE_INVALID_PARAM"

	// Filter lifecycle errors
	ErrValidation      ErrorCode = "FILTER_VALIDATION"
	ErrBindingRejected ErrorCode = "FILTER_BINDING_REJECTED"
	ErrNoMatchingAxis  ErrorCode = "FILTER_NO_MATCHING_AXIS"
	ErrBackendFailure  ErrorCode = "FILTER_BACKEND_FAILURE"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
)

// HostError is the unified error type for the host system
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Section is the config section or context
	Section string

	// Option is the config option or command parameter name
	Option string

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *HostError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Option, e.Message)
	}
	if e.Section != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetSection sets the context section
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the config option or parameter name
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message, Err: err}
}

// ValidationError reports an out-of-range or unknown filter parameter.
// field names the offending parameter, reason states the violated bound.
func ValidationError(field, reason string) *HostError {
	return New(ErrValidation, fmt.Sprintf("parameter '%s': %s", field, reason)).
		SetOption(field)
}

// BindingRejectedError reports a backend refusal to wrap a stepper's
// kinematics. Callers recover locally by keeping the original
// kinematics; this error never surfaces as a command failure.
func BindingRejectedError(stepper string, err error) *HostError {
	return Wrap(err, ErrBindingRejected,
		fmt.Sprintf("stepper '%s' kinematics cannot be wrapped", stepper)).
		SetSection(stepper)
}

// NoMatchingAxisError reports a configured axis name with no matching
// stepper. It is fatal at connect time.
func NoMatchingAxisError(name string) *HostError {
	return New(ErrNoMatchingAxis,
		fmt.Sprintf("no matching stepper '%s' found", name)).
		SetSection(name)
}

// BackendFailureError reports a numeric kernel failure while applying
// parameters. The reconfiguration aborts with prior parameters intact.
func BackendFailureError(context string, err error) *HostError {
	return Wrap(err, ErrBackendFailure, context)
}

// ConfigValidationError creates an error for config validation failure
func ConfigValidationError(section, option, reason string) *HostError {
	return New(ErrConfigValidation,
		fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// GCodeInvalidParameterError creates an error for a bad command parameter
func GCodeInvalidParameterError(command, param, value, reason string) *HostError {
	return New(ErrGCodeInvalidParam,
		fmt.Sprintf("command '%s': invalid parameter '%s=%s' (%s)", command, param, value, reason)).
		SetOption(param)
}

// RuntimeErrorInit creates an error for initialization failure
func RuntimeErrorInit(component, reason string) *HostError {
	return New(ErrRuntimeInit, fmt.Sprintf("failed to initialize %s: %s", component, reason))
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	for err != nil {
		hostErr, ok := err.(*HostError)
		if !ok {
			return false
		}
		if hostErr.Code == code {
			return true
		}
		err = hostErr.Err
	}
	return false
}

// IsFatal reports whether the error must abort system initialization.
func IsFatal(err error) bool {
	return Is(err, ErrNoMatchingAxis) || Is(err, ErrRuntimeInit)
}
