// Stepper kinematics handles - native rendition of klippy/chelper itersolve
//
// Copyright (C) 2019-2020  Kevin O'Connor <kevin@koconnor.net>
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package itersolve provides the step-generation backend boundary: stepper
// kinematics handles, the trapezoid move queue, and the acausal filter
// wrappers (input shaper, smooth axis) together with their generation
// window computation.
package itersolve

// AxisFlags marks which cartesian axes a kinematics handle responds to.
type AxisFlags uint8

const (
	AxisX AxisFlags = 1 << iota
	AxisY
	AxisZ
)

// Has reports whether all axes in mask are active.
func (f AxisFlags) Has(mask AxisFlags) bool {
	return f&mask == mask
}

// StepperKinematics is one stepper's time -> step-position mapping.
// GenStepsPreActive/GenStepsPostActive declare how much planner data the
// step generation stage must hold before/after a step time to evaluate
// the mapping (zero for causal kinematics).
type StepperKinematics interface {
	ActiveFlags() AxisFlags
	GenStepsPreActive() float64
	GenStepsPostActive() float64
}

// baseSK is a causal kinematics handle with a fixed axis mask.
type baseSK struct {
	flags AxisFlags
	name  string
}

func (sk *baseSK) ActiveFlags() AxisFlags      { return sk.flags }
func (sk *baseSK) GenStepsPreActive() float64  { return 0 }
func (sk *baseSK) GenStepsPostActive() float64 { return 0 }

// NewCartesianStepperKinematics creates a kinematics handle for a plain
// cartesian stepper on axis 'x', 'y' or 'z'.
func NewCartesianStepperKinematics(axis byte) StepperKinematics {
	var flags AxisFlags
	switch axis {
	case 'x':
		flags = AxisX
	case 'y':
		flags = AxisY
	case 'z':
		flags = AxisZ
	}
	return &baseSK{flags: flags, name: "cartesian_" + string(axis)}
}

// NewCoreXYStepperKinematics creates a corexy kinematics handle.
// stepperType is '+' for the x+y belt and '-' for the x-y belt; both
// respond to the X and Y axes.
func NewCoreXYStepperKinematics(stepperType byte) StepperKinematics {
	return &baseSK{flags: AxisX | AxisY, name: "corexy_" + string(stepperType)}
}

// NewExtruderStepperKinematics creates an extruder kinematics handle.
// Extruders carry no cartesian axis flags, so motion filters refuse to
// wrap them.
func NewExtruderStepperKinematics() StepperKinematics {
	return &baseSK{flags: 0, name: "extruder"}
}
