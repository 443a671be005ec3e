// Package kinematics builds the machine's stepper set for a printer
// geometry. Cartesian machines get one stepper per axis; corexy
// machines get two belt steppers that each move both X and Y.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package kinematics

import (
	"fmt"

	"github.com/nonanon1/klipper/pkg/itersolve"
	"github.com/nonanon1/klipper/pkg/stepper"
)

// Kinematics exposes the machine's steppers to the toolhead and the
// filter modules.
type Kinematics interface {
	// GetType returns the geometry name ("cartesian", "corexy").
	GetType() string
	// GetSteppers returns all motion steppers.
	GetSteppers() []*stepper.Stepper
}

type cartesian struct {
	steppers []*stepper.Stepper
}

func (c *cartesian) GetType() string { return "cartesian" }
func (c *cartesian) GetSteppers() []*stepper.Stepper { return c.steppers }

// NewCartesian creates X, Y and Z steppers with per-axis kinematics.
func NewCartesian() Kinematics {
	return &cartesian{steppers: []*stepper.Stepper{
		stepper.New("stepper_x", itersolve.NewCartesianStepperKinematics('x')),
		stepper.New("stepper_y", itersolve.NewCartesianStepperKinematics('y')),
		stepper.New("stepper_z", itersolve.NewCartesianStepperKinematics('z')),
	}}
}

type corexy struct {
	steppers []*stepper.Stepper
}

func (c *corexy) GetType() string { return "corexy" }
func (c *corexy) GetSteppers() []*stepper.Stepper { return c.steppers }

// NewCoreXY creates the two belt steppers plus Z. Both belt steppers
// are active on X and Y.
func NewCoreXY() Kinematics {
	return &corexy{steppers: []*stepper.Stepper{
		stepper.New("stepper_x", itersolve.NewCoreXYStepperKinematics('+')),
		stepper.New("stepper_y", itersolve.NewCoreXYStepperKinematics('-')),
		stepper.New("stepper_z", itersolve.NewCartesianStepperKinematics('z')),
	}}
}

// New builds the kinematics for a geometry name.
func New(kind string) (Kinematics, error) {
	switch kind {
	case "cartesian":
		return NewCartesian(), nil
	case "corexy":
		return NewCoreXY(), nil
	default:
		return nil, fmt.Errorf("kinematics: unsupported type '%s'", kind)
	}
}
