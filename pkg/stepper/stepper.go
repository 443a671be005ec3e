// Package stepper models the host-side view of a stepper motor: its
// name, its step-generation kinematics handle and the trapezoidal move
// queue feeding it.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package stepper

import (
	"sync"

	"github.com/nonanon1/klipper/pkg/itersolve"
)

// Stepper is one motor's step-generation binding.
type Stepper struct {
	mu    sync.Mutex
	name  string
	sk    itersolve.StepperKinematics
	trapq *itersolve.TrapQ
}

// New creates a stepper with its initial kinematics handle.
func New(name string, sk itersolve.StepperKinematics) *Stepper {
	return &Stepper{name: name, sk: sk}
}

// GetName returns the stepper name ("stepper_x", "stepper_y", ...).
func (s *Stepper) GetName() string { return s.name }

// GetStepperKinematics returns the currently bound kinematics handle.
func (s *Stepper) GetStepperKinematics() itersolve.StepperKinematics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sk
}

// SetStepperKinematics swaps the kinematics handle and returns the
// previous one. Filter wrappers use this to interpose themselves and
// to restore the original handle when a binding is rejected.
func (s *Stepper) SetStepperKinematics(sk itersolve.StepperKinematics) itersolve.StepperKinematics {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.sk
	s.sk = sk
	return old
}

// SetTrapq assigns the move queue this stepper consumes.
func (s *Stepper) SetTrapq(tq *itersolve.TrapQ) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trapq = tq
}

// GetTrapq returns the assigned move queue.
func (s *Stepper) GetTrapq() *itersolve.TrapQ {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trapq
}
