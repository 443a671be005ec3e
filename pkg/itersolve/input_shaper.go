// Input shaper kinematics wrapper
//
// Copyright (C) 2019-2020  Kevin O'Connor <kevin@koconnor.net>
// Copyright (C) 2020  Dmitry Butyugin <dmbutyugin@google.com>
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package itersolve

import "fmt"

// InputShaperKinematics wraps a stepper's original kinematics with an
// impulse-train convolution of the planned motion. It mirrors the C
// input_shaper stepper kinematics: the wrapper delegates to the original
// handle and widens the step generation scan window by the pulse span.
type InputShaperKinematics struct {
	origSK StepperKinematics
	flags  AxisFlags

	shaperType   ShaperType
	springPeriod float64
	dampingRatio float64

	pulsesA []float64
	pulsesT []float64
	window  float64
}

// NewInputShaperKinematics allocates an unbound input shaper wrapper.
func NewInputShaperKinematics() *InputShaperKinematics {
	return &InputShaperKinematics{}
}

// SetSK binds the wrapper to a stepper's original kinematics. Handles
// without any active cartesian axis cannot be shaped and are rejected;
// the caller must then restore the original kinematics.
func (is *InputShaperKinematics) SetSK(origSK StepperKinematics) error {
	if origSK.ActiveFlags()&(AxisX|AxisY|AxisZ) == 0 {
		return fmt.Errorf("input_shaper: kinematics has no active cartesian axes")
	}
	is.origSK = origSK
	is.flags = origSK.ActiveFlags()
	return nil
}

// SetShaperParams installs new shaper parameters and recomputes the
// pulse train and scan window. On error the previous parameters remain
// in effect.
func (is *InputShaperKinematics) SetShaperParams(springPeriod, dampingRatio float64, shaperType ShaperType) error {
	A, T, err := shaperPulses(shaperType, springPeriod, dampingRatio)
	if err != nil {
		return err
	}
	window := 0.0
	if len(A) > 0 {
		window, err = InputShaperStepGenerationWindow(shaperType, springPeriod, dampingRatio)
		if err != nil {
			return err
		}
		// Shift pulses so the shaped position stays centered on the
		// commanded position.
		var sumA, ts float64
		for i := range A {
			sumA += A[i]
			ts += A[i] * T[i]
		}
		ts /= sumA
		for i := range T {
			T[i] -= ts
		}
	}
	is.shaperType = shaperType
	is.springPeriod = springPeriod
	is.dampingRatio = dampingRatio
	is.pulsesA = A
	is.pulsesT = T
	is.window = window
	return nil
}

// OrigSK returns the wrapped original kinematics.
func (is *InputShaperKinematics) OrigSK() StepperKinematics { return is.origSK }

// Pulses returns the current centered impulse train.
func (is *InputShaperKinematics) Pulses() (A, T []float64) { return is.pulsesA, is.pulsesT }

func (is *InputShaperKinematics) ActiveFlags() AxisFlags { return is.flags }

func (is *InputShaperKinematics) GenStepsPreActive() float64 { return is.window }

func (is *InputShaperKinematics) GenStepsPostActive() float64 { return is.window }
