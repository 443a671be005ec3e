// Smooth axis kinematics wrapper
//
// Copyright (C) 2019-2020  Kevin O'Connor <kevin@koconnor.net>
// Copyright (C) 2020  Dmitry Butyugin <dmbutyugin@google.com>
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package itersolve

import "fmt"

// halfSmoothTimeBase scales 1/target_freq into the half smooth time of
// the all-pass second order smoothing weight function.
const halfSmoothTimeBase = 0.331293106

// SmoothAxisKinematics wraps a stepper's original kinematics with a
// positional low-pass over the X and/or Y axes. The scan window is the
// half smooth time of the widest configured axis; moves inside that
// window on both sides of the step time feed the weighted integral.
type SmoothAxisKinematics struct {
	origSK StepperKinematics
	flags  AxisFlags

	smoothX, smoothY             float64
	dampingRatioX, dampingRatioY float64
	accelCompX, accelCompY       float64
}

// NewSmoothAxisKinematics allocates an unbound smooth axis wrapper.
func NewSmoothAxisKinematics() *SmoothAxisKinematics {
	return &SmoothAxisKinematics{}
}

// SetSK binds the wrapper to a stepper's original kinematics. Only
// handles active on X and/or Y can be smoothed; anything else (extruder,
// plain Z steppers) is rejected and must keep its original kinematics.
func (sa *SmoothAxisKinematics) SetSK(origSK StepperKinematics) error {
	if origSK.ActiveFlags()&(AxisX|AxisY) == 0 {
		return fmt.Errorf("smooth_axis: kinematics has no active X/Y axes")
	}
	sa.origSK = origSK
	sa.flags = origSK.ActiveFlags()
	return nil
}

// SetTime sets the per-axis smoothing durations (seconds).
func (sa *SmoothAxisKinematics) SetTime(smoothX, smoothY float64) {
	sa.smoothX = smoothX
	sa.smoothY = smoothY
}

// SetDampingRatio sets the per-axis damping ratios used by the
// resonance-compensating weight function.
func (sa *SmoothAxisKinematics) SetDampingRatio(dampingRatioX, dampingRatioY float64) {
	sa.dampingRatioX = dampingRatioX
	sa.dampingRatioY = dampingRatioY
}

// SetAccelComp sets the per-axis acceleration compensation terms.
func (sa *SmoothAxisKinematics) SetAccelComp(accelCompX, accelCompY float64) {
	sa.accelCompX = accelCompX
	sa.accelCompY = accelCompY
}

// OrigSK returns the wrapped original kinematics.
func (sa *SmoothAxisKinematics) OrigSK() StepperKinematics { return sa.origSK }

func (sa *SmoothAxisKinematics) ActiveFlags() AxisFlags { return sa.flags }

// halfSmoothTime is the widest active-axis half smooth time.
func (sa *SmoothAxisKinematics) halfSmoothTime() float64 {
	hst := 0.0
	if sa.flags.Has(AxisX) && sa.smoothX/2 > hst {
		hst = sa.smoothX / 2
	}
	if sa.flags.Has(AxisY) && sa.smoothY/2 > hst {
		hst = sa.smoothY / 2
	}
	return hst
}

func (sa *SmoothAxisKinematics) GenStepsPreActive() float64 { return sa.halfSmoothTime() }

func (sa *SmoothAxisKinematics) GenStepsPostActive() float64 { return sa.halfSmoothTime() }

// HalfSmoothTime returns the half smooth time of the versioned smoother
// weight function for a target frequency; zero frequency means no
// smoothing. The damping ratio does not change the window of this
// weight function but is part of the versioned kind's signature.
func HalfSmoothTime(targetFreq, dampingRatio float64) float64 {
	if targetFreq <= 0 {
		return 0
	}
	return halfSmoothTimeBase / targetFreq
}
