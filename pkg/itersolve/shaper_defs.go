// Input shaper pulse definitions
//
// Copyright (C) 2019-2020  Kevin O'Connor <kevin@koconnor.net>
// Copyright (C) 2020  Dmitry Butyugin <dmbutyugin@google.com>
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package itersolve

import (
	"fmt"
	"math"
)

const ShaperVibrationReduction = 20.0

// ShaperType names one entry of the fixed input shaper catalog.
type ShaperType string

const (
	ShaperZV      ShaperType = "zv"
	ShaperZVD     ShaperType = "zvd"
	ShaperZVDD    ShaperType = "zvdd"
	ShaperZVDDD   ShaperType = "zvddd"
	ShaperEI      ShaperType = "ei"
	Shaper2HumpEI ShaperType = "2hump_ei"
)

// ShaperTypes lists the catalog in canonical order.
var ShaperTypes = []ShaperType{
	ShaperZV, ShaperZVD, ShaperZVDD, ShaperZVDDD, ShaperEI, Shaper2HumpEI,
}

// IsShaperType reports whether name is a catalog entry.
func IsShaperType(name ShaperType) bool {
	for _, t := range ShaperTypes {
		if t == name {
			return true
		}
	}
	return false
}

// shaperPulses computes the impulse train (A, T) for a shaper given the
// resonance spring period and damping ratio. A zero spring period yields
// the identity shaper (no pulses). The damped period t_d diverges as the
// damping ratio approaches 1, so a ratio of 1 is rejected here rather
// than at validation time.
func shaperPulses(shaperType ShaperType, springPeriod, dampingRatio float64) (A, T []float64, err error) {
	if springPeriod < 0 {
		return nil, nil, fmt.Errorf("shaper: negative spring period %.9f", springPeriod)
	}
	if springPeriod == 0 {
		return nil, nil, nil
	}
	d2 := 1.0 - dampingRatio*dampingRatio
	if d2 <= 0 {
		return nil, nil, fmt.Errorf("shaper: damping ratio %.6f has no damped frequency", dampingRatio)
	}
	df := math.Sqrt(d2)
	K := math.Exp(-dampingRatio * math.Pi / df)
	td := springPeriod / df

	switch shaperType {
	case ShaperZV:
		A = []float64{1.0, K}
		T = []float64{0.0, 0.5 * td}
	case ShaperZVD:
		A = []float64{1.0, 2.0 * K, K * K}
		T = []float64{0.0, 0.5 * td, td}
	case ShaperZVDD:
		A = []float64{1.0, 3.0 * K, 3.0 * K * K, K * K * K}
		T = []float64{0.0, 0.5 * td, td, 1.5 * td}
	case ShaperZVDDD:
		K2 := K * K
		A = []float64{1.0, 4.0 * K, 6.0 * K2, 4.0 * K2 * K, K2 * K2}
		T = []float64{0.0, 0.5 * td, td, 1.5 * td, 2.0 * td}
	case ShaperEI:
		vTol := 1.0 / ShaperVibrationReduction
		dr := dampingRatio
		a1 := (0.24968 + 0.24961*vTol) + ((0.80008+1.23328*vTol)+
			(0.49599+3.17316*vTol)*dr)*dr
		a3 := (0.25149 + 0.21474*vTol) + ((-0.83249+1.41498*vTol)+
			(0.85181-4.90094*vTol)*dr)*dr
		a2 := 1.0 - a1 - a3
		t2 := 0.4999 + (((0.46159+8.57843*vTol)*vTol)+
			(((4.26169-108.644*vTol)*vTol)+
				((1.75601+336.989*vTol)*vTol)*dr)*dr)*dr
		A = []float64{a1, a2, a3}
		T = []float64{0.0, t2 * td, td}
	case Shaper2HumpEI:
		t := [][]float64{
			{0.0, 0.0, 0.0, 0.0},
			{0.49890, 0.16270, -0.54262, 6.16180},
			{0.99748, 0.18382, -1.58270, 8.17120},
			{1.49920, -0.09297, -0.28338, 1.85710},
		}
		a := [][]float64{
			{0.16054, 0.76699, 2.26560, -1.22750},
			{0.33911, 0.45081, -2.58080, 1.73650},
			{0.34089, -0.61533, -0.68765, 0.42261},
			{0.15997, -0.60246, 1.00280, -0.93145},
		}
		A, T = shaperFromExpansionCoeffs(springPeriod, dampingRatio, t, a)
	default:
		return nil, nil, fmt.Errorf("shaper: unknown type %q", shaperType)
	}
	return A, T, nil
}

// shaperFromExpansionCoeffs evaluates pulse amplitudes and times from
// polynomial expansions in the damping ratio, scaled by the spring period.
func shaperFromExpansionCoeffs(springPeriod, dampingRatio float64, t, a [][]float64) (A, T []float64) {
	n := len(a)
	k := len(a[0])
	A = make([]float64, n)
	T = make([]float64, n)
	for i := 0; i < n; i++ {
		u := t[i][k-1]
		v := a[i][k-1]
		for j := 0; j < k-1; j++ {
			u = u*dampingRatio + t[i][k-j-2]
			v = v*dampingRatio + a[i][k-j-2]
		}
		T[i] = u * springPeriod
		A[i] = v
	}
	return A, T
}

// InputShaperStepGenerationWindow returns the scan window the step
// generation stage must buffer for the given shaper parameters: the
// widest pulse offset from the amplitude-weighted pulse center. It is
// pure in its arguments and recomputed on every parameter change.
func InputShaperStepGenerationWindow(shaperType ShaperType, springPeriod, dampingRatio float64) (float64, error) {
	A, T, err := shaperPulses(shaperType, springPeriod, dampingRatio)
	if err != nil {
		return 0, err
	}
	if len(A) == 0 {
		return 0, nil
	}
	var sumA, ts float64
	for i := range A {
		sumA += A[i]
		ts += A[i] * T[i]
	}
	ts /= sumA
	window := ts - T[0]
	if w := T[len(T)-1] - ts; w > window {
		window = w
	}
	return window, nil
}
