// Trapezoidal move queue - native rendition of klippy/chelper trapq
//
// Copyright (C) 2019-2020  Kevin O'Connor <kevin@koconnor.net>
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package itersolve

import "sync"

// Move is one trapezoidal velocity segment on the queue.
type Move struct {
	PrintTime float64
	MoveT     float64
	StartPos  [3]float64
	AxesR     [3]float64
	StartV    float64
	CruiseV   float64
	Accel     float64
}

// TrapQ holds the planner's committed trapezoidal moves. It is the
// per-toolhead source the step generation stage scans; acausal filters
// read moves both before and after the step time being solved.
type TrapQ struct {
	mu    sync.Mutex
	moves []Move
}

// NewTrapQ creates an empty trapezoid queue.
func NewTrapQ() *TrapQ {
	return &TrapQ{}
}

// Append adds a planned move. The accel/cruise/decel phases are appended
// as separate segments, matching the C trapq_append contract.
func (tq *TrapQ) Append(printTime, accelT, cruiseT, decelT float64,
	x, y, z, axisRx, axisRy, axisRz float64,
	startV, cruiseV, accel float64) {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	pos := [3]float64{x, y, z}
	axesR := [3]float64{axisRx, axisRy, axisRz}
	if accelT > 0 {
		tq.moves = append(tq.moves, Move{
			PrintTime: printTime, MoveT: accelT, StartPos: pos, AxesR: axesR,
			StartV: startV, CruiseV: cruiseV, Accel: accel,
		})
		dist := (startV + 0.5*accel*accelT) * accelT
		for i := range pos {
			pos[i] += axesR[i] * dist
		}
		printTime += accelT
	}
	if cruiseT > 0 {
		tq.moves = append(tq.moves, Move{
			PrintTime: printTime, MoveT: cruiseT, StartPos: pos, AxesR: axesR,
			StartV: cruiseV, CruiseV: cruiseV,
		})
		dist := cruiseV * cruiseT
		for i := range pos {
			pos[i] += axesR[i] * dist
		}
		printTime += cruiseT
	}
	if decelT > 0 {
		tq.moves = append(tq.moves, Move{
			PrintTime: printTime, MoveT: decelT, StartPos: pos, AxesR: axesR,
			StartV: cruiseV, CruiseV: cruiseV, Accel: -accel,
		})
	}
}

// NextMoveTime returns the print time just past the last queued move,
// or 0 when the queue is empty.
func (tq *TrapQ) NextMoveTime() float64 {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	if len(tq.moves) == 0 {
		return 0
	}
	last := tq.moves[len(tq.moves)-1]
	return last.PrintTime + last.MoveT
}

// FinalizeMoves expires moves fully generated before freeTime.
func (tq *TrapQ) FinalizeMoves(freeTime float64) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	n := 0
	for _, m := range tq.moves {
		if m.PrintTime+m.MoveT >= freeTime {
			tq.moves[n] = m
			n++
		}
	}
	tq.moves = tq.moves[:n]
}

// MoveCount returns the number of queued segments.
func (tq *TrapQ) MoveCount() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return len(tq.moves)
}
