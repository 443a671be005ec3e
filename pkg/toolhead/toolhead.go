// Package toolhead schedules step generation against buffered planner
// data. It owns the scan-window state: the maximum lookahead span any
// active motion filter requires before a step time may be computed.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package toolhead

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nonanon1/klipper/pkg/itersolve"
	"github.com/nonanon1/klipper/pkg/kinematics"
	"github.com/nonanon1/klipper/pkg/log"
	"github.com/nonanon1/klipper/pkg/metrics"
	"github.com/nonanon1/klipper/pkg/pool"
)

// sdsCheckTime is the minimum scan window kept even with no filters
// bound, covering the smooth-stop safety check interval.
const sdsCheckTime = 0.001

var (
	flushCounter = metrics.NewCounter("toolhead_flushes_total",
		"Completed step generation flushes")
	scanWindowGauge = metrics.NewGauge("toolhead_scan_window_seconds",
		"Current effective step generation scan window")
	flushDuration = metrics.NewHistogram("toolhead_flush_duration_seconds",
		"Time spent draining queued step generation",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1})
)

func init() {
	metrics.MustRegister(flushCounter)
	metrics.MustRegister(scanWindowGauge)
	metrics.MustRegister(flushDuration)
}

// StepRecord is one executed step generation, with the scan window the
// generator held when it ran.
type StepRecord struct {
	StepTime float64
	Window   float64
}

type genJob struct {
	stepTime  float64
	flushDone chan struct{}
}

// Toolhead drives step generation for all steppers of the machine's
// kinematics from a shared trapezoidal move queue.
type Toolhead struct {
	kin   kinematics.Kinematics
	trapq *itersolve.TrapQ

	// Scan-window state. scanWindows holds the per-family declared
	// windows; scanWindow is their max (never below sdsCheckTime).
	scanMu      sync.Mutex
	scanWindows []float64
	scanWindow  float64

	genCh   chan genJob
	stopCh  chan struct{}
	wg      sync.WaitGroup
	flushes uint64

	recMu        sync.Mutex
	records      []StepRecord
	lastStepTime float64

	startClock float64
	logger     *log.Logger
}

// New creates a toolhead, assigns the shared move queue to every
// stepper and starts the step generation worker.
func New(kin kinematics.Kinematics, logger *log.Logger) *Toolhead {
	th := &Toolhead{
		kin:        kin,
		trapq:      itersolve.NewTrapQ(),
		scanWindow: sdsCheckTime,
		genCh:      make(chan genJob, 64),
		stopCh:     make(chan struct{}),
		startClock: monotonic(),
		logger:     logger.WithPrefix("toolhead"),
	}
	for _, s := range kin.GetSteppers() {
		s.SetTrapq(th.trapq)
	}
	scanWindowGauge.Set(nil, th.scanWindow)
	th.wg.Add(1)
	go th.stepGenerator()
	return th
}

// GetKinematics returns the machine kinematics.
func (th *Toolhead) GetKinematics() kinematics.Kinematics { return th.kin }

// GetTrapq returns the shared trapezoidal move queue.
func (th *Toolhead) GetTrapq() *itersolve.TrapQ { return th.trapq }

// NoteStepGenerationScanTime replaces one filter family's declared
// scan window. The new window is added before the old one is removed
// so the effective maximum covers both ends of the transition; the
// caller must apply its new filter parameters only after this returns.
func (th *Toolhead) NoteStepGenerationScanTime(newDelay, oldDelay float64) {
	th.scanMu.Lock()
	defer th.scanMu.Unlock()

	if newDelay > 0 {
		th.scanWindows = append(th.scanWindows, newDelay)
	}
	if oldDelay > 0 {
		for i, w := range th.scanWindows {
			if w == oldDelay {
				th.scanWindows = append(th.scanWindows[:i], th.scanWindows[i+1:]...)
				break
			}
		}
	}
	window := sdsCheckTime
	for _, w := range th.scanWindows {
		if w > window {
			window = w
		}
	}
	th.scanWindow = window
	scanWindowGauge.Set(nil, window)
	th.logger.DebugFields("scan window updated", log.Fields{
		"window": window,
		"new":    newDelay,
		"old":    oldDelay,
	})
}

// ScanWindow returns the effective lookahead requirement.
func (th *Toolhead) ScanWindow() float64 {
	th.scanMu.Lock()
	defer th.scanMu.Unlock()
	return th.scanWindow
}

// FlushStepGeneration blocks until every step generation queued before
// the call has been committed, then expires consumed planner data.
func (th *Toolhead) FlushStepGeneration() {
	done := make(chan struct{})
	stop := flushDuration.Timer(nil)
	select {
	case th.genCh <- genJob{flushDone: done}:
		<-done
	case <-th.stopCh:
	}
	stop()
	atomic.AddUint64(&th.flushes, 1)
	flushCounter.Inc(nil)
}

// FlushCount returns the number of completed flushes.
func (th *Toolhead) FlushCount() uint64 {
	return atomic.LoadUint64(&th.flushes)
}

// GenerateSteps queues step generation for a step time. The worker
// will not commit the step until planner data covers the full scan
// window beyond it.
func (th *Toolhead) GenerateSteps(stepTime float64) error {
	select {
	case th.genCh <- genJob{stepTime: stepTime}:
		return nil
	case <-th.stopCh:
		return fmt.Errorf("toolhead: step generation stopped")
	}
}

func (th *Toolhead) stepGenerator() {
	defer th.wg.Done()
	for {
		select {
		case job := <-th.genCh:
			if job.flushDone != nil {
				th.recMu.Lock()
				last := th.lastStepTime
				th.recMu.Unlock()
				th.trapq.FinalizeMoves(last)
				close(job.flushDone)
				continue
			}
			th.runJob(job)
		case <-th.stopCh:
			return
		}
	}
}

// runJob commits one step generation once enough planner data is
// buffered for the window in force.
func (th *Toolhead) runJob(job genJob) {
	for {
		window := th.ScanWindow()
		if th.trapq.NextMoveTime() >= job.stepTime+window {
			th.recMu.Lock()
			th.records = append(th.records, StepRecord{
				StepTime: job.stepTime,
				Window:   window,
			})
			if job.stepTime > th.lastStepTime {
				th.lastStepTime = job.stepTime
			}
			th.recMu.Unlock()
			return
		}
		select {
		case <-th.stopCh:
			return
		case <-time.After(100 * time.Microsecond):
		}
	}
}

// StepRecords returns a copy of the committed step generations.
func (th *Toolhead) StepRecords() []StepRecord {
	th.recMu.Lock()
	defer th.recMu.Unlock()
	out := make([]StepRecord, len(th.records))
	copy(out, th.records)
	return out
}

// MonotonicTime returns seconds since toolhead creation on the
// monotonic clock.
func (th *Toolhead) MonotonicTime() float64 {
	return monotonic() - th.startClock
}

// GetStatus reports toolhead state. The returned map comes from the
// status pool; callers release it with pool.PutStatusMap.
func (th *Toolhead) GetStatus() map[string]any {
	th.recMu.Lock()
	steps := len(th.records)
	last := th.lastStepTime
	th.recMu.Unlock()

	status := pool.GetStatusMap()
	status["kinematics"] = th.kin.GetType()
	status["scan_window"] = th.ScanWindow()
	status["queued_moves"] = th.trapq.MoveCount()
	status["generated_steps"] = steps
	status["last_step_time"] = last
	status["uptime"] = th.MonotonicTime()
	return status
}

// Close stops the step generation worker.
func (th *Toolhead) Close() {
	close(th.stopCh)
	th.wg.Wait()
}
