// Positional smoother on cartesian XY axes
//
// Copyright (C) 2019-2020  Kevin O'Connor <kevin@koconnor.net>
// Copyright (C) 2020  Dmitry Butyugin <dmbutyugin@google.com>
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package smoothaxis

import (
	"math"
	"sync"

	"github.com/nonanon1/klipper/pkg/config"
	"github.com/nonanon1/klipper/pkg/gcode"
	"github.com/nonanon1/klipper/pkg/itersolve"
	"github.com/nonanon1/klipper/pkg/log"
	"github.com/nonanon1/klipper/pkg/metrics"
	"github.com/nonanon1/klipper/pkg/pool"
	"github.com/nonanon1/klipper/pkg/printer"
	"github.com/nonanon1/klipper/pkg/toolhead"
)

// maxAccelCompensation bounds the acceleration compensation term to
// keep worst-case smoothing latency bounded.
const maxAccelCompensation = 0.005

var reconfigCounter = metrics.NewCounter("smooth_axis_reconfigurations_total",
	"Applied smooth axis reconfigurations")

func init() {
	metrics.MustRegister(reconfigCounter)
}

// SmoothAxis manages the smoother bindings across all steppers. Unlike
// the input shaper it is global: every stepper the kinematics reports
// is wrapped, and steppers that reject the wrapping are skipped.
type SmoothAxis struct {
	mu sync.Mutex

	printer  *printer.Printer
	toolhead *toolhead.Toolhead

	dampingRatioX, dampingRatioY float64
	smootherFreqX, smootherFreqY float64
	smootherVersion              int

	boundSKs []*itersolve.SmoothAxisKinematics

	logger *log.Logger
}

// New creates the smoother manager from the [smooth_axis] section and
// registers the connect handler and the SET_SMOOTH_AXIS command.
func New(section *config.Section, pr *printer.Printer, dispatcher *gcode.Dispatcher, logger *log.Logger) (*SmoothAxis, error) {
	sa := &SmoothAxis{
		printer: pr,
		logger:  logger.WithPrefix("smooth_axis"),
	}

	var err error
	sa.dampingRatioX, err = section.GetFloatWithBounds("damping_ratio_x",
		config.FloatBounds{MinVal: config.Float(0), MaxVal: config.Float(1)}, 0.)
	if err != nil {
		return nil, err
	}
	sa.dampingRatioY, err = section.GetFloatWithBounds("damping_ratio_y",
		config.FloatBounds{MinVal: config.Float(0), MaxVal: config.Float(1)}, 0.)
	if err != nil {
		return nil, err
	}
	smoothX, err := section.GetFloatWithBounds("smooth_x",
		config.FloatBounds{MinVal: config.Float(0), MaxVal: config.Float(0.200)}, 0.)
	if err != nil {
		return nil, err
	}
	smoothY, err := section.GetFloatWithBounds("smooth_y",
		config.FloatBounds{MinVal: config.Float(0), MaxVal: config.Float(0.200)}, 0.)
	if err != nil {
		return nil, err
	}
	accelCompX, err := section.GetFloatWithBounds("accel_comp_x",
		config.FloatBounds{MinVal: config.Float(0), MaxVal: config.Float(maxAccelCompensation)},
		math.Pow(3.*smoothX/(4.*math.Pi), 2))
	if err != nil {
		return nil, err
	}
	accelCompY, err := section.GetFloatWithBounds("accel_comp_y",
		config.FloatBounds{MinVal: config.Float(0), MaxVal: config.Float(maxAccelCompensation)},
		math.Pow(3.*smoothY/(4.*math.Pi), 2))
	if err != nil {
		return nil, err
	}
	sa.smootherFreqX, err = section.GetFloatWithBounds("smoother_freq_x",
		config.FloatBounds{MinVal: config.Float(0)}, derivedFreq(accelCompX))
	if err != nil {
		return nil, err
	}
	sa.smootherFreqY, err = section.GetFloatWithBounds("smoother_freq_y",
		config.FloatBounds{MinVal: config.Float(0)}, derivedFreq(accelCompY))
	if err != nil {
		return nil, err
	}
	sa.smootherVersion, err = section.GetInt("smoother_version", 1)
	if err != nil {
		return nil, err
	}
	if sa.smootherVersion != 1 && sa.smootherVersion != 2 {
		return nil, config.NewConfigError(section.GetName(), "smoother_version",
			"must be 1 or 2")
	}

	pr.RegisterEventHandler(printer.EventConnect, sa.connect)
	err = dispatcher.RegisterCommand("SET_SMOOTH_AXIS",
		"Set cartesian time smoothing parameters", sa.cmdSetSmoothAxis)
	if err != nil {
		return nil, err
	}
	return sa, nil
}

// derivedFreq maps an acceleration compensation limit to a smoother
// frequency; zero compensation means no smoothing on that axis.
func derivedFreq(accelComp float64) float64 {
	if accelComp <= 0 {
		return 0
	}
	return 1. / (2. * math.Pi * math.Sqrt(accelComp))
}

// GetName returns the config section name.
func (sa *SmoothAxis) GetName() string { return "smooth_axis" }

// connect wraps every stepper the kinematics reports and applies the
// config-time frequencies. Steppers that reject the wrapping (no
// active X/Y axes) keep their original kinematics and are skipped.
func (sa *SmoothAxis) connect() error {
	thObj, err := sa.printer.LookupObject("toolhead")
	if err != nil {
		return err
	}
	sa.toolhead = thObj.(*toolhead.Toolhead)

	for _, s := range sa.toolhead.GetKinematics().GetSteppers() {
		sk := itersolve.NewSmoothAxisKinematics()
		origSK := s.SetStepperKinematics(sk)
		if err := sk.SetSK(origSK); err != nil {
			s.SetStepperKinematics(origSK)
			sa.logger.DebugFields("stepper skipped", log.Fields{
				"stepper": s.GetName(),
				"reason":  err.Error(),
			})
			continue
		}
		s.SetTrapq(sa.toolhead.GetTrapq())
		sa.boundSKs = append(sa.boundSKs, sk)
	}

	sa.mu.Lock()
	defer sa.mu.Unlock()
	configFreqX, configFreqY := sa.smootherFreqX, sa.smootherFreqY
	sa.smootherFreqX, sa.smootherFreqY = 0., 0.
	sa.setSmoothing(configFreqX, configFreqY, sa.dampingRatioX, sa.dampingRatioY)
	return nil
}

// smoothTime returns one axis's smoothing duration for a target
// frequency under the configured smoother version.
func (sa *SmoothAxis) smoothTime(freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	if sa.smootherVersion == 2 {
		return 2. * itersolve.HalfSmoothTime(freq, 0)
	}
	return 2. / (3. * freq)
}

// setSmoothing applies new frequencies and damping ratios. The filter
// type never changes within this family, so no flush is needed: the
// scan-window transition covers both the old and new windows.
func (sa *SmoothAxis) setSmoothing(freqX, freqY, dampX, dampY float64) {
	smoothX := sa.smoothTime(freqX)
	smoothY := sa.smoothTime(freqY)
	oldDelay := math.Max(sa.smoothTime(sa.smootherFreqX), sa.smoothTime(sa.smootherFreqY)) / 2.
	newDelay := math.Max(smoothX, smoothY) / 2.
	sa.toolhead.NoteStepGenerationScanTime(newDelay, oldDelay)

	sa.smootherFreqX, sa.smootherFreqY = freqX, freqY
	sa.dampingRatioX, sa.dampingRatioY = dampX, dampY

	var accelCompX, accelCompY float64
	if freqX > 0 {
		accelCompX = 1. / math.Pow(2.*math.Pi*freqX, 2)
	}
	if freqY > 0 {
		accelCompY = 1. / math.Pow(2.*math.Pi*freqY, 2)
	}
	for _, sk := range sa.boundSKs {
		sk.SetTime(smoothX, smoothY)
		sk.SetDampingRatio(dampX, dampY)
		sk.SetAccelComp(accelCompX, accelCompY)
	}
	reconfigCounter.Inc(nil)
	sa.logger.InfoFields("smoothing parameters applied", log.Fields{
		"smoother_freq_x": freqX,
		"smoother_freq_y": freqY,
		"window":          newDelay,
		"steppers":        len(sa.boundSKs),
	})
}

func (sa *SmoothAxis) cmdSetSmoothAxis(cmd *gcode.Command) error {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	dampX, err := cmd.GetFloat("DAMPING_RATIO_X",
		gcode.FloatBounds{MinVal: gcode.Float(0), MaxVal: gcode.Float(1)},
		sa.dampingRatioX)
	if err != nil {
		return err
	}
	dampY, err := cmd.GetFloat("DAMPING_RATIO_Y",
		gcode.FloatBounds{MinVal: gcode.Float(0), MaxVal: gcode.Float(1)},
		sa.dampingRatioY)
	if err != nil {
		return err
	}
	freqX, err := cmd.GetFloat("SMOOTHER_FREQ_X",
		gcode.FloatBounds{MinVal: gcode.Float(0)}, sa.smootherFreqX)
	if err != nil {
		return err
	}
	freqY, err := cmd.GetFloat("SMOOTHER_FREQ_Y",
		gcode.FloatBounds{MinVal: gcode.Float(0)}, sa.smootherFreqY)
	if err != nil {
		return err
	}

	sa.setSmoothing(freqX, freqY, dampX, dampY)
	cmd.RespondInfo("smoother_freq_x:%.3f smoother_freq_y:%.3f "+
		"damping_ratio_x:%.6f damping_ratio_y:%.6f",
		freqX, freqY, dampX, dampY)
	return nil
}

// Frequencies returns the committed smoother frequencies.
func (sa *SmoothAxis) Frequencies() (freqX, freqY float64) {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.smootherFreqX, sa.smootherFreqY
}

// BoundSteppers returns how many steppers accepted the wrapping.
func (sa *SmoothAxis) BoundSteppers() int {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return len(sa.boundSKs)
}

// GetStatus reports the smoother state. Callers release the map with
// pool.PutStatusMap.
func (sa *SmoothAxis) GetStatus() map[string]any {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	status := pool.GetStatusMap()
	status["smoother_freq_x"] = sa.smootherFreqX
	status["smoother_freq_y"] = sa.smootherFreqY
	status["damping_ratio_x"] = sa.dampingRatioX
	status["damping_ratio_y"] = sa.dampingRatioY
	status["smoother_version"] = sa.smootherVersion
	status["bound_steppers"] = len(sa.boundSKs)
	return status
}
