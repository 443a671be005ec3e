// Kinematic input shaper to minimize motion vibrations in XY plane
//
// Copyright (C) 2019-2020  Kevin O'Connor <kevin@koconnor.net>
// Copyright (C) 2020  Dmitry Butyugin <dmbutyugin@google.com>
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package inputshaper

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nonanon1/klipper/pkg/config"
	"github.com/nonanon1/klipper/pkg/errors"
	"github.com/nonanon1/klipper/pkg/gcode"
	"github.com/nonanon1/klipper/pkg/itersolve"
	"github.com/nonanon1/klipper/pkg/log"
	"github.com/nonanon1/klipper/pkg/metrics"
	"github.com/nonanon1/klipper/pkg/pool"
	"github.com/nonanon1/klipper/pkg/printer"
	"github.com/nonanon1/klipper/pkg/stepper"
	"github.com/nonanon1/klipper/pkg/toolhead"
)

var reconfigCounter = metrics.NewCounter("input_shaper_reconfigurations_total",
	"Applied input shaper reconfigurations")

func init() {
	metrics.MustRegister(reconfigCounter)
}

// InputShaper manages the shaper binding for one stepper. The config
// section name carries the stepper to bind ("input_shaper stepper_x");
// only that stepper is wrapped, and its absence is a fatal
// configuration error.
type InputShaper struct {
	mu sync.Mutex

	printer     *printer.Printer
	toolhead    *toolhead.Toolhead
	sectionName string
	name        string

	sk     *itersolve.InputShaperKinematics
	origSK itersolve.StepperKinematics

	dampingRatio float64
	springPeriod float64
	shaperType   itersolve.ShaperType

	oldDelay float64
	logger   *log.Logger
}

// New creates the shaper manager from its config section and registers
// the connect handler and the SET_INPUT_SHAPER mux command.
func New(section *config.Section, pr *printer.Printer, dispatcher *gcode.Dispatcher, logger *log.Logger) (*InputShaper, error) {
	sectionName := section.GetName()
	parts := strings.SplitN(sectionName, " ", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, config.NewConfigError(sectionName, "",
			"section must name a stepper, e.g. [input_shaper stepper_x]")
	}
	is := &InputShaper{
		printer:     pr,
		sectionName: sectionName,
		name:        parts[1],
		logger:      logger.WithPrefix("input_shaper"),
	}

	var err error
	is.dampingRatio, err = section.GetFloatWithBounds("damping_ratio",
		config.FloatBounds{MinVal: config.Float(0), MaxVal: config.Float(1)}, 0.)
	if err != nil {
		return nil, err
	}
	is.springPeriod, err = section.GetFloatWithBounds("spring_period",
		config.FloatBounds{MinVal: config.Float(0)}, 0.)
	if err != nil {
		return nil, err
	}
	typeStr, err := section.GetChoice("type", shaperTypeNames(), string(itersolve.ShaperZVD))
	if err != nil {
		return nil, err
	}
	is.shaperType = itersolve.ShaperType(typeStr)

	pr.RegisterEventHandler(printer.EventConnect, is.connect)
	err = dispatcher.RegisterMuxCommand("SET_INPUT_SHAPER", "AXIS", is.name,
		"Set cartesian parameters for input shaper", is.cmdSetInputShaper)
	if err != nil {
		return nil, err
	}
	return is, nil
}

func shaperTypeNames() []string {
	names := make([]string, len(itersolve.ShaperTypes))
	for i, st := range itersolve.ShaperTypes {
		names[i] = string(st)
	}
	return names
}

// GetName returns the config section name.
func (is *InputShaper) GetName() string { return is.sectionName }

// connect binds the matching stepper and applies the config-time
// parameters. It runs on klippy:connect.
func (is *InputShaper) connect() error {
	thObj, err := is.printer.LookupObject("toolhead")
	if err != nil {
		return err
	}
	is.toolhead = thObj.(*toolhead.Toolhead)

	matched := false
	for _, s := range is.toolhead.GetKinematics().GetSteppers() {
		if s.GetName() != is.name {
			continue
		}
		matched = true
		if err := is.attach(s); err != nil {
			// Backend rejection is non-fatal: the axis runs unfiltered.
			is.logger.WarnFields("stepper binding rejected", log.Fields{
				"stepper": s.GetName(),
				"error":   err.Error(),
			})
		}
	}
	if !matched {
		return errors.NoMatchingAxisError(is.name)
	}

	is.mu.Lock()
	defer is.mu.Unlock()
	is.oldDelay = 0.
	return is.setInputShaper(is.dampingRatio, is.springPeriod, is.shaperType)
}

// attach wraps the stepper's kinematics. On backend rejection the
// original kinematics is restored and the stepper runs unfiltered.
func (is *InputShaper) attach(s *stepper.Stepper) error {
	sk := itersolve.NewInputShaperKinematics()
	origSK := s.SetStepperKinematics(sk)
	if err := sk.SetSK(origSK); err != nil {
		s.SetStepperKinematics(origSK)
		return errors.BindingRejectedError(s.GetName(), err)
	}
	s.SetTrapq(is.toolhead.GetTrapq())
	is.sk = sk
	is.origSK = origSK
	return nil
}

// setInputShaper applies a validated parameter set. A filter type
// change flushes queued step generation first; a parameter tweak
// within the same type relies on the scan-window transition covering
// both old and new windows. On backend failure the previous
// parameters stay committed.
func (is *InputShaper) setInputShaper(dampingRatio, springPeriod float64, shaperType itersolve.ShaperType) error {
	newDelay, err := itersolve.InputShaperStepGenerationWindow(
		shaperType, springPeriod, dampingRatio)
	if err != nil {
		return errors.BackendFailureError(
			fmt.Sprintf("computing %s generation window", shaperType), err)
	}

	if is.sk == nil {
		// Binding was rejected at connect; the axis runs unfiltered
		// and contributes no lookahead requirement.
		is.dampingRatio = dampingRatio
		is.springPeriod = springPeriod
		is.shaperType = shaperType
		return nil
	}

	if shaperType != is.shaperType {
		is.toolhead.FlushStepGeneration()
	}
	is.toolhead.NoteStepGenerationScanTime(newDelay, is.oldDelay)

	if err := is.sk.SetShaperParams(springPeriod, dampingRatio, shaperType); err != nil {
		is.toolhead.NoteStepGenerationScanTime(is.oldDelay, newDelay)
		return errors.BackendFailureError("applying shaper parameters", err)
	}

	is.dampingRatio = dampingRatio
	is.springPeriod = springPeriod
	is.shaperType = shaperType
	is.oldDelay = newDelay
	reconfigCounter.Inc(metrics.Labels{"axis": is.name})
	is.logger.InfoFields("shaper parameters applied", log.Fields{
		"axis":          is.name,
		"shaper_type":   string(shaperType),
		"spring_period": springPeriod,
		"damping_ratio": dampingRatio,
		"window":        newDelay,
	})
	return nil
}

func (is *InputShaper) cmdSetInputShaper(cmd *gcode.Command) error {
	is.mu.Lock()
	defer is.mu.Unlock()

	dampingRatio, err := cmd.GetFloat("DAMPING_RATIO",
		gcode.FloatBounds{MinVal: gcode.Float(0), MaxVal: gcode.Float(1)},
		is.dampingRatio)
	if err != nil {
		return err
	}
	springPeriod, err := cmd.GetFloat("SPRING_PERIOD",
		gcode.FloatBounds{MinVal: gcode.Float(0)}, is.springPeriod)
	if err != nil {
		return err
	}
	shaperType := is.shaperType
	if cmd.HasParam("TYPE") {
		typeStr, err := cmd.Get("TYPE")
		if err != nil {
			return err
		}
		typeStr = strings.ToLower(typeStr)
		if !itersolve.IsShaperType(itersolve.ShaperType(typeStr)) {
			return errors.ValidationError("TYPE",
				fmt.Sprintf("requested shaper type '%s' is not supported", typeStr))
		}
		shaperType = itersolve.ShaperType(typeStr)
	}

	if err := is.setInputShaper(dampingRatio, springPeriod, shaperType); err != nil {
		return err
	}
	cmd.RespondInfo("damping_ratio:%.9f spring_period:%.9f shaper_type: %s",
		dampingRatio, springPeriod, shaperType)
	return nil
}

// Params returns the committed shaper parameters.
func (is *InputShaper) Params() (dampingRatio, springPeriod float64, shaperType itersolve.ShaperType) {
	is.mu.Lock()
	defer is.mu.Unlock()
	return is.dampingRatio, is.springPeriod, is.shaperType
}

// GetStatus reports the shaper state. Callers release the map with
// pool.PutStatusMap.
func (is *InputShaper) GetStatus() map[string]any {
	is.mu.Lock()
	defer is.mu.Unlock()
	status := pool.GetStatusMap()
	status["axis"] = is.name
	status["shaper_type"] = string(is.shaperType)
	status["spring_period"] = is.springPeriod
	status["damping_ratio"] = is.dampingRatio
	status["window"] = is.oldDelay
	status["bound"] = is.sk != nil
	return status
}
