package inputshaper

import (
	"io"
	"testing"

	"github.com/nonanon1/klipper/pkg/config"
	"github.com/nonanon1/klipper/pkg/errors"
	"github.com/nonanon1/klipper/pkg/gcode"
	"github.com/nonanon1/klipper/pkg/itersolve"
	"github.com/nonanon1/klipper/pkg/kinematics"
	"github.com/nonanon1/klipper/pkg/log"
	"github.com/nonanon1/klipper/pkg/pool"
	"github.com/nonanon1/klipper/pkg/printer"
	"github.com/nonanon1/klipper/pkg/stepper"
	"github.com/nonanon1/klipper/pkg/toolhead"
)

type fixture struct {
	pr         *printer.Printer
	th         *toolhead.Toolhead
	dispatcher *gcode.Dispatcher
	shaper     *InputShaper
}

func newFixture(t *testing.T, cfgText string, kin kinematics.Kinematics) *fixture {
	t.Helper()
	logger := log.New(io.Discard, log.ERROR)
	if kin == nil {
		kin = kinematics.NewCartesian()
	}
	pr := printer.New(logger)
	th := toolhead.New(kin, logger)
	t.Cleanup(th.Close)
	if err := pr.AddObject("toolhead", th); err != nil {
		t.Fatal(err)
	}
	dispatcher := gcode.NewDispatcher(logger)

	cfg, err := config.LoadString(cfgText)
	if err != nil {
		t.Fatal(err)
	}
	sections := cfg.GetPrefixSections("input_shaper")
	if len(sections) != 1 {
		t.Fatalf("expected one input_shaper section, got %d", len(sections))
	}
	shaper, err := New(sections[0], pr, dispatcher, logger)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{pr: pr, th: th, dispatcher: dispatcher, shaper: shaper}
}

const basicConfig = `
[input_shaper stepper_x]
type: zvd
spring_period: 0.02
damping_ratio: 0.1
`

func TestConnectBindsAndAppliesConfig(t *testing.T) {
	f := newFixture(t, basicConfig, nil)
	if err := f.pr.Connect(); err != nil {
		t.Fatal(err)
	}
	dr, sp, st := f.shaper.Params()
	if dr != 0.1 || sp != 0.02 || st != itersolve.ShaperZVD {
		t.Errorf("params = %v/%v/%v", dr, sp, st)
	}
	if w := f.th.ScanWindow(); w <= 0.001 {
		t.Errorf("connect should declare a scan window, got %v", w)
	}
	status := f.shaper.GetStatus()
	defer pool.PutStatusMap(status)
	if status["bound"] != true {
		t.Error("shaper should report bound after connect")
	}
}

func TestTypeChangeFlushesExactlyOnce(t *testing.T) {
	f := newFixture(t, basicConfig, nil)
	if err := f.pr.Connect(); err != nil {
		t.Fatal(err)
	}
	before := f.th.FlushCount()
	if _, err := f.dispatcher.Dispatch("SET_INPUT_SHAPER AXIS=stepper_x TYPE=ei"); err != nil {
		t.Fatal(err)
	}
	if got := f.th.FlushCount() - before; got != 1 {
		t.Errorf("type change ZVD->EI flushed %d times, want exactly 1", got)
	}
	_, _, st := f.shaper.Params()
	if st != itersolve.ShaperEI {
		t.Errorf("shaper type = %v, want ei", st)
	}
}

func TestParamTweakDoesNotFlush(t *testing.T) {
	f := newFixture(t, basicConfig, nil)
	if err := f.pr.Connect(); err != nil {
		t.Fatal(err)
	}
	before := f.th.FlushCount()
	if _, err := f.dispatcher.Dispatch("SET_INPUT_SHAPER AXIS=stepper_x DAMPING_RATIO=0.2"); err != nil {
		t.Fatal(err)
	}
	if got := f.th.FlushCount() - before; got != 0 {
		t.Errorf("same-type damping tweak flushed %d times, want 0", got)
	}
	dr, _, _ := f.shaper.Params()
	if dr != 0.2 {
		t.Errorf("damping ratio = %v, want 0.2", dr)
	}
}

func TestUnknownShaperTypeRejected(t *testing.T) {
	f := newFixture(t, basicConfig, nil)
	if err := f.pr.Connect(); err != nil {
		t.Fatal(err)
	}
	_, err := f.dispatcher.Dispatch("SET_INPUT_SHAPER AXIS=stepper_x TYPE=bogus")
	if !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	dr, sp, st := f.shaper.Params()
	if dr != 0.1 || sp != 0.02 || st != itersolve.ShaperZVD {
		t.Errorf("rejected command changed params: %v/%v/%v", dr, sp, st)
	}
}

func TestBackendFailureKeepsPriorParams(t *testing.T) {
	f := newFixture(t, basicConfig, nil)
	if err := f.pr.Connect(); err != nil {
		t.Fatal(err)
	}
	windowBefore := f.th.ScanWindow()

	// A damping ratio of 1.0 passes parameter validation (closed
	// interval) but the backend rejects it as singular.
	_, err := f.dispatcher.Dispatch("SET_INPUT_SHAPER AXIS=stepper_x DAMPING_RATIO=1.0")
	if !errors.Is(err, errors.ErrBackendFailure) {
		t.Fatalf("expected backend failure, got %v", err)
	}
	dr, sp, st := f.shaper.Params()
	if dr != 0.1 || sp != 0.02 || st != itersolve.ShaperZVD {
		t.Errorf("failed command changed params: %v/%v/%v", dr, sp, st)
	}
	if got := f.th.ScanWindow(); got != windowBefore {
		t.Errorf("failed command changed scan window %v -> %v", windowBefore, got)
	}
}

func TestMissingStepperIsFatal(t *testing.T) {
	f := newFixture(t, "[input_shaper stepper_q]\n", nil)
	err := f.pr.Connect()
	if !errors.Is(err, errors.ErrNoMatchingAxis) {
		t.Fatalf("expected no-matching-axis error, got %v", err)
	}
	if state, _ := f.pr.State(); state != "error" {
		t.Errorf("printer state = %q, want error", state)
	}
}

// rejectingKinematics reports a stepper whose kinematics the shaper
// backend refuses to wrap.
type rejectingKinematics struct {
	steppers []*stepper.Stepper
}

func (k *rejectingKinematics) GetType() string { return "test" }
func (k *rejectingKinematics) GetSteppers() []*stepper.Stepper { return k.steppers }

func TestBindingRejectionFallsBackToOriginal(t *testing.T) {
	origSK := itersolve.NewExtruderStepperKinematics()
	s := stepper.New("stepper_x", origSK)
	kin := &rejectingKinematics{steppers: []*stepper.Stepper{s}}

	f := newFixture(t, basicConfig, kin)
	if err := f.pr.Connect(); err != nil {
		t.Fatalf("backend rejection must be non-fatal: %v", err)
	}
	if s.GetStepperKinematics() != origSK {
		t.Error("stepper should keep its original kinematics after rejection")
	}
	status := f.shaper.GetStatus()
	defer pool.PutStatusMap(status)
	if status["bound"] != false {
		t.Error("shaper should report unbound")
	}
}

func TestWindowGrowthVisibleBeforeNewSteps(t *testing.T) {
	f := newFixture(t, basicConfig, nil)
	if err := f.pr.Connect(); err != nil {
		t.Fatal(err)
	}
	f.th.GetTrapq().Append(0, 0.5, 1.0, 0.5, 0, 0, 0, 1, 0, 0, 0, 100, 1000)

	// Growing the period widens the window before the next step runs.
	if _, err := f.dispatcher.Dispatch("SET_INPUT_SHAPER AXIS=stepper_x SPRING_PERIOD=0.04"); err != nil {
		t.Fatal(err)
	}
	window := f.th.ScanWindow()
	if err := f.th.GenerateSteps(0.5); err != nil {
		t.Fatal(err)
	}
	f.th.FlushStepGeneration()

	records := f.th.StepRecords()
	if len(records) != 1 {
		t.Fatalf("expected 1 step, got %d", len(records))
	}
	if records[0].Window < window {
		t.Errorf("step generated with window %v before capacity reached %v",
			records[0].Window, window)
	}
}
