package gcode

import (
	"io"
	"testing"

	"github.com/nonanon1/klipper/pkg/errors"
	"github.com/nonanon1/klipper/pkg/log"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(log.New(io.Discard, log.ERROR))
}

func TestDispatchPlainCommand(t *testing.T) {
	d := newTestDispatcher()
	var gotSmooth float64
	err := d.RegisterCommand("SET_SMOOTH_AXIS", "Set smoothing parameters", func(cmd *Command) error {
		v, err := cmd.GetFloat("SMOOTH_X", FloatBounds{MinVal: Float(0)}, 0)
		if err != nil {
			return err
		}
		gotSmooth = v
		cmd.RespondInfo("smooth_x: %.6f", v)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	responses, err := d.Dispatch("SET_SMOOTH_AXIS SMOOTH_X=0.08")
	if err != nil {
		t.Fatal(err)
	}
	if gotSmooth != 0.08 {
		t.Errorf("handler saw smooth_x=%v, want 0.08", gotSmooth)
	}
	if len(responses) != 1 || responses[0] != "smooth_x: 0.080000" {
		t.Errorf("unexpected responses: %v", responses)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := newTestDispatcher()
	_, err := d.Dispatch("SET_BOGUS X=1")
	if !errors.Is(err, errors.ErrGCodeUnknownCmd) {
		t.Errorf("expected unknown command error, got %v", err)
	}
}

func TestMuxCommandRouting(t *testing.T) {
	d := newTestDispatcher()
	var called string
	mk := func(name string) Handler {
		return func(cmd *Command) error {
			called = name
			return nil
		}
	}
	if err := d.RegisterMuxCommand("SET_INPUT_SHAPER", "AXIS", "stepper_x", "", mk("x")); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterMuxCommand("SET_INPUT_SHAPER", "AXIS", "stepper_y", "", mk("y")); err != nil {
		t.Fatal(err)
	}

	if _, err := d.Dispatch("SET_INPUT_SHAPER AXIS=stepper_y SHAPER_TYPE=ei"); err != nil {
		t.Fatal(err)
	}
	if called != "y" {
		t.Errorf("routed to %q, want y", called)
	}

	// Without AXIS there is no default handler registered.
	_, err := d.Dispatch("SET_INPUT_SHAPER SHAPER_TYPE=ei")
	if !errors.Is(err, errors.ErrGCodeInvalidParam) {
		t.Errorf("expected invalid parameter error, got %v", err)
	}

	// An unknown AXIS value is rejected.
	_, err = d.Dispatch("SET_INPUT_SHAPER AXIS=stepper_z")
	if !errors.Is(err, errors.ErrGCodeInvalidParam) {
		t.Errorf("expected invalid parameter error, got %v", err)
	}
}

func TestMuxDefaultHandler(t *testing.T) {
	d := newTestDispatcher()
	var called string
	if err := d.RegisterMuxCommand("SET_INPUT_SHAPER", "AXIS", "stepper_x", "", func(cmd *Command) error {
		called = "x"
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterMuxCommand("SET_INPUT_SHAPER", "AXIS", "", "", func(cmd *Command) error {
		called = "default"
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := d.Dispatch("SET_INPUT_SHAPER SHAPER_TYPE=zvd"); err != nil {
		t.Fatal(err)
	}
	if called != "default" {
		t.Errorf("routed to %q, want default", called)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	d := newTestDispatcher()
	noop := func(cmd *Command) error { return nil }
	if err := d.RegisterCommand("STATUS", "", noop); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterCommand("STATUS", "", noop); err == nil {
		t.Error("duplicate registration should fail")
	}
	if err := d.RegisterMuxCommand("STATUS", "AXIS", "x", "", noop); err == nil {
		t.Error("mux registration over a plain command should fail")
	}
}

func TestGetFloatBounds(t *testing.T) {
	d := newTestDispatcher()
	errCh := make(chan error, 1)
	d.RegisterCommand("SET_INPUT_SHAPER", "", func(cmd *Command) error {
		_, err := cmd.GetFloat("DAMPING_RATIO_X", FloatBounds{MinVal: Float(0), MaxVal: Float(1)}, 0.1)
		errCh <- err
		return err
	})

	if _, err := d.Dispatch("SET_INPUT_SHAPER DAMPING_RATIO_X=1.2"); err == nil {
		t.Fatal("out-of-range parameter should fail")
	}
	if err := <-errCh; !errors.Is(err, errors.ErrGCodeInvalidParam) {
		t.Errorf("expected invalid parameter error, got %v", err)
	}

	// Closed interval: 1.0 itself passes parameter validation.
	if _, err := d.Dispatch("SET_INPUT_SHAPER DAMPING_RATIO_X=1.0"); err != nil {
		t.Errorf("damping ratio 1.0 should pass bounds validation: %v", err)
	}
	<-errCh
}

func TestParseMalformedParameter(t *testing.T) {
	d := newTestDispatcher()
	d.RegisterCommand("STATUS", "", func(cmd *Command) error { return nil })
	if _, err := d.Dispatch("STATUS garbage"); !errors.Is(err, errors.ErrGCodeParse) {
		t.Errorf("expected parse error, got %v", err)
	}
}
