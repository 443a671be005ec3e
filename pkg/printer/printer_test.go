package printer

import (
	"fmt"
	"io"
	"testing"

	"github.com/nonanon1/klipper/pkg/log"
)

func newTestPrinter() *Printer {
	return New(log.New(io.Discard, log.ERROR))
}

func TestObjectRegistry(t *testing.T) {
	p := newTestPrinter()
	if err := p.AddObject("toolhead", "th"); err != nil {
		t.Fatal(err)
	}
	if err := p.AddObject("toolhead", "dup"); err == nil {
		t.Error("duplicate object name should fail")
	}
	obj, err := p.LookupObject("toolhead")
	if err != nil {
		t.Fatal(err)
	}
	if obj != "th" {
		t.Errorf("lookup returned %v", obj)
	}
	if _, err := p.LookupObject("missing"); err == nil {
		t.Error("missing object should error")
	}
	if p.LookupObjectOptional("missing") != nil {
		t.Error("optional lookup of missing object should be nil")
	}
}

func TestConnectEventOrderAndState(t *testing.T) {
	p := newTestPrinter()
	var order []string
	p.RegisterEventHandler(EventConnect, func() error {
		order = append(order, "first")
		return nil
	})
	p.RegisterEventHandler(EventConnect, func() error {
		order = append(order, "second")
		return nil
	})
	p.RegisterEventHandler(EventReady, func() error {
		order = append(order, "ready")
		return nil
	})

	if err := p.Connect(); err != nil {
		t.Fatal(err)
	}
	want := []string{"first", "second", "ready"}
	if len(order) != len(want) {
		t.Fatalf("handler order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("handler order %v, want %v", order, want)
		}
	}
	state, _ := p.State()
	if state != "ready" {
		t.Errorf("state = %q, want ready", state)
	}
}

func TestConnectHandlerFailureAborts(t *testing.T) {
	p := newTestPrinter()
	var secondRan bool
	p.RegisterEventHandler(EventConnect, func() error {
		return fmt.Errorf("no matching stepper 'stepper_q' found")
	})
	p.RegisterEventHandler(EventConnect, func() error {
		secondRan = true
		return nil
	})

	if err := p.Connect(); err == nil {
		t.Fatal("connect should propagate handler failure")
	}
	if secondRan {
		t.Error("handlers after a failure should not run")
	}
	state, msg := p.State()
	if state != "error" {
		t.Errorf("state = %q, want error", state)
	}
	if msg == "" {
		t.Error("error state should carry the failure message")
	}
}
