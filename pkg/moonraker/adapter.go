// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package moonraker

import (
	"github.com/nonanon1/klipper/pkg/gcode"
	"github.com/nonanon1/klipper/pkg/pool"
	"github.com/nonanon1/klipper/pkg/printer"
)

// statusProvider is implemented by host objects that report status.
// The returned map is pooled; the adapter copies and releases it.
type statusProvider interface {
	GetStatus() map[string]any
}

// PrinterAdapter bridges the printer object registry and the command
// dispatcher to the status API.
type PrinterAdapter struct {
	printer    *printer.Printer
	dispatcher *gcode.Dispatcher
}

// NewPrinterAdapter creates the API-facing view of the host.
func NewPrinterAdapter(pr *printer.Printer, dispatcher *gcode.Dispatcher) *PrinterAdapter {
	return &PrinterAdapter{printer: pr, dispatcher: dispatcher}
}

// GetObjectsList returns the names of status-reporting host objects.
func (a *PrinterAdapter) GetObjectsList() []string {
	var names []string
	for _, name := range a.printer.ObjectNames() {
		if _, ok := a.printer.LookupObjectOptional(name).(statusProvider); ok {
			names = append(names, name)
		}
	}
	return names
}

// GetObjectStatus returns an object's status map, filtered to attrs
// when non-empty. Unknown objects return nil.
func (a *PrinterAdapter) GetObjectStatus(name string, attrs []string) map[string]any {
	obj, ok := a.printer.LookupObjectOptional(name).(statusProvider)
	if !ok {
		return nil
	}
	pooled := obj.GetStatus()
	defer pool.PutStatusMap(pooled)

	status := make(map[string]any, len(pooled))
	if len(attrs) == 0 {
		for k, v := range pooled {
			status[k] = v
		}
		return status
	}
	for _, attr := range attrs {
		if v, ok := pooled[attr]; ok {
			status[attr] = v
		}
	}
	return status
}

// ExecuteGCode dispatches a command line and returns its responses.
func (a *PrinterAdapter) ExecuteGCode(script string) ([]string, error) {
	return a.dispatcher.Dispatch(script)
}

// GetKlippyState reports the host lifecycle state.
func (a *PrinterAdapter) GetKlippyState() string {
	state, _ := a.printer.State()
	return state
}
