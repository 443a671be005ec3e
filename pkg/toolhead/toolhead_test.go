package toolhead

import (
	"io"
	"testing"
	"time"

	"github.com/nonanon1/klipper/pkg/kinematics"
	"github.com/nonanon1/klipper/pkg/log"
	"github.com/nonanon1/klipper/pkg/pool"
)

func newTestToolhead(t *testing.T) *Toolhead {
	t.Helper()
	kin, err := kinematics.New("cartesian")
	if err != nil {
		t.Fatal(err)
	}
	th := New(kin, log.New(io.Discard, log.ERROR))
	t.Cleanup(th.Close)
	return th
}

// queueMoves buffers planner data from start covering the given span.
func queueMoves(th *Toolhead, start, span float64) {
	th.GetTrapq().Append(start, span/4, span/2, span/4,
		0, 0, 0, 1, 0, 0, 0, 100, 1000)
}

func TestScanWindowMaxPolicy(t *testing.T) {
	th := newTestToolhead(t)
	if got := th.ScanWindow(); got != sdsCheckTime {
		t.Fatalf("initial window = %v, want %v", got, sdsCheckTime)
	}

	// Two filter families declare windows; the max wins.
	th.NoteStepGenerationScanTime(0.02, 0)
	th.NoteStepGenerationScanTime(0.05, 0)
	if got := th.ScanWindow(); got != 0.05 {
		t.Errorf("window = %v, want 0.05", got)
	}

	// Shrinking one family must not drop below the other's need.
	th.NoteStepGenerationScanTime(0.01, 0.05)
	if got := th.ScanWindow(); got != 0.02 {
		t.Errorf("window after shrink = %v, want 0.02 (other family)", got)
	}

	// Removing both falls back to the minimum check interval.
	th.NoteStepGenerationScanTime(0, 0.02)
	th.NoteStepGenerationScanTime(0, 0.01)
	if got := th.ScanWindow(); got != sdsCheckTime {
		t.Errorf("window after removal = %v, want %v", got, sdsCheckTime)
	}
}

func TestFlushDrainsQueuedGeneration(t *testing.T) {
	th := newTestToolhead(t)
	queueMoves(th, 0, 2.0)

	for _, st := range []float64{0.1, 0.2, 0.3} {
		if err := th.GenerateSteps(st); err != nil {
			t.Fatal(err)
		}
	}
	th.FlushStepGeneration()

	records := th.StepRecords()
	if len(records) != 3 {
		t.Fatalf("flush returned with %d of 3 steps committed", len(records))
	}
	for i, want := range []float64{0.1, 0.2, 0.3} {
		if records[i].StepTime != want {
			t.Errorf("record %d step time = %v, want %v", i, records[i].StepTime, want)
		}
	}
}

func TestWindowGrowthOrdering(t *testing.T) {
	// Growing the window from the baseline to 0.02s must be visible
	// to the generator before any step runs under the new parameters.
	th := newTestToolhead(t)
	queueMoves(th, 0, 2.0)

	th.NoteStepGenerationScanTime(0.02, 0)
	if err := th.GenerateSteps(0.5); err != nil {
		t.Fatal(err)
	}
	th.FlushStepGeneration()

	records := th.StepRecords()
	if len(records) != 1 {
		t.Fatalf("expected 1 committed step, got %d", len(records))
	}
	if records[0].Window < 0.02 {
		t.Errorf("step generated with window %v, want >= 0.02", records[0].Window)
	}
}

func TestGenerationWaitsForPlannerCoverage(t *testing.T) {
	th := newTestToolhead(t)
	th.NoteStepGenerationScanTime(0.05, 0)

	// Planner data ends at 0.52: a step at 0.5 needs data through 0.55.
	queueMoves(th, 0, 0.52)
	if err := th.GenerateSteps(0.5); err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	if n := len(th.StepRecords()); n != 0 {
		t.Fatalf("step committed with insufficient lookahead (%d records)", n)
	}

	// Extending the buffer unblocks the generator.
	queueMoves(th, 0.52, 0.2)
	th.FlushStepGeneration()
	if n := len(th.StepRecords()); n != 1 {
		t.Errorf("expected 1 committed step after buffer extension, got %d", n)
	}
}

func TestGetStatus(t *testing.T) {
	th := newTestToolhead(t)
	queueMoves(th, 0, 1.0)
	status := th.GetStatus()
	defer pool.PutStatusMap(status)

	if status["kinematics"] != "cartesian" {
		t.Errorf("kinematics = %v", status["kinematics"])
	}
	if status["scan_window"].(float64) != sdsCheckTime {
		t.Errorf("scan_window = %v", status["scan_window"])
	}
	if status["queued_moves"].(int) != 3 {
		t.Errorf("queued_moves = %v", status["queued_moves"])
	}
}
