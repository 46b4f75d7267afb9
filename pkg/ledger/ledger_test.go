package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"climbrate/pkg/results"
)

// TestLedgerRoundTrip records a run and reads back outcomes and slopes
func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	run, err := l.StartRun(ctx, "project.cfg")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if run == "" {
		t.Fatal("Expected a run ID")
	}

	rows := []results.Row{
		{VialID: "w1118_M_1", FirstFrame: 0, LastFrame: 50, Slope: 1.25, Intercept: 3, R: 0.99, PValue: 0, StdErr: 0.01},
		{VialID: "w1118_M_2", FirstFrame: 4, LastFrame: 54, Slope: 0, Intercept: 7, R: 0.2, PValue: 0.3, StdErr: 0.5},
	}
	if err := l.RecordVideo(ctx, run, "a.h264", StatusCompleted, "", rows); err != nil {
		t.Fatalf("RecordVideo failed: %v", err)
	}
	if err := l.RecordVideo(ctx, run, "b.h264", StatusSkipped, "no spots detected", nil); err != nil {
		t.Fatalf("RecordVideo failed: %v", err)
	}
	if err := l.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	done, err := l.Completed(ctx)
	if err != nil {
		t.Fatalf("Completed failed: %v", err)
	}
	if !done["a.h264"] || done["b.h264"] {
		t.Errorf("Unexpected completion map %v", done)
	}

	got, err := l.Slopes(ctx, run, "a.h264")
	if err != nil {
		t.Fatalf("Slopes failed: %v", err)
	}
	if len(got) != 2 || got[0].VialID != "w1118_M_1" || got[1].Intercept != 7 || got[0].Slope != 1.25 {
		t.Errorf("Unexpected slopes %+v", got)
	}
}

// TestLedgerLatestOutcomeWins treats a later skip as not completed
func TestLedgerLatestOutcomeWins(t *testing.T) {
	ctx := context.Background()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	first, _ := l.StartRun(ctx, "a.cfg")
	second, _ := l.StartRun(ctx, "a.cfg")
	if first == second {
		t.Fatal("Expected distinct run IDs")
	}
	if err := l.RecordVideo(ctx, first, "v.h264", StatusCompleted, "", nil); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordVideo(ctx, second, "v.h264", StatusSkipped, "decode", nil); err != nil {
		t.Fatal(err)
	}

	done, err := l.Completed(ctx)
	if err != nil {
		t.Fatalf("Completed failed: %v", err)
	}
	if done["v.h264"] {
		t.Error("Expected the later skip to win")
	}
}
