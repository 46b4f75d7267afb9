package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"climbrate/internal/log"
	"climbrate/pkg/ledger"
	"climbrate/pkg/naming"
	"climbrate/pkg/results"
)

// Mode selects which videos a batch processes
type Mode int

const (
	// ModeAll processes every video under the project directory
	ModeAll Mode = iota

	// ModeUndone processes videos without a slopes table
	ModeUndone

	// ModeCustom processes the videos listed in a .prc file
	ModeCustom
)

// Batch log file names, under the project's log directory
const (
	LogDir       = "log"
	CompletedLog = "completed.log"
	SkippedLog   = "skipped.log"
)

// BatchParams configures a batch run
type BatchParams struct {
	Params

	Mode Mode

	// ProcessList is the .prc file read in ModeCustom
	ProcessList string

	// Workers is the number of videos processed at once
	Workers int

	// Concat writes the project-level results table at the end
	Concat bool
}

// Summary reports a finished batch
type Summary struct {
	// Outcomes are in file order
	Outcomes []Outcome

	// Missing lists .prc entries that are not files
	Missing []string

	RunID       string
	ResultsPath string
	Merged      int
}

// Completed returns the videos that produced a slopes table
func (s Summary) Completed() []string {
	var out []string
	for _, o := range s.Outcomes {
		if o.Status == Success {
			out = append(out, o.Video)
		}
	}
	return out
}

// Skipped returns the outcomes of the videos that were skipped
func (s Summary) Skipped() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Status == Skipped {
			out = append(out, o)
		}
	}
	return out
}

// Batch processes many videos with one configuration
type Batch struct {
	params *BatchParams
	ledger *ledger.Ledger
}

// NewBatch creates a batch driver
func NewBatch(params *BatchParams) *Batch {
	return &Batch{params: params}
}

// Run validates the configuration, processes every selected video and
// writes the batch logs. Video failures are recorded, never returned.
func (b *Batch) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	cfg := b.params.Config

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warnw("configuration corrected", "key", w.Key, "detail", w.Msg)
	}
	if err != nil {
		return summary, err
	}

	if cfg.LedgerPath != "" {
		b.ledger, err = ledger.Open(b.projectPath(cfg.LedgerPath))
		if err != nil {
			return summary, err
		}
		defer b.ledger.Close()

		summary.RunID, err = b.ledger.StartRun(ctx, b.params.ConfigPath)
		if err != nil {
			return summary, err
		}
	}

	videos, missing, err := b.Files(ctx)
	if err != nil {
		return summary, err
	}
	summary.Missing = missing
	for _, m := range missing {
		log.Warnw("listed video not found", "path", m)
	}
	log.Infof("Processing %d video(s) with %d worker(s)", len(videos), b.workers())

	logs, err := b.createLogs()
	if err != nil {
		return summary, err
	}
	defer logs.close()

	summary.Outcomes = b.processInParallel(ctx, videos, func(o Outcome) {
		if err := logs.record(o); err != nil {
			log.Errorw("failed to update batch log", "video", o.Video, "error", err)
		}
		b.recordLedger(ctx, summary.RunID, o)
	})

	if b.params.Concat {
		summary.ResultsPath = filepath.Join(cfg.PathProject, naming.ResultsFile)
		summary.Merged, err = results.Concat(cfg.PathProject, summary.ResultsPath)
		if err != nil {
			return summary, fmt.Errorf("failed to concatenate results: %w", err)
		}
		log.Infow("results concatenated", "path", summary.ResultsPath, "tables", summary.Merged)
	}

	if b.ledger != nil {
		if err := b.ledger.FinishRun(ctx, summary.RunID); err != nil {
			return summary, err
		}
	}
	return summary, ctx.Err()
}

// Files returns the videos selected by the batch mode and, for a custom
// list, the entries that are not files.
func (b *Batch) Files(ctx context.Context) (videos, missing []string, err error) {
	cfg := b.params.Config

	switch b.params.Mode {
	case ModeAll:
		videos, err = naming.FindVideos(cfg.PathProject, cfg.FileSuffix)
	case ModeUndone:
		if b.ledger == nil {
			videos, err = naming.Undone(cfg.PathProject, cfg.FileSuffix)
			break
		}
		videos, err = b.undoneFromLedger(ctx)
	case ModeCustom:
		videos, missing, err = naming.ReadProcessList(b.params.ProcessList)
	default:
		err = fmt.Errorf("unknown batch mode %d", b.params.Mode)
	}
	return videos, missing, err
}

func (b *Batch) undoneFromLedger(ctx context.Context) ([]string, error) {
	cfg := b.params.Config
	all, err := naming.FindVideos(cfg.PathProject, cfg.FileSuffix)
	if err != nil {
		return nil, err
	}
	done, err := b.ledger.Completed(ctx)
	if err != nil {
		return nil, err
	}

	var todo []string
	for _, v := range all {
		if !done[v] {
			todo = append(todo, v)
		}
	}
	return todo, nil
}

// processInParallel runs one detector per worker. Outcomes are handed to
// record as they arrive and returned in file order.
func (b *Batch) processInParallel(ctx context.Context, videos []string, record func(Outcome)) []Outcome {
	type processingResult struct {
		index   int
		outcome Outcome
	}

	jobs := make(chan int)
	resultChan := make(chan processingResult, len(videos))

	workers := b.workers()
	for w := 0; w < workers; w++ {
		go func() {
			detector := NewDetector(&b.params.Params)
			for i := range jobs {
				resultChan <- processingResult{index: i, outcome: detector.Process(videos[i])}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range videos {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	outcomes := make([]Outcome, len(videos))
	received := make([]bool, len(videos))
	completedTasks := 0
	for completedTasks < len(videos) {
		select {
		case res := <-resultChan:
			outcomes[res.index] = res.outcome
			received[res.index] = true
			completedTasks++
			record(res.outcome)
			log.Infof("Progress: %d/%d videos", completedTasks, len(videos))
		case <-ctx.Done():
			return collectReceived(outcomes, received)
		}
	}
	return outcomes
}

func collectReceived(outcomes []Outcome, received []bool) []Outcome {
	var out []Outcome
	for i, ok := range received {
		if ok {
			out = append(out, outcomes[i])
		}
	}
	return out
}

func (b *Batch) recordLedger(ctx context.Context, runID string, o Outcome) {
	if b.ledger == nil {
		return
	}
	status, reason := ledger.StatusCompleted, ""
	if o.Status == Skipped {
		status = ledger.StatusSkipped
		reason = o.Reason.Error()
	}
	if err := b.ledger.RecordVideo(ctx, runID, o.Video, status, reason, o.Slopes.Rows); err != nil {
		log.Errorw("failed to update ledger", "video", o.Video, "error", err)
	}
}

func (b *Batch) workers() int {
	if b.params.Workers < 1 {
		return 1
	}
	return b.params.Workers
}

// projectPath resolves a relative path against the project directory
func (b *Batch) projectPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.params.Config.PathProject, p)
}

// batchLogs holds the completed and skipped log files
type batchLogs struct {
	completed *os.File
	skipped   *os.File
}

// createLogs truncates both logs and writes their header
func (b *Batch) createLogs() (*batchLogs, error) {
	dir := filepath.Join(b.params.Config.PathProject, LogDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	stamp := time.Now().Format(time.ANSIC)
	open := func(name, kind string) (*os.File, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", name, err)
		}
		_, err = fmt.Fprintf(f, "## climbrate ##\n##\n## Generated from configuration file: %s\n## Run on %s\n##\n## Files %s:\n",
			b.params.ConfigPath, stamp, kind)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		return f, nil
	}

	logs := &batchLogs{}
	var err error
	if logs.completed, err = open(CompletedLog, "completed"); err != nil {
		return nil, err
	}
	if logs.skipped, err = open(SkippedLog, "skipped"); err != nil {
		logs.completed.Close()
		return nil, err
	}
	return logs, nil
}

func (l *batchLogs) record(o Outcome) error {
	f := l.completed
	if o.Status == Skipped {
		f = l.skipped
	}
	_, err := fmt.Fprintln(f, o.Video)
	return err
}

func (l *batchLogs) close() {
	l.completed.Close()
	l.skipped.Close()
}
