package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"climbrate/internal/log"
	"climbrate/pkg/config"
	"climbrate/pkg/locate"
	"climbrate/pkg/pipeline"
	"climbrate/pkg/video"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "Path to the project configuration (.cfg, .yaml)")
	processAll := flag.Bool("process-all", false, "Process every video under path_project")
	processUndone := flag.Bool("process-undone", false, "Process videos without a .slopes.csv file")
	processCustom := flag.String("process-custom", "", "Process the videos listed in a .prc file")
	noConcat := flag.Bool("no-concat", false, "Do not write the project-level results.csv")
	optimizationPlots := flag.Bool("optimization-plots", false, "Also save processed, spot check and ROI images")
	workers := flag.Int("workers", runtime.NumCPU(), "Number of videos processed at once")
	maxFrames := flag.Int("max-frames", 0, "Stop decoding after this many frames (0 = all)")
	initConfig := flag.String("init-config", "", "Write a default configuration to this path and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration saved to: %s\n", *initConfig)
		return
	}

	if *configPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	mode, err := selectMode(*processAll, *processUndone, *processCustom)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(1)
	}
	if mode == pipeline.ModeCustom && !strings.HasSuffix(*processCustom, ".prc") {
		log.Fatalf("Custom file list %s lacks the .prc suffix", *processCustom)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("CLIMBRATE: CLIMBING VELOCITY FROM NEGATIVE GEOTAXIS VIDEOS")
	fmt.Println("================================")
	fmt.Printf("Configuration: %s\n", *configPath)
	fmt.Printf("Project:       %s\n", cfg.PathProject)

	decoder := video.NewDecoder()
	decoder.MaxFrames = *maxFrames

	batch := pipeline.NewBatch(&pipeline.BatchParams{
		Params: pipeline.Params{
			Config:            cfg,
			ConfigPath:        *configPath,
			Decoder:           decoder,
			Finder:            locate.New(),
			OptimizationPlots: *optimizationPlots,
		},
		Mode:        mode,
		ProcessList: *processCustom,
		Workers:     *workers,
		Concat:      !*noConcat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()
	summary, err := batch.Run(ctx)
	processingTime := time.Since(startTime)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}

	completed, skipped := summary.Completed(), summary.Skipped()
	fmt.Printf("\nVideo processing complete in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Total videos: %d\n", len(summary.Outcomes))
	fmt.Printf("- Completed:  %d\n", len(completed))
	fmt.Printf("- Skipped:    %d\n", len(skipped))
	for _, o := range skipped {
		fmt.Printf("    %s: %v\n", o.Video, o.Reason)
	}
	if len(summary.Missing) > 0 {
		fmt.Printf("- Not found:  %d\n", len(summary.Missing))
	}
	if summary.ResultsPath != "" {
		fmt.Printf("Results from %d video(s) saved to: %s\n", summary.Merged, summary.ResultsPath)
	}
	if summary.RunID != "" {
		fmt.Printf("Ledger run: %s\n", summary.RunID)
	}
}

// selectMode requires exactly one processing mode
func selectMode(all, undone bool, custom string) (pipeline.Mode, error) {
	count := 0
	mode := pipeline.ModeAll
	if all {
		count++
	}
	if undone {
		count++
		mode = pipeline.ModeUndone
	}
	if custom != "" {
		count++
		mode = pipeline.ModeCustom
	}
	if count != 1 {
		return mode, fmt.Errorf("choose exactly one of -process-all, -process-undone or -process-custom")
	}
	return mode, nil
}
