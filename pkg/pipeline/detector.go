// Package pipeline runs the detection pipeline on one video and drives it
// over a batch of videos.
package pipeline

import (
	"errors"
	"fmt"
	"image"

	"climbrate/internal/log"
	"climbrate/internal/models"
	"climbrate/pkg/background"
	"climbrate/pkg/config"
	"climbrate/pkg/frames"
	"climbrate/pkg/naming"
	"climbrate/pkg/regression"
	"climbrate/pkg/results"
	"climbrate/pkg/spots"
	"climbrate/pkg/vials"
	"climbrate/pkg/visualization"
)

// Status is the result of processing one video
type Status int

const (
	// Success means the slopes table was written
	Success Status = iota

	// Skipped means a terminal error stopped the video
	Skipped
)

func (s Status) String() string {
	if s == Success {
		return "completed"
	}
	return "skipped"
}

// Outcome reports what happened to one video
type Outcome struct {
	Video  string
	Status Status

	// Reason is the terminal error of a skipped video
	Reason error

	Slopes results.Table
}

// Params holds what every video of a project shares
type Params struct {
	// Config is validated once and copied for every video
	Config *config.Config

	// ConfigPath is recorded in the batch logs
	ConfigPath string

	Decoder frames.Decoder
	Finder  spots.Finder

	// OptimizationPlots adds the processed, spot check and ROI images
	OptimizationPlots bool
}

// Detector measures climbing velocity in one video at a time.
//
// Processing follows these steps:
// 1. Decode, crop, convert to grayscale and subtract the background
// 2. Detect spots and classify them as organisms or noise
// 3. Trim outliers, bin spots into vials and save the raw table
// 4. Keep the organisms, measure height upwards and save the filtered table
// 5. Find the most linear window per vial and for all vials together
// 6. Draw the diagnostic imagery
// 7. Assemble and save the slopes table
type Detector struct {
	params *Params

	// per-video state, replaced by every Process call
	cfg        config.Config
	paths      naming.Paths
	identity   models.Identity
	video      *frames.Video
	cropped    *frames.Stack
	background *background.Image
	subtracted *frames.Stack
	threshold  float64
	table      spots.Table
	trim       vials.Trim
	binning    vials.Binning
	filtered   spots.Table
	winners    map[int]models.WindowResult
	global     *models.WindowResult
	slopes     results.Table
}

// NewDetector creates a detector for the provided parameters
func NewDetector(params *Params) *Detector {
	return &Detector{params: params}
}

// Process runs the whole pipeline on one video. Any terminal error skips
// the video; the slopes table is only written by a successful run.
func (d *Detector) Process(videoPath string) Outcome {
	d.reset(videoPath)

	if err := d.process(); err != nil {
		log.Warnw("skipping video", "video", videoPath, "reason", err)
		return Outcome{Video: videoPath, Status: Skipped, Reason: err}
	}
	return Outcome{Video: videoPath, Status: Success, Slopes: d.slopes}
}

func (d *Detector) reset(videoPath string) {
	d.cfg = *d.params.Config
	d.paths = naming.PathsFor(videoPath)
	d.identity = naming.Parse(videoPath, d.cfg.NamingFields(), d.cfg.VialIDVars)
	d.video, d.cropped, d.background, d.subtracted = nil, nil, nil, nil
	d.threshold = 0
	d.table, d.filtered = nil, nil
	d.trim = vials.Trim{}
	d.binning = vials.Binning{}
	d.winners = make(map[int]models.WindowResult)
	d.global = nil
	d.slopes = results.Table{}
}

func (d *Detector) process() error {
	log.Infof("Step 1: Loading and subtracting background: %s", d.paths.Video)
	if err := d.loadFrames(); err != nil {
		return err
	}

	log.Infof("Step 2: Detecting spots")
	if err := d.detectSpots(); err != nil {
		return err
	}

	log.Infof("Step 3: Binning spots into %d vial(s)", d.cfg.Vials)
	if err := d.binSpots(); err != nil {
		return err
	}

	log.Infof("Step 4: Filtering spots")
	if err := d.filterSpots(); err != nil {
		return err
	}

	log.Infof("Step 5: Sliding window regression")
	d.regress()

	log.Infof("Step 6: Drawing diagnostic plots")
	d.plot()

	log.Infof("Step 7: Saving slopes")
	return d.saveSlopes()
}

// loadFrames decodes the video and produces the subtracted stack
func (d *Detector) loadFrames() error {
	video, err := d.params.Decoder.Decode(d.paths.Video)
	if err != nil {
		if errors.Is(err, frames.ErrDecode) {
			return err
		}
		return fmt.Errorf("%w: %v", frames.ErrDecode, err)
	}
	d.video = video

	warnings, err := d.cfg.ResolveFrames(video.FrameCount())
	for _, w := range warnings {
		log.Warnw("configuration corrected", "video", d.paths.Video, "key", w.Key, "detail", w.Msg)
	}
	if err != nil {
		return err
	}

	d.cropped, err = frames.CropAndGrayscale(video, d.cfg.ROI(), d.cfg.CropRange(), true)
	if err != nil {
		return err
	}

	blank := models.FrameRange{First: d.cfg.Blank0 - d.cfg.Crop0, Last: d.cfg.BlankN - d.cfg.Crop0}
	d.background, err = background.Compute(d.cropped, blank)
	if err != nil {
		return err
	}

	d.subtracted, err = background.Subtract(d.cropped, d.background)
	return err
}

// detectSpots finds and classifies spots in the subtracted stack
func (d *Detector) detectSpots() error {
	table, err := spots.Detect(d.subtracted, d.params.Finder, spots.Params{
		Diameter: d.cfg.Diameter,
		MinMass:  d.cfg.MinMass,
		MaxSize:  d.cfg.MaxSize,
	}, d.cfg.FrameRate)
	if err != nil {
		return err
	}

	d.threshold, err = spots.Classify(table, d.cfg.Threshold, d.cfg.EccLow, d.cfg.EccHigh)
	if err != nil {
		return err
	}
	d.table = table

	log.Debugw("spots classified", "video", d.paths.Video, "spots", len(table),
		"true", table.CountTrue(), "threshold", d.threshold)
	return nil
}

// binSpots trims outliers, assigns vials and writes the raw table. Trimmed
// spots stay in the raw table with vial 0.
func (d *Detector) binSpots() error {
	d.trim = vials.Trim{Kept: d.table}
	if d.cfg.TrimOutliers {
		d.trim = vials.TrimOutliers(d.table, d.cfg.OutlierTB, d.cfg.OutlierLR)
		d.table = d.trim.Kept
		log.Debugw("outliers trimmed", "video", d.paths.Video, "dropped", len(d.trim.Dropped), "bounds", d.trim.Bounds)
	}

	d.binning = vials.Bin(d.table, d.cfg.Vials)
	for _, v := range d.binning.Empty {
		log.Warnw("vial has no spots", "video", d.paths.Video, "vial", v)
	}

	if err := results.WriteRaw(d.paths.Raw, d.trim.All()); err != nil {
		return fmt.Errorf("failed to save raw spots: %w", err)
	}
	return nil
}

// filterSpots keeps organisms in a vial and writes the filtered table
func (d *Detector) filterSpots() error {
	d.filtered = d.table.Filtered().InvertY()
	if len(d.filtered) == 0 {
		return fmt.Errorf("%w: no spot was assigned to a vial", spots.ErrNoSpotsAfterFiltering)
	}

	if err := results.WriteFiltered(d.paths.Filtered, d.filtered, d.identity); err != nil {
		return fmt.Errorf("failed to save filtered spots: %w", err)
	}
	return nil
}

// regress finds the winning window of every vial and of all vials together.
// A vial without a usable window is left out with a warning.
func (d *Detector) regress() {
	total := d.cfg.CropN - d.cfg.Crop0

	for v := 1; v <= d.cfg.Vials; v++ {
		best, scan, err := regression.Regress(points(d.filtered.Vial(v)), total, d.cfg.Window, d.cfg.Method)
		d.logScan(fmt.Sprintf("%d", v), scan)
		if err != nil {
			log.Warnw("vial omitted from results", "video", d.paths.Video, "vial", v, "reason", err)
			continue
		}
		d.winners[v] = best
	}

	best, scan, err := regression.Regress(points(d.filtered), total, d.cfg.Window, d.cfg.Method)
	d.logScan(results.AllVials, scan)
	if err != nil {
		log.Warnw("no usable window across all vials", "video", d.paths.Video, "reason", err)
		return
	}
	d.global = &best
}

func (d *Detector) logScan(vial string, scan regression.Scan) {
	if len(scan.Skipped) == 0 {
		return
	}
	log.Warnw("regression windows skipped for missing frames", "video", d.paths.Video,
		"vial", vial, "skipped", len(scan.Skipped), "first", scan.Skipped[0])
}

func points(table spots.Table) []regression.Point {
	out := make([]regression.Point, len(table))
	for i, s := range table {
		out[i] = regression.Point{Frame: s.Frame, Y: s.Y}
	}
	return out
}

// plot writes the diagnostic images. Failures are logged, never terminal.
func (d *Detector) plot() {
	viewer := visualization.NewViewer(d.cropped)
	frame := func(i int) *image.Gray {
		img, err := viewer.ExtractFrame(clamp(i, 0, d.cropped.Frames-1))
		if err != nil {
			log.Warnw("cannot extract frame", "video", d.paths.Video, "frame", i, "error", err)
			return nil
		}
		return img
	}
	bg := visualization.GrayImage(d.background.Data, d.background.Width, d.background.Height)

	first, last := 0, 0
	if d.global != nil {
		first, last = d.global.FirstFrame, d.global.LastFrame
	}
	diag := &visualization.Diagnostic{
		Title:      naming.Stem(d.paths.Video),
		First:      frame(first),
		Last:       frame(last),
		Background: bg,
		Spots:      d.table,
		Edges:      d.binning.Edges,
		Traces:     d.filtered,
		Winners:    d.winners,
		Global:     d.global,
		Vials:      d.cfg.Vials,
	}
	fig, err := diag.Render()
	if err != nil {
		log.Warnw("cannot draw diagnostic figure", "video", d.paths.Video, "error", err)
	} else {
		d.save(fig, d.paths.Diagnostic)
	}

	if !d.params.OptimizationPlots && !d.cfg.OptimizationPlots {
		return
	}

	check := clamp(d.cfg.CheckFrame-d.cfg.Crop0, 0, d.cropped.Frames-1)
	subtracted := visualization.NewViewer(d.subtracted)
	sub, err := subtracted.ExtractFrame(check)
	if err != nil {
		log.Warnw("cannot extract frame", "video", d.paths.Video, "frame", check, "error", err)
	} else {
		d.save(visualization.Processed(frame(check), bg, sub), d.paths.Processed)
	}

	spotCheck, err := visualization.SpotCheck(frame(check), d.table, check, d.binning.Edges, d.cfg.Vials)
	if err != nil {
		log.Warnw("cannot draw spot check", "video", d.paths.Video, "error", err)
	} else {
		d.save(spotCheck, d.paths.SpotCheck)
	}

	roi, err := visualization.ROIFrame(d.video, d.cfg.Crop0+check, d.cfg.ROI())
	if err != nil {
		log.Warnw("cannot draw ROI", "video", d.paths.Video, "error", err)
		return
	}
	d.save(roi, d.paths.ROI)
}

func (d *Detector) save(img image.Image, path string) {
	if err := visualization.SaveImage(img, path); err != nil {
		log.Warnw("failed to save image", "path", path, "error", err)
	}
}

// saveSlopes assembles and writes the slopes table
func (d *Detector) saveSlopes() error {
	factor := results.ConversionFactor(d.cfg.ConvertToCmSec, d.cfg.PixelToCm, d.cfg.FrameRate)
	d.slopes = results.Assemble(d.winners, d.global, d.identity, d.cfg.Vials, factor)

	if err := results.WriteSlopes(d.paths.Slopes, d.slopes); err != nil {
		return fmt.Errorf("failed to save slopes: %w", err)
	}
	log.Infow("video complete", "video", d.paths.Video, "rows", len(d.slopes.Rows))
	return nil
}

// Background returns the background of the last video
func (d *Detector) Background() *background.Image {
	return d.background
}

// Edges returns the vial bin edges of the last video
func (d *Detector) Edges() []float64 {
	return d.binning.Edges
}

// Winners returns the winning window of each vial of the last video
func (d *Detector) Winners() map[int]models.WindowResult {
	return d.winners
}

// Global returns the winning window over all vials, or nil
func (d *Detector) Global() *models.WindowResult {
	return d.global
}

// Table returns the classified and binned spot table of the last video
func (d *Detector) Table() spots.Table {
	return d.table
}

// Threshold returns the signal threshold applied to the last video
func (d *Detector) Threshold() float64 {
	return d.threshold
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
