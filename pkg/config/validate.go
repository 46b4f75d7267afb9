package config

import (
	"fmt"
	"strings"
)

// Warning describes a parameter that was corrected automatically
type Warning struct {
	Key string
	Msg string
}

func (w Warning) String() string {
	return w.Key + ": " + w.Msg
}

// Validate corrects parameters that have a safe default and rejects the rest.
// It runs before any frame is decoded; checks that depend on the video length
// are done by ResolveFrames.
func (c *Config) Validate() ([]Warning, error) {
	var warnings []Warning
	var problems []string

	warn := func(key, format string, args ...interface{}) {
		warnings = append(warnings, Warning{Key: key, Msg: fmt.Sprintf(format, args...)})
	}
	reject := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.X < 0 || c.Y < 0 {
		reject("ROI origin (%d, %d) must be non-negative", c.X, c.Y)
	}
	if c.W <= 0 || c.H <= 0 {
		reject("ROI size %dx%d must be positive", c.W, c.H)
	}

	if c.Vials < 1 {
		warn("vials", "was %d, now 1", c.Vials)
		c.Vials = 1
	}
	if c.Diameter < 1 {
		reject("diameter must be positive, got %d", c.Diameter)
	} else if c.Diameter%2 == 0 {
		warn("diameter", "was %d, now %d", c.Diameter, c.Diameter+1)
		c.Diameter++
	}
	if c.FrameRate <= 0 {
		warn("frame_rate", "was %g, now 1", c.FrameRate)
		c.FrameRate = 1
	}
	if c.Window < 1 {
		reject("window must be at least 1 frame, got %d", c.Window)
	}

	switch c.Method {
	case MethodMaxR, MethodMinErr:
	case "":
		warn("method", "not set, using %s", MethodMaxR)
		c.Method = MethodMaxR
	default:
		reject("unrecognized regression method %q, choose %q or %q", c.Method, MethodMaxR, MethodMinErr)
	}

	if c.EccLow > c.EccHigh {
		reject("ecc_low (%g) is greater than ecc_high (%g)", c.EccLow, c.EccHigh)
	}
	if !c.Threshold.Auto && c.Threshold.Value < 0 {
		reject("threshold must be non-negative, got %g", c.Threshold.Value)
	}
	if c.ConvertToCmSec && c.PixelToCm <= 0 {
		reject("pixel_to_cm must be positive when convert_to_cm_sec is set, got %g", c.PixelToCm)
	}
	if c.TrimOutliers && (c.OutlierTB < 0 || c.OutlierLR < 0) {
		warn("outlier_TB/outlier_LR", "negative sensitivity disables trimming on that axis")
	}

	if c.Crop0 < 0 {
		reject("crop_0 must be non-negative, got %d", c.Crop0)
	}
	if c.CropN != 0 && c.CropN <= c.Crop0 {
		reject("crop_n (%d) must be greater than crop_0 (%d)", c.CropN, c.Crop0)
	}
	if c.CropN != 0 {
		warnings = append(warnings, c.clampFrames()...)
	}
	if c.BlankN <= c.Blank0 {
		reject("blank_n (%d) must be greater than blank_0 (%d)", c.BlankN, c.Blank0)
	}

	fields := len(c.NamingFields())
	if c.VialIDVars < 0 {
		warn("vial_id_vars", "was %d, now 0", c.VialIDVars)
		c.VialIDVars = 0
	} else if c.VialIDVars > fields {
		warn("vial_id_vars", "was %d, naming convention only has %d fields", c.VialIDVars, fields)
		c.VialIDVars = fields
	}

	if len(problems) > 0 {
		return warnings, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return warnings, nil
}

// ResolveFrames binds the frame ranges to a decoded video with frameCount
// frames. A crop_n of 0 or past the end becomes frameCount.
func (c *Config) ResolveFrames(frameCount int) ([]Warning, error) {
	var warnings []Warning

	if c.CropN == 0 {
		c.CropN = frameCount
	} else if c.CropN > frameCount {
		warnings = append(warnings, Warning{Key: "crop_n", Msg: fmt.Sprintf("was %d, video has %d frames", c.CropN, frameCount)})
		c.CropN = frameCount
	}
	if c.Crop0 >= c.CropN {
		return warnings, fmt.Errorf("%w: crop_0 (%d) is beyond the last frame (%d)", ErrInvalidConfig, c.Crop0, c.CropN)
	}

	warnings = append(warnings, c.clampFrames()...)
	if c.BlankN <= c.Blank0 {
		return warnings, fmt.Errorf("%w: background range [%d, %d) is empty after clamping", ErrInvalidConfig, c.Blank0, c.BlankN)
	}

	total := c.CropN - c.Crop0
	if c.Window >= total {
		return warnings, fmt.Errorf("%w: window (%d) must be smaller than the analysed frame count (%d)", ErrInvalidConfig, c.Window, total)
	}
	return warnings, nil
}

// clampFrames moves blank_0, blank_n and check_frame into [crop_0, crop_n]
func (c *Config) clampFrames() []Warning {
	var warnings []Warning
	clamp := func(key string, v *int) {
		was := *v
		if *v < c.Crop0 {
			*v = c.Crop0
		}
		if *v > c.CropN {
			*v = c.CropN
		}
		if *v != was {
			warnings = append(warnings, Warning{Key: key, Msg: fmt.Sprintf("was %d, now %d", was, *v)})
		}
	}
	clamp("blank_0", &c.Blank0)
	clamp("blank_n", &c.BlankN)
	clamp("check_frame", &c.CheckFrame)
	return warnings
}
