package eyetrack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigurationError reports missing or out-of-range tracking parameters.
// It is fatal: tracking never starts with an incomplete parameter set.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid tracking parameters: %s", strings.Join(e.Problems, "; "))
}

// Params holds the pupil-detection tuning parameters. Fields are pointers so
// a key missing from the JSON is distinguishable from a zero value: every
// option is required and no fallback defaults exist. Validate before use.
type Params struct {
	RatioThreshold        *float64 `json:"ratio_threshold"`
	RelativeAreaThreshold *float64 `json:"relative_area_threshold"`
	ErrorThreshold        *float64 `json:"error_threshold"`
	MinContourLen         *int     `json:"min_contour_len"`
	Margin                *float64 `json:"margin"`
	SpeedThreshold        *float64 `json:"speed_threshold"`
	DrThreshold           *float64 `json:"dr_threshold"`
	PercWeight            *float64 `json:"perc_weight"`
	PercHigh              *float64 `json:"perc_high"`
	PercLow               *float64 `json:"perc_low"`
	ContrastThreshold     *float64 `json:"contrast_threshold"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultParams returns a fully populated parameter set tuned for typical
// infrared eye video. Recordings load their own params file; these values
// back the synthetic tooling and serve as a starting point for new rigs.
func DefaultParams() *Params {
	return &Params{
		RatioThreshold:        ptrFloat64(1.3),
		RelativeAreaThreshold: ptrFloat64(0.002),
		ErrorThreshold:        ptrFloat64(0.1),
		MinContourLen:         ptrInt(20),
		Margin:                ptrFloat64(0.1),
		SpeedThreshold:        ptrFloat64(0.05),
		DrThreshold:           ptrFloat64(0.1),
		PercWeight:            ptrFloat64(0.7),
		PercHigh:              ptrFloat64(90),
		PercLow:               ptrFloat64(5),
		ContrastThreshold:     ptrFloat64(5),
	}
}

// LoadParams loads tracking parameters from a JSON file. The file must have
// a .json extension and stay under the max file size; the parsed parameters
// must pass Validate.
func LoadParams(path string) (*Params, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("params file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat params file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("params file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}

	p := &Params{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse params JSON: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate checks that every parameter is present and within range. All
// problems are collected into one ConfigurationError rather than stopping at
// the first, so a bad file can be fixed in one pass.
func (p *Params) Validate() error {
	var problems []string

	miss := func(name string) { problems = append(problems, "missing "+name) }

	if p.RatioThreshold == nil {
		miss("ratio_threshold")
	} else if *p.RatioThreshold <= 0 {
		problems = append(problems, fmt.Sprintf("ratio_threshold must be positive, got %v", *p.RatioThreshold))
	}
	if p.RelativeAreaThreshold == nil {
		miss("relative_area_threshold")
	} else if *p.RelativeAreaThreshold <= 0 {
		problems = append(problems, fmt.Sprintf("relative_area_threshold must be positive, got %v", *p.RelativeAreaThreshold))
	}
	if p.ErrorThreshold == nil {
		miss("error_threshold")
	} else if *p.ErrorThreshold <= 0 {
		problems = append(problems, fmt.Sprintf("error_threshold must be positive, got %v", *p.ErrorThreshold))
	}
	if p.MinContourLen == nil {
		miss("min_contour_len")
	} else if *p.MinContourLen < 5 {
		// A conic has five degrees of freedom, so the fit needs at least
		// five points.
		problems = append(problems, fmt.Sprintf("min_contour_len must be at least 5, got %d", *p.MinContourLen))
	}
	if p.Margin == nil {
		miss("margin")
	} else if *p.Margin < 0 || *p.Margin >= 0.5 {
		problems = append(problems, fmt.Sprintf("margin must be in [0, 0.5), got %v", *p.Margin))
	}
	if p.SpeedThreshold == nil {
		miss("speed_threshold")
	} else if *p.SpeedThreshold <= 0 {
		problems = append(problems, fmt.Sprintf("speed_threshold must be positive, got %v", *p.SpeedThreshold))
	}
	if p.DrThreshold == nil {
		miss("dr_threshold")
	} else if *p.DrThreshold <= 0 {
		problems = append(problems, fmt.Sprintf("dr_threshold must be positive, got %v", *p.DrThreshold))
	}
	if p.PercWeight == nil {
		miss("perc_weight")
	} else if *p.PercWeight < 0 || *p.PercWeight > 1 {
		problems = append(problems, fmt.Sprintf("perc_weight must be in [0, 1], got %v", *p.PercWeight))
	}
	if p.PercHigh == nil {
		miss("perc_high")
	} else if *p.PercHigh < 0 || *p.PercHigh > 100 {
		problems = append(problems, fmt.Sprintf("perc_high must be in [0, 100], got %v", *p.PercHigh))
	}
	if p.PercLow == nil {
		miss("perc_low")
	} else if *p.PercLow < 0 || *p.PercLow > 100 {
		problems = append(problems, fmt.Sprintf("perc_low must be in [0, 100], got %v", *p.PercLow))
	}
	if p.ContrastThreshold == nil {
		miss("contrast_threshold")
	} else if *p.ContrastThreshold < 0 {
		problems = append(problems, fmt.Sprintf("contrast_threshold must be non-negative, got %v", *p.ContrastThreshold))
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// The Get accessors assume Validate has passed; they dereference without
// nil checks because tracking never starts on an invalid parameter set.

// GetRatioThreshold returns the maximum accepted major/minor axis ratio.
func (p *Params) GetRatioThreshold() float64 { return *p.RatioThreshold }

// GetRelativeAreaThreshold returns the minimum accepted ellipse area as a
// fraction of the sub-image area.
func (p *Params) GetRelativeAreaThreshold() float64 { return *p.RelativeAreaThreshold }

// GetErrorThreshold returns the maximum accepted goodness-of-fit rmse.
func (p *Params) GetErrorThreshold() float64 { return *p.ErrorThreshold }

// GetMinContourLen returns the minimum contour point count for fitting.
func (p *Params) GetMinContourLen() int { return *p.MinContourLen }

// GetMargin returns the normalized border margin excluded for centers.
func (p *Params) GetMargin() float64 { return *p.Margin }

// GetSpeedThreshold returns the maximum accepted normalized center displacement.
func (p *Params) GetSpeedThreshold() float64 { return *p.SpeedThreshold }

// GetDrThreshold returns the maximum accepted relative radius change.
func (p *Params) GetDrThreshold() float64 { return *p.DrThreshold }

// GetPercWeight returns the low-percentile blend weight for thresholding.
func (p *Params) GetPercWeight() float64 { return *p.PercWeight }

// GetPercHigh returns the high percentile (0-100) for thresholding.
func (p *Params) GetPercHigh() float64 { return *p.PercHigh }

// GetPercLow returns the low percentile (0-100) for thresholding.
func (p *Params) GetPercLow() float64 { return *p.PercLow }

// GetContrastThreshold returns the full-frame intensity floor.
func (p *Params) GetContrastThreshold() float64 { return *p.ContrastThreshold }
