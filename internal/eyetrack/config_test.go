package eyetrack

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()

	if err := p.Validate(); err != nil {
		t.Fatalf("DefaultParams() does not validate: %v", err)
	}
	if p.GetRatioThreshold() != 1.3 {
		t.Errorf("GetRatioThreshold() = %v, want 1.3", p.GetRatioThreshold())
	}
	if p.GetRelativeAreaThreshold() != 0.002 {
		t.Errorf("GetRelativeAreaThreshold() = %v, want 0.002", p.GetRelativeAreaThreshold())
	}
	if p.GetErrorThreshold() != 0.1 {
		t.Errorf("GetErrorThreshold() = %v, want 0.1", p.GetErrorThreshold())
	}
	if p.GetMinContourLen() != 20 {
		t.Errorf("GetMinContourLen() = %d, want 20", p.GetMinContourLen())
	}
	if p.GetMargin() != 0.1 {
		t.Errorf("GetMargin() = %v, want 0.1", p.GetMargin())
	}
	if p.GetSpeedThreshold() != 0.05 {
		t.Errorf("GetSpeedThreshold() = %v, want 0.05", p.GetSpeedThreshold())
	}
	if p.GetDrThreshold() != 0.1 {
		t.Errorf("GetDrThreshold() = %v, want 0.1", p.GetDrThreshold())
	}
	if p.GetPercWeight() != 0.7 {
		t.Errorf("GetPercWeight() = %v, want 0.7", p.GetPercWeight())
	}
	if p.GetPercHigh() != 90 {
		t.Errorf("GetPercHigh() = %v, want 90", p.GetPercHigh())
	}
	if p.GetPercLow() != 5 {
		t.Errorf("GetPercLow() = %v, want 5", p.GetPercLow())
	}
	if p.GetContrastThreshold() != 5 {
		t.Errorf("GetContrastThreshold() = %v, want 5", p.GetContrastThreshold())
	}
}

func TestLoadParams(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "params.json")

	testJSON := `{
  "ratio_threshold": 1.4,
  "relative_area_threshold": 0.003,
  "error_threshold": 0.05,
  "min_contour_len": 25,
  "margin": 0.12,
  "speed_threshold": 0.06,
  "dr_threshold": 0.2,
  "perc_weight": 0.5,
  "perc_high": 95,
  "perc_low": 2,
  "contrast_threshold": 7.5
}`
	if err := os.WriteFile(path, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test params: %v", err)
	}

	p, err := LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams error: %v", err)
	}
	if p.GetRatioThreshold() != 1.4 {
		t.Errorf("GetRatioThreshold() = %v, want 1.4", p.GetRatioThreshold())
	}
	if p.GetMinContourLen() != 25 {
		t.Errorf("GetMinContourLen() = %d, want 25", p.GetMinContourLen())
	}
	if p.GetContrastThreshold() != 7.5 {
		t.Errorf("GetContrastThreshold() = %v, want 7.5", p.GetContrastThreshold())
	}
}

func TestLoadParamsMissingKeys(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "partial.json")

	// Only two of the eleven required keys.
	partialJSON := `{"ratio_threshold": 1.4, "margin": 0.1}`
	if err := os.WriteFile(path, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test params: %v", err)
	}

	_, err := LoadParams(path)
	if err == nil {
		t.Fatal("Expected error for missing keys, got nil")
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %T, want *ConfigurationError", err)
	}
	// Every missing key must be reported, not just the first.
	if len(cfgErr.Problems) != 9 {
		t.Errorf("len(Problems) = %d, want 9: %v", len(cfgErr.Problems), cfgErr.Problems)
	}
	for _, key := range []string{"error_threshold", "min_contour_len", "perc_low", "contrast_threshold"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err.Error(), key)
		}
	}
}

func TestLoadParamsInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "invalid.json")

	if err := os.WriteFile(path, []byte(`{"ratio_threshold": `), 0644); err != nil {
		t.Fatalf("Failed to write test params: %v", err)
	}

	if _, err := LoadParams(path); err == nil {
		t.Error("Expected error for invalid JSON, got nil")
	}
}

func TestLoadParamsMissingFile(t *testing.T) {
	if _, err := LoadParams("/nonexistent/params.json"); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestLoadParamsRejectsNonJSON(t *testing.T) {
	if _, err := LoadParams("/some/path/params.yaml"); err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadParamsRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(path, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	if _, err := LoadParams(path); err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero ratio", func(p *Params) { p.RatioThreshold = ptrFloat64(0) }},
		{"negative area", func(p *Params) { p.RelativeAreaThreshold = ptrFloat64(-0.1) }},
		{"zero error threshold", func(p *Params) { p.ErrorThreshold = ptrFloat64(0) }},
		{"contour len below fit minimum", func(p *Params) { p.MinContourLen = ptrInt(4) }},
		{"negative margin", func(p *Params) { p.Margin = ptrFloat64(-0.01) }},
		{"margin at half", func(p *Params) { p.Margin = ptrFloat64(0.5) }},
		{"zero speed", func(p *Params) { p.SpeedThreshold = ptrFloat64(0) }},
		{"zero dr", func(p *Params) { p.DrThreshold = ptrFloat64(0) }},
		{"weight above one", func(p *Params) { p.PercWeight = ptrFloat64(1.01) }},
		{"percentile above 100", func(p *Params) { p.PercHigh = ptrFloat64(101) }},
		{"negative percentile", func(p *Params) { p.PercLow = ptrFloat64(-1) }},
		{"negative contrast", func(p *Params) { p.ContrastThreshold = ptrFloat64(-0.5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(p)
			if err := p.Validate(); err == nil {
				t.Error("Validate() = nil, want range error")
			}
		})
	}
}

func TestValidateBoundaryValues(t *testing.T) {
	// Inclusive range edges must validate.
	p := DefaultParams()
	p.Margin = ptrFloat64(0)
	p.PercWeight = ptrFloat64(1)
	p.PercHigh = ptrFloat64(100)
	p.PercLow = ptrFloat64(0)
	p.ContrastThreshold = ptrFloat64(0)
	p.MinContourLen = ptrInt(5)
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for boundary values", err)
	}
}

func TestLoadDefaultsConfigFile(t *testing.T) {
	p, err := LoadParams("../../config/pupil.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults file: %v", err)
	}
	want := DefaultParams()
	if p.GetRatioThreshold() != want.GetRatioThreshold() {
		t.Errorf("ratio_threshold = %v, want %v", p.GetRatioThreshold(), want.GetRatioThreshold())
	}
	if p.GetMinContourLen() != want.GetMinContourLen() {
		t.Errorf("min_contour_len = %d, want %d", p.GetMinContourLen(), want.GetMinContourLen())
	}
	if p.GetPercHigh() != want.GetPercHigh() {
		t.Errorf("perc_high = %v, want %v", p.GetPercHigh(), want.GetPercHigh())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	p, err := LoadParams("../../config/pupil.example.json")
	if err != nil {
		t.Fatalf("Failed to load example file: %v", err)
	}
	if p.GetRatioThreshold() != 1.5 {
		t.Errorf("ratio_threshold = %v, want 1.5", p.GetRatioThreshold())
	}
	if p.GetContrastThreshold() != 8 {
		t.Errorf("contrast_threshold = %v, want 8", p.GetContrastThreshold())
	}
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Problems: []string{"missing margin", "missing perc_low"}}
	msg := err.Error()
	if !strings.Contains(msg, "missing margin") || !strings.Contains(msg, "missing perc_low") {
		t.Errorf("Error() = %q, want both problems listed", msg)
	}
}
