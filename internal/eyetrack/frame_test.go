package eyetrack

import (
	"math"
	"testing"
)

func TestNewFrame(t *testing.T) {
	f, err := NewFrame(4, 3)
	if err != nil {
		t.Fatalf("NewFrame(4, 3) error: %v", err)
	}
	if f.W != 4 || f.H != 3 {
		t.Errorf("Frame dimensions = %dx%d, want 4x3", f.W, f.H)
	}
	if len(f.Pix) != 12 {
		t.Errorf("len(Pix) = %d, want 12", len(f.Pix))
	}

	if _, err := NewFrame(0, 3); err == nil {
		t.Error("NewFrame(0, 3) expected error, got nil")
	}
	if _, err := NewFrame(4, -1); err == nil {
		t.Error("NewFrame(4, -1) expected error, got nil")
	}
}

func TestFrameFromPix(t *testing.T) {
	pix := []uint8{1, 2, 3, 4, 5, 6}
	f, err := FrameFromPix(pix, 3, 2)
	if err != nil {
		t.Fatalf("FrameFromPix error: %v", err)
	}
	if f.At(0, 0) != 1 || f.At(2, 0) != 3 || f.At(0, 1) != 4 || f.At(2, 1) != 6 {
		t.Errorf("At() readback mismatch: got %d %d %d %d", f.At(0, 0), f.At(2, 0), f.At(0, 1), f.At(2, 1))
	}

	if _, err := FrameFromPix(pix, 2, 2); err == nil {
		t.Error("FrameFromPix with wrong buffer length expected error, got nil")
	}
}

func TestFrameSet(t *testing.T) {
	f, _ := NewFrame(3, 3)
	f.Set(1, 2, 77)
	if f.At(1, 2) != 77 {
		t.Errorf("At(1,2) = %d after Set, want 77", f.At(1, 2))
	}
	if f.Pix[2*3+1] != 77 {
		t.Errorf("Pix[7] = %d, want 77 (row-major layout)", f.Pix[7])
	}
}

func TestFrameIntensity(t *testing.T) {
	tests := []struct {
		name string
		pix  []uint8
		want float64
	}{
		{
			name: "flat frame has zero intensity",
			pix:  []uint8{128, 128, 128, 128},
			want: 0,
		},
		{
			name: "two-level frame",
			pix:  []uint8{0, 0, 255, 255},
			want: 127.5,
		},
		{
			name: "single bright pixel",
			pix:  []uint8{0, 0, 0, 100},
			// mean 25, squared deviations 3*625+5625, population variance 1875
			want: math.Sqrt(1875),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := FrameFromPix(tt.pix, 2, 2)
			if err != nil {
				t.Fatalf("FrameFromPix error: %v", err)
			}
			got := f.Intensity()
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Intensity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameCrop(t *testing.T) {
	f, _ := NewFrame(6, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 6; x++ {
			f.Set(x, y, uint8(10*y+x))
		}
	}

	roi := ROI{Row0: 1, Row1: 4, Col0: 2, Col1: 5}
	sub := f.Crop(roi)
	if sub.W != 3 || sub.H != 3 {
		t.Fatalf("Crop dimensions = %dx%d, want 3x3", sub.W, sub.H)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			want := uint8(10*(y+1) + x + 2)
			if sub.At(x, y) != want {
				t.Errorf("sub.At(%d,%d) = %d, want %d", x, y, sub.At(x, y), want)
			}
		}
	}

	// The crop is a copy: writing to it must not touch the parent.
	sub.Set(0, 0, 99)
	if f.At(2, 1) == 99 {
		t.Error("Crop shares pixels with the parent frame")
	}
}

func TestROIValidate(t *testing.T) {
	tests := []struct {
		name    string
		roi     ROI
		w, h    int
		wantErr bool
	}{
		{"full frame", ROI{0, 5, 0, 6}, 6, 5, false},
		{"interior", ROI{1, 4, 2, 5}, 6, 5, false},
		{"single pixel", ROI{2, 3, 3, 4}, 6, 5, false},
		{"row past bottom", ROI{0, 6, 0, 6}, 6, 5, true},
		{"col past right", ROI{0, 5, 0, 7}, 6, 5, true},
		{"negative row", ROI{-1, 5, 0, 6}, 6, 5, true},
		{"empty rows", ROI{3, 3, 0, 6}, 6, 5, true},
		{"inverted cols", ROI{0, 5, 4, 2}, 6, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.roi.Validate(tt.w, tt.h)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%d, %d) error = %v, wantErr %v", tt.w, tt.h, err, tt.wantErr)
			}
		})
	}
}

func TestROIDimensions(t *testing.T) {
	roi := ROI{Row0: 10, Row1: 30, Col0: 5, Col1: 45}
	if roi.Width() != 40 {
		t.Errorf("Width() = %d, want 40", roi.Width())
	}
	if roi.Height() != 20 {
		t.Errorf("Height() = %d, want 20", roi.Height())
	}
}

func TestParseROI(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ROI
		wantErr bool
	}{
		{"plain", "10:30,5:45", ROI{10, 30, 5, 45}, false},
		{"spaces", " 10 : 30 , 5 : 45 ", ROI{10, 30, 5, 45}, false},
		{"missing comma", "10:30", ROI{}, true},
		{"missing colon", "10,5:45", ROI{}, true},
		{"not a number", "a:30,5:45", ROI{}, true},
		{"extra range", "1:2,3:4,5:6", ROI{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseROI(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseROI(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseROI(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestROIStringRoundTrip(t *testing.T) {
	roi := ROI{Row0: 3, Row1: 17, Col0: 8, Col1: 29}
	parsed, err := ParseROI(roi.String())
	if err != nil {
		t.Fatalf("ParseROI(%q) error: %v", roi.String(), err)
	}
	if parsed != roi {
		t.Errorf("round trip = %+v, want %+v", parsed, roi)
	}
}
