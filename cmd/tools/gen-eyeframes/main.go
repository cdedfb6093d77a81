// Command gen-eyeframes writes a synthetic pupil recording as a directory
// of PNG frames, for exercising the tracker without rig footage.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/visionrig-data/pupil.report/internal/eyetrack"
)

func main() {
	output := flag.String("o", "frames", "output directory")
	frames := flag.Int("n", 100, "number of frames")
	width := flag.Int("w", 128, "frame width in pixels")
	height := flag.Int("h", 96, "frame height in pixels")
	seed := flag.Int64("seed", 1, "noise seed")
	lowContrast := flag.String("low-contrast", "", "comma-separated frame ids rendered without a pupil")
	broken := flag.String("broken", "", "comma-separated frame ids written as undecodable files")
	stamps := flag.Bool("timestamps", false, "also write timestamps.txt with raw counter stamps")
	fps := flag.Float64("fps", 100, "frame rate assumed by the timestamp file")
	rate := flag.Float64("sample-rate", 10000, "counter rate in Hz for the timestamp file")
	params := flag.Bool("params", false, "also write params.json with the default detection parameters")
	flag.Parse()

	lowIDs, err := parseFrameList(*lowContrast)
	if err != nil {
		log.Fatalf("Bad -low-contrast list: %v", err)
	}
	brokenIDs, err := parseFrameList(*broken)
	if err != nil {
		log.Fatalf("Bad -broken list: %v", err)
	}

	gen := eyetrack.NewSyntheticSource(*width, *height, *frames, *seed)
	for id := range lowIDs {
		gen.LowContrast[id] = true
	}

	if err := os.MkdirAll(*output, 0o755); err != nil {
		log.Fatalf("Failed to create %s: %v", *output, err)
	}

	for i := 1; i <= *frames; i++ {
		frame, err := gen.Next()
		if err != nil {
			log.Fatalf("Frame %d: %v", i, err)
		}
		name := filepath.Join(*output, fmt.Sprintf("frame_%06d.png", i))
		if brokenIDs[i] {
			// A deliberately corrupt file, so downstream decode
			// failure handling has something real to chew on.
			if err := os.WriteFile(name, []byte("not a png"), 0o644); err != nil {
				log.Fatalf("Failed to write %s: %v", name, err)
			}
			continue
		}
		if err := writePNG(name, frame); err != nil {
			log.Fatalf("Failed to write %s: %v", name, err)
		}
		if i%25 == 0 {
			log.Printf("%d/%d frames", i, *frames)
		}
	}

	if *stamps {
		path := filepath.Join(*output, "timestamps.txt")
		if err := writeStamps(path, *frames, *rate, *fps); err != nil {
			log.Fatalf("Failed to write timestamps: %v", err)
		}
	}
	if *params {
		path := filepath.Join(*output, "params.json")
		data, err := json.MarshalIndent(eyetrack.DefaultParams(), "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode parameters: %v", err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
	}

	log.Printf("✓ Created: %s (%d frames)", *output, *frames)
}

// parseFrameList turns "3,7,12" into a membership set. Empty input means
// no frames.
func parseFrameList(s string) (map[int]bool, error) {
	ids := make(map[int]bool)
	if s == "" {
		return ids, nil
	}
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("frame id %q: %w", part, err)
		}
		if id < 1 {
			return nil, fmt.Errorf("frame ids start at 1, got %d", id)
		}
		ids[id] = true
	}
	return ids, nil
}

func writePNG(name string, frame *eyetrack.Frame) error {
	img := &image.Gray{
		Pix:    frame.Pix,
		Stride: frame.W,
		Rect:   image.Rect(0, 0, frame.W, frame.H),
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeStamps emits one raw counter value per frame, spaced at the counter
// rate divided by the frame rate, matching what the acquisition hardware
// records.
func writeStamps(path string, frames int, rate, fps float64) error {
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %v", fps)
	}
	var b strings.Builder
	step := rate / fps
	for i := 0; i < frames; i++ {
		fmt.Fprintf(&b, "%.0f\n", float64(i)*step)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
