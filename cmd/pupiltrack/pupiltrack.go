package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/visionrig-data/pupil.report/internal/db"
	"github.com/visionrig-data/pupil.report/internal/eyetrack"
	"github.com/visionrig-data/pupil.report/internal/fsutil"
	"github.com/visionrig-data/pupil.report/internal/monitor"
	"github.com/visionrig-data/pupil.report/internal/security"
	"github.com/visionrig-data/pupil.report/internal/timesync"
	"github.com/visionrig-data/pupil.report/internal/timeutil"
	"github.com/visionrig-data/pupil.report/internal/version"
)

var (
	framesDir   = flag.String("frames", "", "directory of frame images to track (required)")
	configPath  = flag.String("config", "", "path to detection parameters JSON (required)")
	roiSpec     = flag.String("roi", "", "region of interest as 'r0:r1,c0:c1' (required)")
	dbFile      = flag.String("db", "traces.db", "path to the sqlite trace database")
	listenAddr  = flag.String("listen", "", "address for the monitoring web server, e.g. :8080 (optional)")
	reportPath  = flag.String("report", "", "write an HTML trace report to this path after the run (optional)")
	overlayDir  = flag.String("overlay-dir", "", "write per-frame detection overlay PNGs into this directory (optional)")
	plotDir     = flag.String("plot-dir", "", "write static trace plots into this directory (optional)")
	tsPath      = flag.String("timestamps", "", "path to a raw hardware timestamp file for the recording (optional)")
	sampleRate  = flag.Float64("sample-rate", timesync.MasterClockHz, "acquisition counter rate in Hz for timestamp conversion")
	packetLen   = flag.Int("packet-len", timesync.AnalogPacketLen, "samples per acquisition packet for timestamp conversion")
	devMode     = flag.Bool("dev", false, "run database migrations from the working tree instead of the embedded copy")
	showVersion = flag.Bool("version", false, "print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("pupiltrack %s (%s) built %s\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	db.DevMode = *devMode

	// "pupiltrack migrate <verb>" manages the schema and exits.
	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbFile)
		return
	}

	if *framesDir == "" {
		log.Fatal("-frames is required: pass the directory holding the frame images")
	}
	if *configPath == "" {
		log.Fatal("-config is required: pass the detection parameters JSON file")
	}
	if *roiSpec == "" {
		log.Fatal("-roi is required: pass the region of interest as 'r0:r1,c0:c1'")
	}
	for _, out := range []string{*reportPath, *overlayDir, *plotDir} {
		if out == "" {
			continue
		}
		if err := security.ValidateExportPath(out); err != nil {
			log.Fatalf("Refusing output path %q: %v", out, err)
		}
	}

	params, err := eyetrack.LoadParams(*configPath)
	if err != nil {
		log.Fatalf("Failed to load parameters from %s: %v", *configPath, err)
	}
	region, err := eyetrack.ParseROI(*roiSpec)
	if err != nil {
		log.Fatalf("Invalid -roi %q: %v", *roiSpec, err)
	}
	tracker, err := eyetrack.NewPupilTracker(params)
	if err != nil {
		log.Fatalf("Invalid parameter set: %v", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		log.Fatalf("Failed to encode parameters: %v", err)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database %s: %v", *dbFile, err)
	}
	defer database.Close()

	var videoSeconds *float64
	if *tsPath != "" {
		videoSeconds, err = loadVideoSeconds(*tsPath, *sampleRate, *packetLen)
		if err != nil {
			log.Fatalf("Failed to derive video duration from %s: %v", *tsPath, err)
		}
		log.Printf("timestamps: %s spans %.3fs of video", *tsPath, *videoSeconds)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if *listenAddr != "" {
		server := monitor.NewWebServer(monitor.WebServerConfig{
			Address: *listenAddr,
			DB:      database,
			Version: version.Version,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil {
				log.Printf("Monitor server error: %v", err)
			}
		}()
		log.Printf("monitor listening on %s", *listenAddr)
	}

	fsys := fsutil.OSFileSystem{}
	source, err := eyetrack.NewDirSource(fsys, *framesDir)
	if err != nil {
		log.Fatalf("Failed to open frame directory %s: %v", *framesDir, err)
	}
	log.Printf("tracking %d frames from %s (roi %s)", source.Len(), *framesDir, *roiSpec)

	run, trace, trackErr := runTracking(ctx, tracker, source, region, timeutil.RealClock{})
	run.Source = *framesDir
	run.ROI = *roiSpec
	run.ParamsJSON = string(paramsJSON)
	run.VideoSeconds = videoSeconds

	// The trace is persisted even when the run was cut short, so partial
	// results stay inspectable through the monitor.
	if err := database.SaveTrace(run, trace); err != nil {
		log.Fatalf("Failed to save trace: %v", err)
	}
	logRunSummary(run)

	if trackErr != nil {
		if errors.Is(trackErr, eyetrack.ErrTrackingAborted) {
			log.Printf("tracking aborted: %v", trackErr)
		} else {
			log.Fatalf("Tracking failed after %d frames: %v", run.FramesRead, trackErr)
		}
	}

	if *reportPath != "" {
		if err := writeReport(fsys, *reportPath, run, trace); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		log.Printf("report written to %s", *reportPath)
	}
	if *overlayDir != "" {
		overlaySource, err := eyetrack.NewDirSource(fsys, *framesDir)
		if err != nil {
			log.Fatalf("Failed to reopen frame directory for overlays: %v", err)
		}
		n, err := writeOverlays(fsys, overlaySource, trace, region, *overlayDir)
		if err != nil {
			log.Fatalf("Failed to write overlays: %v", err)
		}
		log.Printf("wrote %d overlay images to %s", n, *overlayDir)
	}
	if *plotDir != "" && len(trace.Records) > 0 {
		plotter := monitor.NewTracePlotter(fsys)
		paths, err := plotter.SaveTracePlots(trace, *plotDir)
		if err != nil {
			log.Fatalf("Failed to write plots: %v", err)
		}
		log.Printf("wrote %d plots to %s", len(paths), *plotDir)
	}

	if *listenAddr != "" {
		log.Printf("run complete; monitor stays up on %s until interrupted", *listenAddr)
	}
	wg.Wait()
}

// runTracking runs the tracker over source and stamps wall-clock start and
// finish times on the returned run. The trace comes back even when tracking
// stopped early; the caller decides what a partial trace means.
func runTracking(ctx context.Context, tracker *eyetrack.PupilTracker, source eyetrack.FrameSource, region eyetrack.ROI, clock timeutil.Clock) (*db.TrackRun, *eyetrack.Trace, error) {
	startedAt := clock.Now()
	trace, err := tracker.Track(ctx, source, source.Len(), region)
	run := &db.TrackRun{
		FramesTotal: source.Len(),
		StartedAt:   startedAt,
		FinishedAt:  clock.Now(),
	}
	return run, trace, err
}

// logRunSummary prints the one-line outcome of a persisted run.
func logRunSummary(run *db.TrackRun) {
	rate := 0.0
	if run.FramesRead > 0 {
		rate = float64(run.Detections) / float64(run.FramesRead) * 100
	}
	log.Printf("run %s: %s, %d of %d frames, %d detections (%.1f%%), %d failures in %s",
		run.ID, run.Status, run.FramesRead, run.FramesTotal, run.Detections, rate,
		run.Failures, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
}

// loadVideoSeconds reads a whitespace-separated file of raw hardware
// timestamps, converts them to seconds and returns the recording duration.
func loadVideoSeconds(path string, sampleRate float64, packetLen int) (*float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timestamps: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return nil, fmt.Errorf("timestamp file %s holds no samples", path)
	}
	ts := make([]float64, 0, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("timestamp sample %d: %w", i+1, err)
		}
		ts = append(ts, v)
	}
	seconds, err := timesync.Convert(ts, sampleRate, packetLen)
	if err != nil {
		return nil, err
	}
	duration := seconds[len(seconds)-1] - seconds[0]
	return &duration, nil
}

// writeReport renders the self-contained HTML report for a finished run.
func writeReport(fsys fsutil.FileSystem, path string, run *db.TrackRun, trace *eyetrack.Trace) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := monitor.WriteReportPage(f, run, trace); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeOverlays replays the frame source alongside the trace records and
// writes one annotated PNG per decodable frame. Frames whose decode failed
// during tracking fail again here and are skipped, which keeps the records
// and the source aligned.
func writeOverlays(fsys fsutil.FileSystem, source eyetrack.FrameSource, trace *eyetrack.Trace, region eyetrack.ROI, dir string) (int, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create overlay directory: %w", err)
	}
	written := 0
	for _, rec := range trace.Records {
		frame, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}
		img := monitor.RenderOverlay(frame, region, rec.Detection)
		name := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", rec.FrameID))
		if err := monitor.WriteOverlayPNG(fsys, name, img); err != nil {
			return written, fmt.Errorf("overlay for frame %d: %w", rec.FrameID, err)
		}
		written++
	}
	return written, nil
}
