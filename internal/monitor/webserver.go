package monitor

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/visionrig-data/pupil.report/internal/db"
	"github.com/visionrig-data/pupil.report/internal/eyetrack"
	"github.com/visionrig-data/pupil.report/internal/httputil"
	"github.com/visionrig-data/pupil.report/internal/monitoring"
)

//go:embed index.html report.html
var templatesFS embed.FS

// recentRunLimit caps the run listing on the index page.
const recentRunLimit = 50

// WebServer handles the HTTP interface for browsing persisted tracking
// runs. It serves the run index, JSON run APIs, HTML trace reports and the
// trace store debug routes.
type WebServer struct {
	address   string
	db        *db.DB
	version   string
	startTime time.Time
	server    *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	DB      *db.DB
	Version string
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:   config.Address,
		db:        config.DB,
		version:   config.Version,
		startTime: time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (ws *WebServer) Start(ctx context.Context) error {
	// Start server in a goroutine so it doesn't block
	go func() {
		monitoring.Logf("Starting monitor HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start monitor server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	monitoring.Logf("shutting down monitor HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("monitor HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("monitor HTTP server force close error: %v", err)
		}
	}

	monitoring.Logf("monitor HTTP server routine stopped")
	return nil
}

// Close shuts down the web server
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", ws.handleIndex)
	mux.HandleFunc("/healthz", ws.handleHealth)
	mux.HandleFunc("/runs", ws.handleRunAPI)
	mux.HandleFunc("/runs/", ws.handleRunAPI)

	if ws.db != nil {
		ws.db.AttachAdminRoutes(mux)
	}

	return mux
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "pupiltrack", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// runRow is one line of the index page run table.
type runRow struct {
	ID         string
	Source     string
	ROI        string
	Status     string
	Frames     string
	Detections int
	Failures   int
	Rate       string
	Started    string
}

// handleIndex renders the run listing page.
func (ws *WebServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var runs []db.TrackRun
	if ws.db != nil {
		var err error
		runs, err = ws.db.ListRuns(recentRunLimit)
		if err != nil {
			http.Error(w, "Error listing runs: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	rows := make([]runRow, 0, len(runs))
	for _, run := range runs {
		rate := "0.0%"
		if run.FramesRead > 0 {
			rate = fmt.Sprintf("%.1f%%", float64(run.Detections)/float64(run.FramesRead)*100.0)
		}
		rows = append(rows, runRow{
			ID:         run.ID,
			Source:     run.Source,
			ROI:        run.ROI,
			Status:     run.Status,
			Frames:     fmt.Sprintf("%d/%d", run.FramesRead, run.FramesTotal),
			Detections: run.Detections,
			Failures:   run.Failures,
			Rate:       rate,
			Started:    run.StartedAt.UTC().Format(time.RFC3339),
		})
	}

	tmpl, err := template.ParseFS(templatesFS, "index.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := struct {
		HTTPAddress string
		Version     string
		Uptime      string
		Count       int
		Rows        []runRow
	}{
		HTTPAddress: ws.address,
		Version:     ws.version,
		Uptime:      time.Since(ws.startTime).Round(time.Second).String(),
		Count:       len(rows),
		Rows:        rows,
	}

	w.Header().Set("Content-Type", "text/html")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// handleRunAPI is the dispatcher for /runs and /runs/{run_id}/* endpoints.
// It parses the URL path and dispatches to the appropriate sub-handler.
func (ws *WebServer) handleRunAPI(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "trace store not configured")
		return
	}

	runID, subPath := parseRunPath(r.URL.Path)

	// Handle /runs (list runs)
	if runID == "" {
		ws.handleListRuns(w, r)
		return
	}

	// Handle /runs/{run_id} (get run details or delete run)
	if subPath == "" {
		switch r.Method {
		case http.MethodGet:
			ws.handleGetRun(w, r, runID)
		case http.MethodDelete:
			ws.handleDeleteRun(w, r, runID)
		default:
			httputil.MethodNotAllowed(w)
		}
		return
	}

	switch subPath {
	case "report":
		ws.handleRunReport(w, r, runID)
	case "records":
		ws.handleRunRecords(w, r, runID)
	case "charts/summary", "charts/center", "charts/radius", "charts/outcomes":
		ws.handleRunChart(w, r, runID, strings.TrimPrefix(subPath, "charts/"))
	default:
		httputil.NotFound(w, "endpoint not found")
	}
}

// parseRunPath extracts run_id and remaining path segments from
// /runs/{run_id}/...
func parseRunPath(path string) (runID string, subPath string) {
	trimmed := strings.TrimPrefix(path, "/runs")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	runID = parts[0]
	if len(parts) > 1 {
		subPath = parts[1]
	}
	return
}

// handleListRuns lists stored runs, newest first.
// GET /runs?limit=50
func (ws *WebServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := recentRunLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	runs, err := ws.db.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.TrackRun{}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns the stored metadata of one run.
// GET /runs/{run_id}
func (ws *WebServer) handleGetRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := ws.db.GetRun(runID)
	if err != nil {
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to get run: %v", err))
		return
	}
	httputil.WriteJSONOK(w, run)
}

// handleDeleteRun deletes a run and its records.
// DELETE /runs/{run_id}
func (ws *WebServer) handleDeleteRun(w http.ResponseWriter, r *http.Request, runID string) {
	if err := ws.db.DeleteRun(runID); err != nil {
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to delete run: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"status": "ok",
		"run_id": runID,
	})
}

// recordView is the JSON shape of one frame record.
type recordView struct {
	FrameID        int                 `json:"frame_id"`
	Outcome        string              `json:"outcome"`
	FrameIntensity float64             `json:"frame_intensity"`
	Detection      *eyetrack.Detection `json:"detection,omitempty"`
}

// handleRunRecords returns the full record sequence of one run.
// GET /runs/{run_id}/records
func (ws *WebServer) handleRunRecords(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	trace, err := ws.db.LoadTrace(runID)
	if err != nil {
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to load trace: %v", err))
		return
	}

	records := make([]recordView, 0, len(trace.Records))
	for _, rec := range trace.Records {
		records = append(records, recordView{
			FrameID:        rec.FrameID,
			Outcome:        rec.Outcome.String(),
			FrameIntensity: rec.FrameIntensity,
			Detection:      rec.Detection,
		})
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"run_id":  runID,
		"status":  trace.Status.String(),
		"records": records,
		"count":   len(records),
	})
}

// loadRunTrace fetches a run row and its trace, translating a missing run
// into a 404. Returns nils after writing the error response.
func (ws *WebServer) loadRunTrace(w http.ResponseWriter, runID string) (*db.TrackRun, *eyetrack.Trace) {
	run, err := ws.db.GetRun(runID)
	if err != nil {
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, err.Error())
			return nil, nil
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to get run: %v", err))
		return nil, nil
	}
	trace, err := ws.db.LoadTrace(runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load trace: %v", err))
		return nil, nil
	}
	return run, trace
}

// handleRunReport renders the HTML report page for one run: the summary
// table plus iframes onto the chart endpoints.
// GET /runs/{run_id}/report
func (ws *WebServer) handleRunReport(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	run, trace := ws.loadRunTrace(w, runID)
	if run == nil {
		return
	}

	tmpl, err := template.ParseFS(templatesFS, "report.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sum := ComputeTraceSummary(run, trace)
	duration := fmt.Sprintf("%.1fs", sum.WallSeconds)
	if sum.VideoSeconds != nil {
		duration = fmt.Sprintf("%.2fs video (%.1fs wall)", *sum.VideoSeconds, sum.WallSeconds)
	}

	data := struct {
		RunID      string
		Source     string
		ROI        string
		Status     string
		Frames     string
		Detections int
		Failures   int
		Rate       string
		MeanRadius string
		Duration   string
		Started    string
	}{
		RunID:      sum.RunID,
		Source:     sum.Source,
		ROI:        sum.ROI,
		Status:     sum.Status,
		Frames:     fmt.Sprintf("%d of %d", sum.FramesRead, sum.FramesTotal),
		Detections: sum.Detections,
		Failures:   sum.Failures,
		Rate:       fmt.Sprintf("%.1f%%", sum.DetectionRate),
		MeanRadius: fmt.Sprintf("%.2f px", sum.MeanRadius),
		Duration:   duration,
		Started:    sum.Started,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// handleRunChart renders one chart of a run as a standalone HTML page.
// GET /runs/{run_id}/charts/{summary|center|radius|outcomes}
func (ws *WebServer) handleRunChart(w http.ResponseWriter, r *http.Request, runID, kind string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	run, trace := ws.loadRunTrace(w, runID)
	if run == nil {
		return
	}

	var buf bytes.Buffer
	var err error
	switch kind {
	case "summary":
		err = NewSummaryChart(ComputeTraceSummary(run, trace), PrepareOutcomeStrip(trace)).Render(&buf)
	case "center":
		err = NewCenterChart(PrepareCenterSeries(trace), runID).Render(&buf)
	case "radius":
		err = NewRadiusChart(PrepareRadiusSeries(trace), runID).Render(&buf)
	case "outcomes":
		err = NewOutcomeChart(PrepareOutcomeStrip(trace), runID).Render(&buf)
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
