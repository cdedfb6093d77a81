package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/visionrig-data/pupil.report/internal/eyetrack"
)

// ErrRunNotFound reports a lookup for a run ID that is not in the store.
var ErrRunNotFound = errors.New("run not found")

// TrackRun represents one persisted tracking invocation. Counters and
// status are derived from the trace at save time so they cannot drift from
// the stored records.
type TrackRun struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	ROI          string    `json:"roi"`
	ParamsJSON   string    `json:"params_json"`
	Status       string    `json:"status"`
	FramesTotal  int       `json:"frames_total"`
	FramesRead   int       `json:"frames_read"`
	Detections   int       `json:"detections"`
	Failures     int       `json:"failures"`
	VideoSeconds *float64  `json:"video_seconds"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// SaveTrace persists the run metadata and every record of its trace in one
// transaction. A missing run ID is assigned; status and counters are filled
// from the trace.
func (db *DB) SaveTrace(run *TrackRun, trace *eyetrack.Trace) error {
	if run == nil || trace == nil {
		return fmt.Errorf("nil run or trace")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Status = trace.Status.String()
	run.FramesRead = len(trace.Records)
	run.Detections = trace.Detections()
	run.Failures = trace.Failures()
	if run.ParamsJSON == "" {
		run.ParamsJSON = "{}"
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO track_runs (
			id, source, roi, params_json, status,
			frames_total, frames_read, detections, failures,
			video_seconds, started_unix, finished_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Source,
		run.ROI,
		run.ParamsJSON,
		run.Status,
		run.FramesTotal,
		run.FramesRead,
		run.Detections,
		run.Failures,
		run.VideoSeconds,
		run.StartedAt.Unix(),
		run.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO track_records (
			run_id, frame_id, outcome, frame_intensity,
			center_x, center_y, major_radius,
			rect_cx, rect_cy, rect_minor, rect_major, rect_angle,
			contour_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range trace.Records {
		var (
			centerX, centerY, majorRadius *float64
			rectCX, rectCY                *float64
			rectMinor, rectMajor          *float64
			rectAngle                     *float64
			contourJSON                   *string
		)
		if d := rec.Detection; d != nil {
			rect := d.RotatedRect
			centerX, centerY, majorRadius = &d.CenterX, &d.CenterY, &d.MajorRadius
			rectCX, rectCY = &rect[0], &rect[1]
			rectMinor, rectMajor, rectAngle = &rect[2], &rect[3], &rect[4]

			blob, err := marshalContour(d.Contour)
			if err != nil {
				return fmt.Errorf("failed to encode contour for frame %d: %w", rec.FrameID, err)
			}
			contourJSON = &blob
		}

		if _, err := stmt.Exec(
			run.ID,
			rec.FrameID,
			rec.Outcome.String(),
			rec.FrameIntensity,
			centerX, centerY, majorRadius,
			rectCX, rectCY, rectMinor, rectMajor, rectAngle,
			contourJSON,
		); err != nil {
			return fmt.Errorf("failed to insert record for frame %d: %w", rec.FrameID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (db *DB) GetRun(id string) (*TrackRun, error) {
	query := `
		SELECT
			id, source, roi, params_json, status,
			frames_total, frames_read, detections, failures,
			video_seconds, started_unix, finished_unix
		FROM track_runs
		WHERE id = ?
	`

	var run TrackRun
	var startedUnix, finishedUnix int64

	err := db.QueryRow(query, id).Scan(
		&run.ID,
		&run.Source,
		&run.ROI,
		&run.ParamsJSON,
		&run.Status,
		&run.FramesTotal,
		&run.FramesRead,
		&run.Detections,
		&run.Failures,
		&run.VideoSeconds,
		&startedUnix,
		&finishedUnix,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.StartedAt = time.Unix(startedUnix, 0)
	run.FinishedAt = time.Unix(finishedUnix, 0)
	return &run, nil
}

// ListRuns retrieves the most recent runs, newest first. A non-positive
// limit selects the default of 100.
func (db *DB) ListRuns(limit int) ([]TrackRun, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT
			id, source, roi, params_json, status,
			frames_total, frames_read, detections, failures,
			video_seconds, started_unix, finished_unix
		FROM track_runs
		ORDER BY started_unix DESC, id ASC
		LIMIT ?
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []TrackRun
	for rows.Next() {
		var run TrackRun
		var startedUnix, finishedUnix int64

		if err := rows.Scan(
			&run.ID,
			&run.Source,
			&run.ROI,
			&run.ParamsJSON,
			&run.Status,
			&run.FramesTotal,
			&run.FramesRead,
			&run.Detections,
			&run.Failures,
			&run.VideoSeconds,
			&startedUnix,
			&finishedUnix,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt = time.Unix(startedUnix, 0)
		run.FinishedAt = time.Unix(finishedUnix, 0)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// LoadTrace rebuilds the full trace of a run, records in frame order.
func (db *DB) LoadTrace(runID string) (*eyetrack.Trace, error) {
	run, err := db.GetRun(runID)
	if err != nil {
		return nil, err
	}

	trace := &eyetrack.Trace{Status: eyetrack.RunCompleted}
	if run.Status == eyetrack.RunAborted.String() {
		trace.Status = eyetrack.RunAborted
	}

	query := `
		SELECT
			frame_id, outcome, frame_intensity,
			center_x, center_y, major_radius,
			rect_cx, rect_cy, rect_minor, rect_major, rect_angle,
			contour_json
		FROM track_records
		WHERE run_id = ?
		ORDER BY frame_id ASC
	`

	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec                           eyetrack.FrameRecord
			outcome                       string
			centerX, centerY, majorRadius *float64
			rectCX, rectCY                *float64
			rectMinor, rectMajor          *float64
			rectAngle                     *float64
			contourJSON                   *string
		)

		if err := rows.Scan(
			&rec.FrameID,
			&outcome,
			&rec.FrameIntensity,
			&centerX, &centerY, &majorRadius,
			&rectCX, &rectCY, &rectMinor, &rectMajor, &rectAngle,
			&contourJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec.Outcome, err = eyetrack.OutcomeFromString(outcome)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", rec.FrameID, err)
		}

		if rec.Outcome == eyetrack.OutcomeDetected {
			if centerX == nil || centerY == nil || majorRadius == nil ||
				rectCX == nil || rectCY == nil || rectMinor == nil ||
				rectMajor == nil || rectAngle == nil || contourJSON == nil {
				return nil, fmt.Errorf("frame %d: detected record is missing detection columns", rec.FrameID)
			}
			contour, err := unmarshalContour(*contourJSON)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", rec.FrameID, err)
			}
			rec.Detection = &eyetrack.Detection{
				CenterX:     *centerX,
				CenterY:     *centerY,
				MajorRadius: *majorRadius,
				RotatedRect: [5]float64{*rectCX, *rectCY, *rectMinor, *rectMajor, *rectAngle},
				Contour:     contour,
			}
		}

		trace.Records = append(trace.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return trace, nil
}

// DeleteRun deletes a run and, through the foreign key cascade, its records.
func (db *DB) DeleteRun(id string) error {
	result, err := db.Exec(`DELETE FROM track_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// marshalContour encodes boundary points as a compact [[x, y], ...] JSON
// array.
func marshalContour(c eyetrack.Contour) (string, error) {
	pairs := make([][2]int, len(c))
	for i, p := range c {
		pairs[i] = [2]int{p.X, p.Y}
	}
	b, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal contour: %w", err)
	}
	return string(b), nil
}

func unmarshalContour(s string) (eyetrack.Contour, error) {
	var pairs [][2]int
	if err := json.Unmarshal([]byte(s), &pairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contour: %w", err)
	}
	c := make(eyetrack.Contour, len(pairs))
	for i, p := range pairs {
		c[i] = eyetrack.Point{X: p[0], Y: p[1]}
	}
	return c, nil
}
