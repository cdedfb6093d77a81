// Package pupil re-exports the core pupil tracking types so external
// callers can depend on one import path instead of the internal package
// layout.
//
// New code inside this repository should import the canonical packages
// directly:
//
//	internal/eyetrack, internal/roi, internal/timesync, internal/db, internal/monitor
package pupil

import (
	"github.com/visionrig-data/pupil.report/internal/eyetrack"
	"github.com/visionrig-data/pupil.report/internal/roi"
)

// ── Parameters ───────────────────────────────────────────────────────

type Params = eyetrack.Params
type ConfigurationError = eyetrack.ConfigurationError

var DefaultParams = eyetrack.DefaultParams
var LoadParams = eyetrack.LoadParams

// ── Frames and regions ───────────────────────────────────────────────

type Frame = eyetrack.Frame
type ROI = eyetrack.ROI
type Point = eyetrack.Point
type Contour = eyetrack.Contour

var NewFrame = eyetrack.NewFrame
var FrameFromPix = eyetrack.FrameFromPix
var ParseROI = eyetrack.ParseROI

// ── Interactive region selection ─────────────────────────────────────

type ROISelector = roi.Selector
type PointerEvent = roi.Event
type PointerKind = roi.Kind

var NewROISelector = roi.NewSelector
var ErrROIIncomplete = roi.ErrIncomplete

const (
	PointerPress   = roi.Press
	PointerMove    = roi.Move
	PointerRelease = roi.Release
)

// ── Frame sources ────────────────────────────────────────────────────

type FrameSource = eyetrack.FrameSource
type DirSource = eyetrack.DirSource
type SyntheticSource = eyetrack.SyntheticSource

var NewDirSource = eyetrack.NewDirSource
var NewSyntheticSource = eyetrack.NewSyntheticSource

// ── Tracking ─────────────────────────────────────────────────────────

type Tracker = eyetrack.PupilTracker
type Trace = eyetrack.Trace
type FrameRecord = eyetrack.FrameRecord
type Detection = eyetrack.Detection
type Outcome = eyetrack.Outcome
type RunStatus = eyetrack.RunStatus

var NewTracker = eyetrack.NewPupilTracker
var OutcomeFromString = eyetrack.OutcomeFromString
var ErrTrackingAborted = eyetrack.ErrTrackingAborted

const (
	OutcomeDecodeFailure = eyetrack.OutcomeDecodeFailure
	OutcomeLowContrast   = eyetrack.OutcomeLowContrast
	OutcomeNoDetection   = eyetrack.OutcomeNoDetection
	OutcomeDetected      = eyetrack.OutcomeDetected
)

const (
	RunCompleted = eyetrack.RunCompleted
	RunAborted   = eyetrack.RunAborted
)
