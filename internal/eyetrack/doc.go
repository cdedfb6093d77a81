// Package eyetrack owns the pupil-detection pipeline for infrared eye
// video.
//
// Responsibilities: frame decoding and contrast gating, candidate
// extraction (smooth, threshold, border following), ellipse fitting and
// scoring, per-frame winner selection, and the run trace. Key types:
// Frame, ROI, PupilTracker, Trace, FrameRecord.
//
// The per-frame pipeline is pure: all cross-frame memory lives in
// TrackState, which only an accepted detection updates and only a
// no-detection frame resets.
package eyetrack
