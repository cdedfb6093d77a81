// Package timesync converts raw acquisition counter values into seconds on
// the behaviour clock. The capture hardware stamps samples with a 32-bit
// counter running at the master clock rate; the counter wraps, individual
// samples can lose their stamp entirely, and analog channels are stamped
// once per packet rather than once per sample. Convert repairs all three.
package timesync

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

const (
	// MasterClockHz is the rate of the acquisition counter.
	MasterClockHz = 1e7

	// AnalogPacketLen is the number of analog samples sharing one
	// hardware timestamp on the reference rig.
	AnalogPacketLen = 2000

	// badSample is the sentinel the acquisition software leaves in place
	// of a timestamp it failed to record.
	badSample = 1<<31 - 1

	// counterWrap is the modulus of the 32-bit hardware counter.
	counterWrap = 1 << 32

	// maxBadSamples bounds how many lost timestamps interpolation may
	// rebuild before the stream is considered unusable.
	maxBadSamples = 10
)

// Convert turns raw counter timestamps into seconds.
//
// Samples stuck at 2^31-1 never received a stamp; up to maxBadSamples of
// them are rebuilt by linear interpolation over their neighbours, more
// than that is an error. Counter wraparound is removed before scaling by
// sampleRate. If the scaled sequence still fails to increase strictly the
// stream is packeted: every sample repeats its packet's start time, so
// per-sample times are rebuilt by interpolating between packet starts.
// packetLen must then match the observed size of the first packet.
func Convert(ts []float64, sampleRate float64, packetLen int) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}

	s := make([]float64, len(ts))
	copy(s, ts)

	if err := repairBadSamples(s); err != nil {
		return nil, err
	}
	unwrap(s)
	for i := range s {
		s[i] /= sampleRate
	}

	if len(s) < 2 || strictlyIncreasing(s) {
		return s, nil
	}
	return perSampleTimes(s, packetLen)
}

// repairBadSamples replaces lost timestamps in place. Repair runs before
// unwrapping: the sentinel value sits near the middle of the counter range
// and would otherwise register as a wrap.
func repairBadSamples(counts []float64) error {
	var bad []int
	for i, v := range counts {
		if v == badSample {
			bad = append(bad, i)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	if len(bad) > maxBadSamples {
		return fmt.Errorf("%d samples lost their timestamp, repair limit is %d", len(bad), maxBadSamples)
	}

	xs := make([]float64, 0, len(counts)-len(bad))
	ys := make([]float64, 0, len(counts)-len(bad))
	for i, v := range counts {
		if v != badSample {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	if len(xs) < 2 {
		return fmt.Errorf("only %d usable timestamps", len(xs))
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return fmt.Errorf("failed to fit repair interpolant: %w", err)
	}
	for _, i := range bad {
		counts[i] = predictLinear(pl, xs, ys, float64(i))
	}
	return nil
}

// unwrap removes 32-bit counter rollover so counts only grow.
func unwrap(counts []float64) {
	var offset float64
	for i := 1; i < len(counts); i++ {
		counts[i] += offset
		if counts[i] < counts[i-1] {
			counts[i] += counterWrap
			offset += counterWrap
		}
	}
}

// perSampleTimes rebuilds strictly increasing times for packeted streams.
// Packet starts are the positions where time advances; every index is then
// re-evaluated on a linear interpolant through those anchors, with the
// final partial packet extended at the last inter-packet rate.
func perSampleTimes(s []float64, packetLen int) ([]float64, error) {
	starts := []int{0}
	for i := 1; i < len(s); i++ {
		if s[i] > s[i-1] {
			starts = append(starts, i)
		}
	}
	if len(starts) < 2 {
		return nil, fmt.Errorf("timestamps never advance")
	}
	if starts[1] != packetLen {
		return nil, fmt.Errorf("first packet holds %d samples, expected %d", starts[1], packetLen)
	}

	xs := make([]float64, len(starts))
	ys := make([]float64, len(starts))
	for i, idx := range starts {
		xs[i] = float64(idx)
		ys[i] = s[idx]
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("failed to fit packet anchors: %w", err)
	}

	out := make([]float64, len(s))
	for i := range out {
		out[i] = predictLinear(pl, xs, ys, float64(i))
	}
	return out, nil
}

// predictLinear evaluates pl at x, extending the boundary segments
// linearly past the fitted range. PiecewiseLinear itself clamps to the
// first and last anchor values outside that range.
func predictLinear(pl interp.PiecewiseLinear, xs, ys []float64, x float64) float64 {
	n := len(xs)
	switch {
	case x < xs[0]:
		slope := (ys[1] - ys[0]) / (xs[1] - xs[0])
		return ys[0] + slope*(x-xs[0])
	case x > xs[n-1]:
		slope := (ys[n-1] - ys[n-2]) / (xs[n-1] - xs[n-2])
		return ys[n-1] + slope*(x-xs[n-1])
	default:
		return pl.Predict(x)
	}
}

func strictlyIncreasing(s []float64) bool {
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			return false
		}
	}
	return true
}
