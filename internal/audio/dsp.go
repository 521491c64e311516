// Package audio holds the sample-level post-processing applied to model
// output: level normalization, fades, signal description and WAV encoding.
//
// Samples are float64 in [-1, 1]. Every function here returns a new slice
// and leaves its input untouched.
package audio

import (
	"math"

	"github.com/liujianjie/BeatForgeAI/internal/models"
)

// dbFloor keeps silence finite when converting levels to decibels.
const dbFloor = 1e-10

// RMS returns the root-mean-square level of samples, 0 for an empty buffer.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample value.
func Peak(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// ToDB converts a linear level to decibels relative to full scale.
func ToDB(level float64) float64 {
	return 20 * math.Log10(level+dbFloor)
}

// Normalize scales samples so their RMS matches targetDB, then scales the
// whole buffer down if the result would clip. Silence is returned as is.
func Normalize(samples []float64, targetDB float64) []float64 {
	out := clone(samples)
	rms := RMS(samples)
	if rms == 0 {
		return out
	}

	gain := math.Pow(10, targetDB/20) / rms
	for i := range out {
		out[i] *= gain
	}

	if peak := Peak(out); peak > 1.0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}

// NormalizePeak scales samples so the loudest one sits at full scale.
func NormalizePeak(samples []float64) []float64 {
	out := clone(samples)
	peak := Peak(samples)
	if peak == 0 {
		return out
	}
	for i := range out {
		out[i] /= peak
	}
	return out
}

// ApplyFades ramps the first fadeInMs linearly up from 0 and the last
// fadeOutMs down to 0. A fade is skipped when its length in samples is zero
// or not shorter than the buffer.
func ApplyFades(samples []float64, sampleRate, fadeInMs, fadeOutMs int) []float64 {
	out := clone(samples)
	n := len(out)

	if in := sampleRate * fadeInMs / 1000; in > 0 && in < n {
		for i := 0; i < in; i++ {
			out[i] *= ramp(i, in)
		}
	}
	if fo := sampleRate * fadeOutMs / 1000; fo > 0 && fo < n {
		start := n - fo
		for i := 0; i < fo; i++ {
			out[start+i] *= 1 - ramp(i, fo)
		}
	}
	return out
}

// ramp returns the i-th of n evenly spaced points from 0 to 1 inclusive.
func ramp(i, n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(i) / float64(n-1)
}

// Describe reports duration and levels of a mono buffer.
func Describe(samples []float64, sampleRate int) models.AudioInfo {
	var duration float64
	if sampleRate > 0 {
		duration = float64(len(samples)) / float64(sampleRate)
	}
	rms := RMS(samples)
	peak := Peak(samples)

	return models.AudioInfo{
		DurationSeconds: round(duration, 2),
		SampleRate:      sampleRate,
		Samples:         len(samples),
		RMSLevel:        round(rms, 4),
		PeakLevel:       round(peak, 4),
		RMSDB:           round(ToDB(rms), 2),
		PeakDB:          round(ToDB(peak), 2),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clone(samples []float64) []float64 {
	out := make([]float64, len(samples))
	copy(out, samples)
	return out
}
