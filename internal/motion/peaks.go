package motion

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PeakParams configures DetectPeaks.
type PeakParams struct {
	// ThreshStd is the number of standard deviations above the mean a
	// value must reach to be a peak candidate.
	ThreshStd float64 `yaml:"thresh_std"`
	// MinGap is the minimum index distance between kept peaks.
	MinGap int `yaml:"min_gap"`
	// MaxGap is the largest index distance allowed inside one peak group.
	MaxGap int `yaml:"max_gap"`
}

// DefaultPeakParams returns the default peak detection parameters.
func DefaultPeakParams() PeakParams {
	return PeakParams{ThreshStd: 1.0, MinGap: 3, MaxGap: 8}
}

// Peaks is the result of DetectPeaks.
type Peaks struct {
	Count   int
	Indices []int
}

// flatStd is the spread below which a window is treated as motionless.
const flatStd = 1e-12

// DetectPeaks counts the distinct speed spikes in values.
//
// Candidates are indices at or above mean+ThreshStd·std. Runs of adjacent
// candidates collapse to the first index of the run, kept peaks are at least
// MinGap apart, and a gap larger than MaxGap starts a new group, discarding
// the peaks kept before it.
func DetectPeaks(values []float64, p PeakParams) Peaks {
	if len(values) == 0 {
		return Peaks{Indices: []int{}}
	}

	mean, variance := stat.PopMeanVariance(values, nil)
	std := math.Sqrt(variance)
	if std < flatStd {
		return Peaks{Indices: []int{}}
	}
	threshold := mean + p.ThreshStd*std

	var candidates []int
	for i, v := range values {
		if v >= threshold {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return Peaks{Indices: []int{}}
	}

	merged := []int{candidates[0]}
	for i := 1; i < len(candidates); i++ {
		if candidates[i]-candidates[i-1] > 1 {
			merged = append(merged, candidates[i])
		}
	}

	kept := []int{merged[0]}
	for _, idx := range merged[1:] {
		if idx-kept[len(kept)-1] >= p.MinGap {
			kept = append(kept, idx)
		}
	}

	group := []int{kept[0]}
	for i := 1; i < len(kept); i++ {
		if kept[i]-kept[i-1] > p.MaxGap {
			group = []int{kept[i]}
			continue
		}
		group = append(group, kept[i])
	}

	return Peaks{Count: len(group), Indices: group}
}
