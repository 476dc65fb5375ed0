package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/mmynk/roundtable/internal/models"
)

// DetailedPercentiles is the fixed percentile set reported by
// DurationStats.
var DetailedPercentiles = []int{25, 50, 75, 90, 95, 99}

// Durations extracts turn lengths in seconds from terminal turns
// (completed or skipped) that have both timestamps, optionally restricted
// to turns started within [start, end].
func Durations(turns []*models.Turn, start, end *time.Time) []float64 {
	var out []float64
	for _, t := range turns {
		if t.Status != models.TurnStatusCompleted && t.Status != models.TurnStatusSkipped {
			continue
		}
		d, ok := t.Duration()
		if !ok {
			continue
		}
		if start != nil && t.StartedAt.Before(*start) {
			continue
		}
		if end != nil && t.StartedAt.After(*end) {
			continue
		}
		out = append(out, d.Seconds())
	}
	return out
}

// Percentiles computes the requested percentiles (0-100) over the
// durations using linear interpolation between closest ranks. Empty
// input maps every requested percentile to 0.
func Percentiles(durations []float64, percentiles []int) map[int]float64 {
	result := make(map[int]float64, len(percentiles))
	if len(durations) == 0 {
		for _, p := range percentiles {
			result[p] = 0
		}
		return result
	}

	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	sort.Float64s(sorted)

	for _, p := range percentiles {
		index := float64(p) / 100 * float64(len(sorted)-1)
		lower := math.Floor(index)
		if index == lower {
			result[p] = sorted[int(index)]
			continue
		}
		upper := math.Ceil(index)
		fraction := index - lower
		result[p] = sorted[int(lower)] + fraction*(sorted[int(upper)]-sorted[int(lower)])
	}
	return result
}

// DurationStats is the detailed-stats view over a duration set.
type DurationStats struct {
	Count       int             `json:"count"`
	Min         float64         `json:"min"`
	Max         float64         `json:"max"`
	Mean        float64         `json:"mean"`
	Median      float64         `json:"median"`
	StdDev      float64         `json:"std_dev"`
	Percentiles map[int]float64 `json:"percentiles"`
}

// Stats computes count, min, max, mean, median, sample standard
// deviation, and the fixed detailed percentile set. Empty input yields
// zero values with an empty percentile map.
func Stats(durations []float64) DurationStats {
	if len(durations) == 0 {
		return DurationStats{Percentiles: map[int]float64{}}
	}

	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	sort.Float64s(sorted)

	var sum float64
	for _, d := range sorted {
		sum += d
	}
	mean := sum / float64(len(sorted))

	return DurationStats{
		Count:       len(sorted),
		Min:         sorted[0],
		Max:         sorted[len(sorted)-1],
		Mean:        round2(mean),
		Median:      Percentiles(sorted, []int{50})[50],
		StdDev:      round2(sampleStdDev(sorted, mean)),
		Percentiles: Percentiles(sorted, DetailedPercentiles),
	}
}

// sampleStdDev uses the N-1 denominator; 0 when count <= 1.
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
