// Package timeline splits the narration length into per-slide intervals.
package timeline

import "math"

// Interval is the slice of the timeline owned by one slide.
type Interval struct {
	Index    int
	Start    float64
	Duration float64
}

// End is the exclusive end time of the interval.
func (iv Interval) End() float64 {
	return iv.Start + iv.Duration
}

// Timeline is an ordered, contiguous run of intervals starting at zero.
type Timeline []Interval

// Plan divides total seconds evenly between max(1, slideCount) intervals.
// With no slides the single interval covers the whole duration. A
// non-positive total yields zero-length intervals.
func Plan(total float64, slideCount int) Timeline {
	n := max(1, slideCount)
	if total < 0 || math.IsNaN(total) {
		total = 0
	}

	per := total / float64(n)
	tl := make(Timeline, n)
	for i := range tl {
		tl[i] = Interval{
			Index:    i,
			Start:    float64(i) * total / float64(n),
			Duration: per,
		}
	}
	return tl
}

// Total is the end of the last interval.
func (tl Timeline) Total() float64 {
	if len(tl) == 0 {
		return 0
	}
	return tl[len(tl)-1].End()
}

// Per is the common interval length.
func (tl Timeline) Per() float64 {
	if len(tl) == 0 {
		return 0
	}
	return tl[0].Duration
}

// At returns the index of the interval shown at time t. Times past the end
// belong to the last interval.
func (tl Timeline) At(t float64) int {
	if len(tl) == 0 {
		return -1
	}
	per := tl.Per()
	if per <= 0 || t <= 0 {
		return 0
	}
	return min(len(tl)-1, int(math.Floor(t/per)))
}
