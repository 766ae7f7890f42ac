// Package timegrid partitions a download run's time range into ordered
// intervals.
//
// A grid is generated at one of three granularities:
//   - year: calendar-aligned yearly intervals
//   - month: calendar-aligned monthly intervals
//   - fixed: intervals of a fixed duration starting at the range start
//
// All intervals are half-open [start, end), contiguous, and ascending, so a
// resumed run visits cells in the same order as the run it replaces.
//
// # Usage
//
//	grid, err := timegrid.Generate(start, end, timegrid.Monthly())
//	for _, iv := range grid {
//	    // iv.Key() is the expectation table key
//	    // iv.PathSegments(g) are the artifact directory components
//	}
package timegrid
