package timegrid

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRange is returned when start is after end or the granularity is
// not recognized.
var ErrInvalidRange = errors.New("timegrid: invalid range")

// Unit is the time-bucketing unit used to partition a download run.
type Unit int

const (
	// UnitYear produces calendar-aligned yearly intervals.
	UnitYear Unit = iota
	// UnitMonth produces calendar-aligned monthly intervals.
	UnitMonth
	// UnitFixed produces fixed-duration intervals starting at the range start.
	UnitFixed
)

func (u Unit) String() string {
	switch u {
	case UnitYear:
		return "year"
	case UnitMonth:
		return "month"
	case UnitFixed:
		return "fixed"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// Granularity selects how a time range is partitioned into intervals.
// Step is only used when Unit is UnitFixed.
type Granularity struct {
	Unit Unit
	Step time.Duration
}

// Yearly returns a calendar-year granularity.
func Yearly() Granularity {
	return Granularity{Unit: UnitYear}
}

// Monthly returns a calendar-month granularity.
func Monthly() Granularity {
	return Granularity{Unit: UnitMonth}
}

// Every returns a fixed-duration granularity.
func Every(step time.Duration) Granularity {
	return Granularity{Unit: UnitFixed, Step: step}
}

// Parse parses a granularity string: "year", "month", or a duration such
// as "24h" or "30m".
func Parse(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "year":
		return Yearly(), nil
	case "month":
		return Monthly(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Granularity{}, fmt.Errorf("%w: granularity %q is not year, month, or a duration", ErrInvalidRange, s)
	}
	return Every(d), nil
}

func (g Granularity) String() string {
	if g.Unit == UnitFixed {
		return g.Step.String()
	}
	return g.Unit.String()
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Key returns the canonical table key for the interval, the RFC 3339
// timestamp of its start.
func (iv Interval) Key() string {
	return iv.Start.UTC().Format(time.RFC3339)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.UTC().Format(time.RFC3339), iv.End.UTC().Format(time.RFC3339))
}

// Contains reports whether t falls inside the interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// PathSegments returns the directory components used to organize artifacts
// for this interval: year for yearly grids, year/month for monthly grids.
// Fixed-duration grids use a flat layout and return nil.
func (iv Interval) PathSegments(g Granularity) []string {
	switch g.Unit {
	case UnitYear:
		return []string{fmt.Sprintf("%04d", iv.Start.UTC().Year())}
	case UnitMonth:
		t := iv.Start.UTC()
		return []string{fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month()))}
	default:
		return nil
	}
}

// Generate partitions [start, end) into ordered, contiguous, non-overlapping
// intervals. Yearly and monthly intervals are calendar-aligned; the first and
// last intervals are clipped so the sequence covers exactly [start, end).
// Returns ErrInvalidRange when start is after end, the unit is unknown, or a
// fixed granularity has a non-positive step.
func Generate(start, end time.Time, g Granularity) ([]Interval, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	var intervals []Interval
	switch g.Unit {
	case UnitYear:
		for cur := start; cur.Before(end); {
			next := time.Date(cur.Year()+1, time.January, 1, 0, 0, 0, 0, cur.Location())
			intervals = append(intervals, clip(cur, next, end))
			cur = next
		}
	case UnitMonth:
		for cur := start; cur.Before(end); {
			next := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, cur.Location()).AddDate(0, 1, 0)
			intervals = append(intervals, clip(cur, next, end))
			cur = next
		}
	case UnitFixed:
		if g.Step <= 0 {
			return nil, fmt.Errorf("%w: fixed granularity requires a positive step, got %v", ErrInvalidRange, g.Step)
		}
		for cur := start; cur.Before(end); cur = cur.Add(g.Step) {
			intervals = append(intervals, clip(cur, cur.Add(g.Step), end))
		}
	default:
		return nil, fmt.Errorf("%w: unknown granularity unit %v", ErrInvalidRange, g.Unit)
	}

	return intervals, nil
}

func clip(start, next, end time.Time) Interval {
	if next.After(end) {
		next = end
	}
	return Interval{Start: start, End: next}
}
