package timegrid

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateMonthly(t *testing.T) {
	grid, err := Generate(date(2020, time.January, 1), date(2021, time.January, 1), Monthly())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(grid) != 12 {
		t.Fatalf("expected 12 intervals, got %d", len(grid))
	}
	if !grid[0].Start.Equal(date(2020, time.January, 1)) {
		t.Errorf("first interval starts at %v", grid[0].Start)
	}
	if !grid[11].End.Equal(date(2021, time.January, 1)) {
		t.Errorf("last interval ends at %v", grid[11].End)
	}
}

func TestGenerateYearly(t *testing.T) {
	grid, err := Generate(date(2010, time.January, 1), date(2014, time.January, 1), Yearly())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(grid) != 4 {
		t.Fatalf("expected 4 intervals, got %d", len(grid))
	}
	for i, iv := range grid {
		if iv.Start.Year() != 2010+i {
			t.Errorf("interval %d starts in year %d", i, iv.Start.Year())
		}
	}
}

func TestGenerateFixed(t *testing.T) {
	grid, err := Generate(date(2021, time.March, 1), date(2021, time.March, 4), Every(24*time.Hour))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(grid) != 3 {
		t.Fatalf("expected 3 intervals, got %d", len(grid))
	}
	for i, iv := range grid {
		if iv.End.Sub(iv.Start) != 24*time.Hour {
			t.Errorf("interval %d has length %v", i, iv.End.Sub(iv.Start))
		}
	}
}

// The grid must cover exactly [start, end) with no gaps or overlaps,
// regardless of alignment.
func TestGenerateCoverage(t *testing.T) {
	cases := []struct {
		name       string
		start, end time.Time
		g          Granularity
	}{
		{"monthly aligned", date(2020, time.January, 1), date(2020, time.July, 1), Monthly()},
		{"monthly unaligned", time.Date(2020, time.January, 15, 6, 0, 0, 0, time.UTC), date(2020, time.April, 10), Monthly()},
		{"yearly unaligned", date(2019, time.June, 1), date(2022, time.February, 1), Yearly()},
		{"fixed uneven tail", date(2021, time.January, 1), time.Date(2021, time.January, 2, 12, 0, 0, 0, time.UTC), Every(24 * time.Hour)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grid, err := Generate(tc.start, tc.end, tc.g)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(grid) == 0 {
				t.Fatal("empty grid")
			}
			if !grid[0].Start.Equal(tc.start) {
				t.Errorf("grid starts at %v, want %v", grid[0].Start, tc.start)
			}
			if !grid[len(grid)-1].End.Equal(tc.end) {
				t.Errorf("grid ends at %v, want %v", grid[len(grid)-1].End, tc.end)
			}
			for i := 1; i < len(grid); i++ {
				if !grid[i].Start.Equal(grid[i-1].End) {
					t.Errorf("gap between interval %d and %d: %v != %v", i-1, i, grid[i-1].End, grid[i].Start)
				}
			}
			for _, iv := range grid {
				if !iv.Start.Before(iv.End) {
					t.Errorf("empty or inverted interval %v", iv)
				}
			}
		})
	}
}

func TestGenerateEmptyRange(t *testing.T) {
	grid, err := Generate(date(2020, time.January, 1), date(2020, time.January, 1), Monthly())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(grid) != 0 {
		t.Fatalf("expected empty grid, got %d intervals", len(grid))
	}
}

func TestGenerateInvalidRange(t *testing.T) {
	_, err := Generate(date(2021, time.January, 1), date(2020, time.January, 1), Monthly())
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	_, err = Generate(date(2020, time.January, 1), date(2021, time.January, 1), Every(0))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for zero step, got %v", err)
	}

	_, err = Generate(date(2020, time.January, 1), date(2021, time.January, 1), Granularity{Unit: Unit(42)})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for unknown unit, got %v", err)
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Granularity
	}{
		{"year", Yearly()},
		{"Month", Monthly()},
		{"24h", Every(24 * time.Hour)},
		{"30m", Every(30 * time.Minute)},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := Parse("fortnight"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Parse(fortnight): expected ErrInvalidRange, got %v", err)
	}
}

func TestPathSegments(t *testing.T) {
	iv := Interval{Start: date(2013, time.September, 1), End: date(2013, time.October, 1)}

	if got := iv.PathSegments(Monthly()); len(got) != 2 || got[0] != "2013" || got[1] != "09" {
		t.Errorf("monthly segments = %v", got)
	}
	if got := iv.PathSegments(Yearly()); len(got) != 1 || got[0] != "2013" {
		t.Errorf("yearly segments = %v", got)
	}
	if got := iv.PathSegments(Every(time.Hour)); got != nil {
		t.Errorf("fixed segments = %v, want nil", got)
	}
}
