package expect

import (
	"context"
	"errors"
	"testing"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"github.com/mgjeon/heliodata/internal/timegrid"
)

func testBucket(t *testing.T) *blob.Bucket {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	t.Cleanup(func() { bucket.Close() })
	return bucket
}

func testInterval(month time.Month) timegrid.Interval {
	start := time.Date(2020, month, 1, 0, 0, 0, 0, time.UTC)
	return timegrid.Interval{Start: start, End: start.AddDate(0, 1, 0)}
}

func TestDims(t *testing.T) {
	k := Dims("source", "a", "wavelength", "195")
	if string(k) != "source=a,wavelength=195" {
		t.Fatalf("key = %q", k)
	}
	if v := k.Values(); len(v) != 2 || v[0] != "a" || v[1] != "195" {
		t.Errorf("values = %v", v)
	}
	if v := k.Value("wavelength"); v != "195" {
		t.Errorf("Value(wavelength) = %q", v)
	}
	if v := k.Value("series"); v != "" {
		t.Errorf("Value(series) = %q, want empty", v)
	}
}

func TestGetAbsentIsPending(t *testing.T) {
	ctx := context.Background()
	table, err := Load(ctx, testBucket(t), "test/expectations.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cell := table.Get(testInterval(time.January), Dims("wavelength", "171"))
	if cell.Status != StatusPending {
		t.Fatalf("absent cell status = %s, want pending", cell.Status)
	}
}

func TestSetPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	bucket := testBucket(t)
	iv := testInterval(time.January)
	dims := Dims("wavelength", "171")

	table, err := Load(ctx, bucket, "test/expectations.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = table.Set(ctx, iv, dims, Cell{Status: StatusResolved, Count: 3, Path: "soho-eit/171/2020/01"})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	reloaded, err := Load(ctx, bucket, "test/expectations.json")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	cell := reloaded.Get(iv, dims)
	if cell.Status != StatusResolved || cell.Count != 3 {
		t.Fatalf("reloaded cell = %+v", cell)
	}
	if cell.Path != "soho-eit/171/2020/01" {
		t.Errorf("reloaded path = %q", cell.Path)
	}
}

func TestNeedsEvaluationStatuses(t *testing.T) {
	ctx := context.Background()
	iv := testInterval(time.January)
	dims := Dims("wavelength", "171")

	cases := []struct {
		status Status
		want   bool
	}{
		{StatusPending, true},
		{StatusQueryFailed, true},
		{StatusFetchFailed, true},
		{StatusNoData, true}, // no skip-set
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			table, err := Load(ctx, testBucket(t), "test/expectations.json")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if err := table.Set(ctx, iv, dims, Cell{Status: tc.status}); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := table.NeedsEvaluation(ctx, iv, dims)
			if err != nil {
				t.Fatalf("NeedsEvaluation: %v", err)
			}
			if got != tc.want {
				t.Errorf("NeedsEvaluation = %v, want %v", got, tc.want)
			}
		})
	}
}

// A resolved cell is settled only while the local artifact count matches the
// recorded count; deleting files locally must flip it back without any Set.
func TestNeedsEvaluationCountDrift(t *testing.T) {
	ctx := context.Background()
	iv := testInterval(time.January)
	dims := Dims("wavelength", "171")

	localCount := 3
	table, err := Load(ctx, testBucket(t), "test/expectations.json",
		WithLocalCounter(func(ctx context.Context, iv timegrid.Interval, d DimensionKey) (int, error) {
			return localCount, nil
		}),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := table.Set(ctx, iv, dims, Cell{Status: StatusResolved, Count: 3}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	needs, err := table.NeedsEvaluation(ctx, iv, dims)
	if err != nil {
		t.Fatalf("NeedsEvaluation: %v", err)
	}
	if needs {
		t.Fatal("resolved cell with matching count should not need evaluation")
	}

	// Simulate manual deletion of one artifact.
	localCount = 2
	needs, err = table.NeedsEvaluation(ctx, iv, dims)
	if err != nil {
		t.Fatalf("NeedsEvaluation after drift: %v", err)
	}
	if !needs {
		t.Fatal("count drift should make the cell need evaluation")
	}
}

func TestNeedsEvaluationIdempotent(t *testing.T) {
	ctx := context.Background()
	iv := testInterval(time.January)
	dims := Dims("wavelength", "171")

	calls := 0
	table, err := Load(ctx, testBucket(t), "test/expectations.json",
		WithLocalCounter(func(ctx context.Context, iv timegrid.Interval, d DimensionKey) (int, error) {
			calls++
			return 3, nil
		}),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := table.Set(ctx, iv, dims, Cell{Status: StatusResolved, Count: 3}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	first, err := table.NeedsEvaluation(ctx, iv, dims)
	if err != nil {
		t.Fatalf("NeedsEvaluation: %v", err)
	}
	second, err := table.NeedsEvaluation(ctx, iv, dims)
	if err != nil {
		t.Fatalf("NeedsEvaluation: %v", err)
	}
	if first != second {
		t.Fatalf("results differ: %v then %v", first, second)
	}
	if cell := table.Get(iv, dims); cell.Status != StatusResolved || cell.Count != 3 {
		t.Fatalf("cell mutated by NeedsEvaluation: %+v", cell)
	}
	if calls != 2 {
		t.Errorf("counter called %d times, want 2", calls)
	}
}

func TestNeedsEvaluationSkipSet(t *testing.T) {
	ctx := context.Background()
	bucket := testBucket(t)
	iv := testInterval(time.January)
	dims := Dims("wavelength", "171")

	table, err := Load(ctx, bucket, "test/expectations.json", WithSkipStatuses(StatusNoData))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := table.Set(ctx, iv, dims, Cell{Status: StatusNoData}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	needs, err := table.NeedsEvaluation(ctx, iv, dims)
	if err != nil {
		t.Fatalf("NeedsEvaluation: %v", err)
	}
	if needs {
		t.Fatal("no-data cell in the skip-set should be terminal")
	}

	// Same table without the skip-set: eligible again.
	plain, err := Load(ctx, bucket, "test/expectations.json")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	needs, err = plain.NeedsEvaluation(ctx, iv, dims)
	if err != nil {
		t.Fatalf("NeedsEvaluation: %v", err)
	}
	if !needs {
		t.Fatal("no-data cell without the skip-set should be retried")
	}
}

// Widening the dimension set grows the table without disturbing resolved
// cells.
func TestMergeSchemaGrowth(t *testing.T) {
	ctx := context.Background()
	bucket := testBucket(t)
	grid := []timegrid.Interval{testInterval(time.January), testInterval(time.February)}
	dimA := Dims("wavelength", "171")
	dimB := Dims("wavelength", "195")
	dimC := Dims("wavelength", "304")

	table, err := Load(ctx, bucket, "test/expectations.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := table.Merge(ctx, grid, []DimensionKey{dimA, dimB}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := table.Set(ctx, grid[0], dimA, Cell{Status: StatusResolved, Count: 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := table.Set(ctx, grid[0], dimB, Cell{Status: StatusNoData}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// New run with a wider dimension set.
	grown, err := Load(ctx, bucket, "test/expectations.json")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := grown.Merge(ctx, grid, []DimensionKey{dimA, dimB, dimC}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if cell := grown.Get(grid[0], dimA); cell.Status != StatusResolved || cell.Count != 2 {
		t.Errorf("A cell disturbed: %+v", cell)
	}
	if cell := grown.Get(grid[0], dimB); cell.Status != StatusNoData {
		t.Errorf("B cell disturbed: %+v", cell)
	}
	if cell := grown.Get(grid[0], dimC); cell.Status != StatusPending {
		t.Errorf("new C cell = %+v, want pending", cell)
	}
	if n := grown.Len(); n != 6 {
		t.Errorf("table has %d cells, want 6", n)
	}
}

func TestLoadCorrupt(t *testing.T) {
	ctx := context.Background()
	bucket := testBucket(t)
	if err := bucket.WriteAll(ctx, "test/expectations.json", []byte("{not json"), nil); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	_, err := Load(ctx, bucket, "test/expectations.json")
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestLoadBackup(t *testing.T) {
	ctx := context.Background()
	bucket := testBucket(t)
	iv := testInterval(time.January)
	dims := Dims("wavelength", "171")

	table, err := Load(ctx, bucket, "test/expectations.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := table.Set(ctx, iv, dims, Cell{Status: StatusNoData}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := Load(ctx, bucket, "test/expectations.json", WithBackup(true)); err != nil {
		t.Fatalf("Load with backup: %v", err)
	}

	iter := bucket.List(&blob.ListOptions{Prefix: "test/expectations.json.bak-"})
	if _, err := iter.Next(ctx); err != nil {
		t.Fatalf("expected a backup object: %v", err)
	}
}

func TestOutstanding(t *testing.T) {
	ctx := context.Background()
	table, err := Load(ctx, testBucket(t), "test/expectations.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dims := Dims("wavelength", "171")
	if err := table.Set(ctx, testInterval(time.January), dims, Cell{Status: StatusResolved, Count: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := table.Set(ctx, testInterval(time.February), dims, Cell{Status: StatusQueryFailed}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := table.Set(ctx, testInterval(time.March), dims, Cell{Status: StatusQueryFailed}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	counts := table.Outstanding()
	if counts[StatusResolved] != 1 || counts[StatusQueryFailed] != 2 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("NO_DATA"); err != nil || s != StatusNoData {
		t.Errorf("ParseStatus(NO_DATA) = %v, %v", s, err)
	}
	if _, err := ParseStatus("NODATA7"); err == nil {
		t.Error("expected error for unknown status")
	}
}
