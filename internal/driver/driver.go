package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mgjeon/heliodata/internal/archive"
	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/progress"
	"github.com/mgjeon/heliodata/internal/store"
	"github.com/mgjeon/heliodata/internal/timegrid"
)

// Options configures a reconciliation run.
type Options struct {
	// Mission name, used for logging.
	Mission string

	// Workers is the number of parallel fetch workers per cell.
	// Queries are always sequential. Default: 4.
	Workers int

	// FailureBackoff is the pause after a transient query failure before
	// moving to the next cell, so a struggling archive is not hammered.
	// Default: 2s.
	FailureBackoff time.Duration

	// Validate checks fetched artifacts for a FITS primary header and
	// discards invalid ones.
	Validate bool

	// Checksum computes a SHA-256 digest of each fetched artifact and logs
	// it at debug level.
	Checksum bool

	// Exclude marks cells outside the mission's observable range. Excluded
	// pending cells are recorded as no-data without querying the archive.
	Exclude func(timegrid.Interval, expect.DimensionKey) bool

	// Logger for per-transition logging. Default: slog.Default().
	Logger *slog.Logger

	// Progress is an optional run reporter.
	Progress *progress.Reporter
}

// Driver walks the expectation table against a remote archive: every cell
// that needs evaluation is queried, fetched, and its status recorded. A run
// is resumable at any point because the table persists after every
// transition.
type Driver struct {
	table   *expect.Table
	store   *store.Store
	adapter archive.Adapter
	opts    Options
}

// New creates a driver over a table, an artifact store, and an archive
// adapter.
func New(table *expect.Table, st *store.Store, adapter archive.Adapter, opts Options) *Driver {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.FailureBackoff <= 0 {
		opts.FailureBackoff = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{table: table, store: st, adapter: adapter, opts: opts}
}

// Run walks the grid ascending, and within each interval the dimension keys
// in the given order. It stops early only on context cancellation or when
// the table cannot be persisted; query and fetch failures are recorded in
// the table and left for the next run.
func (d *Driver) Run(ctx context.Context, grid []timegrid.Interval, dims []expect.DimensionKey) error {
	log := d.opts.Logger.With("mission", d.opts.Mission)

	for _, interval := range grid {
		if err := ctx.Err(); err != nil {
			return err
		}

		needy, err := d.collectNeedy(ctx, interval, dims)
		if err != nil {
			return err
		}
		if len(needy) == 0 {
			continue
		}

		results, err := d.adapter.Search(ctx, interval, needy)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := d.recordQueryFailure(ctx, interval, needy, err, log); err != nil {
				return err
			}
			if archive.IsTransient(err) {
				if err := sleepCtx(ctx, d.opts.FailureBackoff); err != nil {
					return err
				}
			}
			continue
		}

		// One search may answer several dimension keys. A key the archive
		// returned nothing for is a definitive no-data.
		byDim := make(map[expect.DimensionKey][]archive.Result)
		for _, r := range results {
			byDim[r.Dims] = append(byDim[r.Dims], r)
		}

		for _, dim := range needy {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := d.resolveCell(ctx, interval, dim, byDim[dim], log); err != nil {
				return err
			}
		}
	}

	d.logSummary(log)
	return nil
}

// collectNeedy filters one interval's dimension keys down to those that need
// evaluation. Excluded cells are recorded as no-data on first sight.
func (d *Driver) collectNeedy(ctx context.Context, interval timegrid.Interval, dims []expect.DimensionKey) ([]expect.DimensionKey, error) {
	var needy []expect.DimensionKey
	for _, dim := range dims {
		if d.opts.Exclude != nil && d.opts.Exclude(interval, dim) {
			if d.table.Get(interval, dim).Status == expect.StatusPending {
				if err := d.table.Set(ctx, interval, dim, expect.Cell{Status: expect.StatusNoData}); err != nil {
					return nil, err
				}
				d.reportNoData()
			} else {
				d.reportSkipped()
			}
			continue
		}

		need, err := d.table.NeedsEvaluation(ctx, interval, dim)
		if err != nil {
			return nil, err
		}
		if !need {
			d.reportSkipped()
			continue
		}
		needy = append(needy, dim)
	}
	return needy, nil
}

// resolveCell fetches one cell's results and records the outcome.
func (d *Driver) resolveCell(ctx context.Context, interval timegrid.Interval, dim expect.DimensionKey, results []archive.Result, log *slog.Logger) error {
	if len(results) == 0 {
		if err := d.table.Set(ctx, interval, dim, expect.Cell{Status: expect.StatusNoData}); err != nil {
			return err
		}
		d.reportNoData()
		log.Info("no data", "interval", interval.Key(), "dims", dim)
		return nil
	}

	fetched, bytes, failed := d.fetchAll(ctx, interval, dim, results, log)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if failed > 0 {
		// Fetched artifacts stay; the next run re-queries and fills the gaps.
		if err := d.table.Set(ctx, interval, dim, expect.Cell{Status: expect.StatusFetchFailed}); err != nil {
			return err
		}
		d.reportFailed()
		log.Warn("fetch failed", "interval", interval.Key(), "dims", dim,
			"fetched", fetched, "failed", failed)
		return nil
	}

	cell := expect.Cell{
		Status: expect.StatusResolved,
		Count:  len(results),
		Path:   d.store.Prefix(dim, interval),
	}
	if err := d.table.Set(ctx, interval, dim, cell); err != nil {
		return err
	}
	d.reportResolved(fetched, bytes)
	log.Info("resolved", "interval", interval.Key(), "dims", dim, "count", len(results))
	return nil
}

// recordQueryFailure marks every queried dimension key as query-failed.
func (d *Driver) recordQueryFailure(ctx context.Context, interval timegrid.Interval, needy []expect.DimensionKey, cause error, log *slog.Logger) error {
	log.Warn("query failed", "interval", interval.Key(), "error", cause)
	for _, dim := range needy {
		if err := d.table.Set(ctx, interval, dim, expect.Cell{Status: expect.StatusQueryFailed}); err != nil {
			return err
		}
		d.reportFailed()
	}
	return nil
}

// fetchAll transfers a cell's results through a bounded worker pool and
// returns how many artifacts were fetched, their total size, and how many
// transfers failed.
func (d *Driver) fetchAll(ctx context.Context, interval timegrid.Interval, dim expect.DimensionKey, results []archive.Result, log *slog.Logger) (fetched int, bytes int64, failed int) {
	workers := d.opts.Workers
	if workers > len(results) {
		workers = len(results)
	}

	jobs := make(chan archive.Result)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				n, err := d.fetchOne(ctx, interval, dim, r)
				mu.Lock()
				if err != nil {
					failed++
				} else {
					fetched++
					bytes += n
				}
				mu.Unlock()
				if err != nil && ctx.Err() == nil {
					log.Warn("fetch error", "interval", interval.Key(), "dims", dim,
						"file", r.Filename, "error", err)
				}
			}
		}()
	}

	for _, r := range results {
		select {
		case jobs <- r:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return fetched, bytes, failed
		}
	}
	close(jobs)
	wg.Wait()
	return fetched, bytes, failed
}

// fetchOne transfers a single artifact into the store. Artifacts already
// present are not fetched again.
func (d *Driver) fetchOne(ctx context.Context, interval timegrid.Interval, dim expect.DimensionKey, r archive.Result) (int64, error) {
	key := d.store.ArtifactPath(dim, interval, r.Filename)

	ok, err := d.store.Exists(ctx, key)
	if err != nil {
		return 0, err
	}
	if ok {
		return 0, nil
	}

	w, err := d.store.NewWriter(ctx, key)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: w}
	if err := d.adapter.Fetch(ctx, r, cw); err != nil {
		w.Close()
		if rmErr := d.store.Remove(ctx, key); rmErr != nil {
			d.opts.Logger.Warn("remove partial artifact", "key", key, "error", rmErr)
		}
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", key, err)
	}
	n := cw.n

	if d.opts.Validate {
		if err := d.store.Validate(ctx, key); err != nil {
			if rmErr := d.store.Remove(ctx, key); rmErr != nil {
				d.opts.Logger.Warn("remove invalid artifact", "key", key, "error", rmErr)
			}
			return 0, err
		}
	}
	if d.opts.Checksum {
		sum, err := d.store.Checksum(ctx, key)
		if err != nil {
			return 0, err
		}
		d.opts.Logger.Debug("artifact stored", "key", key, "sha256", sum, "size", n)
	}

	return n, nil
}

func (d *Driver) logSummary(log *slog.Logger) {
	counts := d.table.Outstanding()
	log.Info("run complete",
		"resolved", counts[expect.StatusResolved],
		"no_data", counts[expect.StatusNoData],
		"pending", counts[expect.StatusPending],
		"query_failed", counts[expect.StatusQueryFailed],
		"fetch_failed", counts[expect.StatusFetchFailed],
	)
}

func (d *Driver) reportResolved(files int, bytes int64) {
	if d.opts.Progress != nil {
		d.opts.Progress.CellResolved(files, bytes)
	}
}

func (d *Driver) reportNoData() {
	if d.opts.Progress != nil {
		d.opts.Progress.CellNoData()
	}
}

func (d *Driver) reportFailed() {
	if d.opts.Progress != nil {
		d.opts.Progress.CellFailed()
	}
}

func (d *Driver) reportSkipped() {
	if d.opts.Progress != nil {
		d.opts.Progress.CellSkipped()
	}
}

// countingWriter tracks how many bytes pass through to the store writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
