package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the run reporter.
type Options struct {
	// Mission name shown in the progress line.
	Mission string

	// TotalCells is the number of (interval, dimension) cells in the run.
	TotalCells int

	// Workers is the number of parallel fetch workers (for display).
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 2s
	UpdateInterval time.Duration
}

// Reporter tracks cell outcomes during a run and outputs human-readable
// progress information.
type Reporter struct {
	opts Options

	mu           sync.Mutex
	resolved     atomic.Int64
	noData       atomic.Int64
	failed       atomic.Int64
	skipped      atomic.Int64
	fetchedFiles atomic.Int64
	fetchedBytes atomic.Int64
	startTime    time.Time
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopped      bool
}

// NewReporter creates a new run reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 2 * time.Second
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.startTime = time.Now()

	fmt.Fprintf(r.opts.Output, "[heliodata] Mission: %s | Cells: %d | Workers: %d\n",
		r.opts.Mission,
		r.opts.TotalCells,
		r.opts.Workers,
	)

	go r.updateLoop()
}

// Stop stops the reporter and waits for the final summary to print.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// CellSkipped records a cell that needed no evaluation this run.
func (r *Reporter) CellSkipped() {
	r.skipped.Add(1)
}

// CellResolved records a resolved cell and the artifacts it fetched.
func (r *Reporter) CellResolved(files int, bytes int64) {
	r.resolved.Add(1)
	r.fetchedFiles.Add(int64(files))
	r.fetchedBytes.Add(bytes)
}

// CellNoData records a cell the archive holds no data for.
func (r *Reporter) CellNoData() {
	r.noData.Add(1)
}

// CellFailed records a query or fetch failure.
func (r *Reporter) CellFailed() {
	r.failed.Add(1)
}

// Visited returns the number of cells accounted for so far.
func (r *Reporter) Visited() int {
	return int(r.resolved.Load() + r.noData.Load() + r.failed.Load() + r.skipped.Load())
}

// Failed returns the number of failed cells so far.
func (r *Reporter) Failed() int {
	return int(r.failed.Load())
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	visited := r.Visited()

	var percent float64
	if r.opts.TotalCells > 0 {
		percent = float64(visited) / float64(r.opts.TotalCells) * 100
	}

	fmt.Fprintf(r.opts.Output, "\r[heliodata] Progress: %.1f%% | %d/%d cells | %d resolved | %d no-data | %d failed | %d fresh    ",
		percent,
		visited,
		r.opts.TotalCells,
		r.resolved.Load(),
		r.noData.Load(),
		r.failed.Load(),
		r.skipped.Load(),
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	duration := time.Since(r.startTime)

	fmt.Fprintf(r.opts.Output, "\r[heliodata] Done: %d/%d cells | %d resolved | %d no-data | %d failed | %d fresh    \n",
		r.Visited(),
		r.opts.TotalCells,
		r.resolved.Load(),
		r.noData.Load(),
		r.failed.Load(),
		r.skipped.Load(),
	)
	fmt.Fprintf(r.opts.Output, "[heliodata] Fetched: %d files (%s) | Total time: %s\n",
		r.fetchedFiles.Load(),
		formatBytes(r.fetchedBytes.Load()),
		formatDuration(duration),
	)
	if failed := r.failed.Load(); failed > 0 {
		fmt.Fprintf(r.opts.Output, "[heliodata] %d cells failed; run the same command again to retry them\n", failed)
	}
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
