package expect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/mgjeon/heliodata/internal/timegrid"
)

// ErrCorrupt is returned when the persisted table cannot be decoded. The
// driver surfaces this immediately; repairing or discarding the table is the
// operator's call.
var ErrCorrupt = errors.New("expect: corrupt expectation table")

// Status is the resolution state of a single (time, dimension) cell.
type Status string

const (
	// StatusPending means no resolution has been attempted.
	StatusPending Status = "pending"
	// StatusResolved means the query succeeded and all matching items were
	// fetched; the cell records how many.
	StatusResolved Status = "resolved"
	// StatusQueryFailed means the remote query itself failed.
	StatusQueryFailed Status = "query_failed"
	// StatusFetchFailed means the query succeeded but at least one item
	// transfer failed.
	StatusFetchFailed Status = "fetch_failed"
	// StatusNoData means the query succeeded and returned zero items.
	StatusNoData Status = "no_data"
)

// ParseStatus parses a status string as persisted in the table.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusResolved:
		return StatusResolved, nil
	case StatusQueryFailed:
		return StatusQueryFailed, nil
	case StatusFetchFailed:
		return StatusFetchFailed, nil
	case StatusNoData:
		return StatusNoData, nil
	}
	return "", fmt.Errorf("expect: unknown status %q", s)
}

// DimensionKey identifies the non-time axes of a request as ordered
// axis=value pairs, for example "wavelength=171" or
// "source=a,wavelength=195". The string form is the canonical table key.
type DimensionKey string

// Dims builds a DimensionKey from alternating axis, value pairs.
func Dims(pairs ...string) DimensionKey {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, pairs[i]+"="+pairs[i+1])
	}
	return DimensionKey(strings.Join(parts, ","))
}

// Values returns the axis values in key order, used as artifact directory
// components ("source=a,wavelength=195" -> ["a", "195"]).
func (k DimensionKey) Values() []string {
	if k == "" {
		return nil
	}
	parts := strings.Split(string(k), ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if i := strings.IndexByte(p, '='); i >= 0 {
			values = append(values, p[i+1:])
		} else {
			values = append(values, p)
		}
	}
	return values
}

// Value returns the value of the named axis, or "" if absent.
func (k DimensionKey) Value(axis string) string {
	for _, p := range strings.Split(string(k), ",") {
		if i := strings.IndexByte(p, '='); i >= 0 && p[:i] == axis {
			return p[i+1:]
		}
	}
	return ""
}

// Cell is the recorded resolution state for one (interval, dimension)
// combination.
type Cell struct {
	Status    Status    `json:"status"`
	Count     int       `json:"count,omitempty"`
	Path      string    `json:"path,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// document is the persisted table layout: interval key -> dimension key ->
// cell. Unknown top-level fields from older or newer writers are carried
// through unchanged.
type document struct {
	Mission   string                     `json:"mission,omitempty"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Cells     map[string]map[string]Cell `json:"cells"`
}

// LocalCounter reports how many artifacts are actually present for a cell.
// The table uses it to detect drift between a recorded RESOLVED count and
// what is on disk.
type LocalCounter func(ctx context.Context, interval timegrid.Interval, dims DimensionKey) (int, error)

// Options configures a Table.
type Options struct {
	// Skip lists statuses treated as terminal by NeedsEvaluation. In
	// practice this is used for StatusNoData; failed cells are always
	// eligible for retry.
	Skip []Status

	// Counter reports locally present artifacts for drift detection.
	// When nil, RESOLVED cells are trusted as recorded.
	Counter LocalCounter

	// Backup copies an existing table to a timestamped object before the
	// first rewrite of a run.
	Backup bool

	// Mission is recorded in the document for operator inspection.
	Mission string
}

// Option is a functional option for configuring a Table.
type Option func(*Options)

// WithSkipStatuses marks statuses as terminal for NeedsEvaluation.
func WithSkipStatuses(statuses ...Status) Option {
	return func(o *Options) {
		o.Skip = append(o.Skip, statuses...)
	}
}

// WithLocalCounter sets the artifact counter used for drift detection.
func WithLocalCounter(c LocalCounter) Option {
	return func(o *Options) {
		o.Counter = c
	}
}

// WithBackup enables a timestamped backup copy of a pre-existing table.
func WithBackup(enabled bool) Option {
	return func(o *Options) {
		o.Backup = enabled
	}
}

// WithMission records the mission name in the persisted document.
func WithMission(name string) Option {
	return func(o *Options) {
		o.Mission = name
	}
}

// Table is the persisted reconciliation table mapping (interval, dimension)
// to a status cell. It is a passive store: all transitions are driven by the
// download driver, and every Set persists synchronously.
type Table struct {
	bucket *blob.Bucket
	object string
	opts   Options
	skip   map[Status]bool

	mu  sync.Mutex
	doc document
}

// Load reads the table at object from the bucket, starting empty if it does
// not exist. A table written by an older, narrower configuration loads as-is;
// missing cells are treated as pending. A table that exists but cannot be
// decoded returns ErrCorrupt.
func Load(ctx context.Context, bucket *blob.Bucket, object string, options ...Option) (*Table, error) {
	var opts Options
	for _, opt := range options {
		opt(&opts)
	}

	t := &Table{
		bucket: bucket,
		object: object,
		opts:   opts,
		skip:   make(map[Status]bool),
		doc: document{
			Mission: opts.Mission,
			Cells:   make(map[string]map[string]Cell),
		},
	}
	for _, s := range opts.Skip {
		t.skip[s] = true
	}

	data, err := bucket.ReadAll(ctx, object)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return t, nil
		}
		return nil, fmt.Errorf("expect: read table %s: %w", object, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, object, err)
	}
	if doc.Cells == nil {
		doc.Cells = make(map[string]map[string]Cell)
	}
	if opts.Mission != "" {
		doc.Mission = opts.Mission
	}
	t.doc = doc

	if opts.Backup {
		backup := object + ".bak-" + time.Now().UTC().Format("20060102T150405")
		if err := bucket.Copy(ctx, backup, object, nil); err != nil {
			return nil, fmt.Errorf("expect: backup table: %w", err)
		}
	}

	return t, nil
}

// Get returns the cell for the given interval and dimensions. Absent cells
// are pending.
func (t *Table) Get(interval timegrid.Interval, dims DimensionKey) Cell {
	t.mu.Lock()
	defer t.mu.Unlock()
	if row, ok := t.doc.Cells[interval.Key()]; ok {
		if c, ok := row[string(dims)]; ok {
			return c
		}
	}
	return Cell{Status: StatusPending}
}

// Set upserts the cell and persists the table. Durability is favored over
// throughput: remote query latency dwarfs the rewrite cost.
func (t *Table) Set(ctx context.Context, interval timegrid.Interval, dims DimensionKey, cell Cell) error {
	if cell.UpdatedAt.IsZero() {
		cell.UpdatedAt = time.Now().UTC()
	}

	t.mu.Lock()
	row, ok := t.doc.Cells[interval.Key()]
	if !ok {
		row = make(map[string]Cell)
		t.doc.Cells[interval.Key()] = row
	}
	row[string(dims)] = cell
	t.mu.Unlock()

	return t.persist(ctx)
}

// Merge pre-seeds pending cells for every (interval, dimension) combination
// not already present, then persists once. Existing cells keep their
// statuses, so widening the time range or dimension set grows the table
// without disturbing resolved cells.
func (t *Table) Merge(ctx context.Context, grid []timegrid.Interval, dims []DimensionKey) error {
	t.mu.Lock()
	for _, iv := range grid {
		row, ok := t.doc.Cells[iv.Key()]
		if !ok {
			row = make(map[string]Cell)
			t.doc.Cells[iv.Key()] = row
		}
		for _, d := range dims {
			if _, ok := row[string(d)]; !ok {
				row[string(d)] = Cell{Status: StatusPending}
			}
		}
	}
	t.mu.Unlock()

	return t.persist(ctx)
}

// NeedsEvaluation reports whether the cell should be (re)queried. It is
// idempotent and has no side effects on the table.
//
// True for pending and failed cells, for no-data cells unless StatusNoData
// is in the skip-set, and for resolved cells whose recorded count no longer
// matches the local artifact count.
func (t *Table) NeedsEvaluation(ctx context.Context, interval timegrid.Interval, dims DimensionKey) (bool, error) {
	cell := t.Get(interval, dims)

	switch cell.Status {
	case StatusPending, StatusQueryFailed, StatusFetchFailed:
		return true, nil
	case StatusNoData:
		return !t.skip[StatusNoData], nil
	case StatusResolved:
		if t.opts.Counter == nil {
			return false, nil
		}
		n, err := t.opts.Counter(ctx, interval, dims)
		if err != nil {
			return false, fmt.Errorf("expect: count local artifacts: %w", err)
		}
		return n != cell.Count, nil
	default:
		// Unknown status from a newer writer: re-evaluate rather than
		// silently skip.
		return true, nil
	}
}

// Outstanding returns the number of cells per status. Operator feedback only.
func (t *Table) Outstanding() map[Status]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[Status]int)
	for _, row := range t.doc.Cells {
		for _, c := range row {
			counts[c.Status]++
		}
	}
	return counts
}

// Len returns the total number of cells in the table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, row := range t.doc.Cells {
		n += len(row)
	}
	return n
}

// Keys returns all interval keys present in the table, sorted ascending.
func (t *Table) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.doc.Cells))
	for k := range t.doc.Cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *Table) persist(ctx context.Context) error {
	t.mu.Lock()
	t.doc.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&t.doc, "", "  ")
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("expect: marshal table: %w", err)
	}
	if err := t.bucket.WriteAll(ctx, t.object, data, nil); err != nil {
		return fmt.Errorf("expect: write table %s: %w", t.object, err)
	}
	return nil
}
