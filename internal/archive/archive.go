package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/timegrid"
)

// Result is one item returned by an archive search: the dimension key it
// belongs to, where to fetch it, and the artifact filename to store it
// under.
type Result struct {
	Dims     expect.DimensionKey
	URL      string
	Filename string
	ObsTime  time.Time
}

// Adapter is the boundary to a remote archive. Search returns the matching
// items for a time interval and a set of dimension keys; an empty slice is a
// definitive "no data", while errors indicate the query itself failed.
// Fetch transfers one item into w.
//
// Implementations may return results spanning several of the requested
// dimension keys from a single search; the driver reconciles the returned
// set against the full requested set.
type Adapter interface {
	Search(ctx context.Context, interval timegrid.Interval, dims []expect.DimensionKey) ([]Result, error)
	Fetch(ctx context.Context, r Result, w io.Writer) error
}

// TransientError wraps a failure that is expected to succeed on a later
// attempt: network errors, timeouts, server errors, rate limiting. The
// driver records such cells as failed and retries them on the next run.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("archive: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError. Returns nil when err is nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
