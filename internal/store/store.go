package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/timegrid"
)

// fitsMagic is the mandatory first keyword of a FITS primary header.
var fitsMagic = []byte("SIMPLE  =")

// ErrNotFITS is returned by Validate when a stored artifact does not start
// with a FITS primary header.
var ErrNotFITS = errors.New("store: artifact is not a FITS file")

// Store organizes FITS artifacts in a blob bucket, one subtree per dimension
// key, one file per resolved time point:
//
//	<mission>/<dim values...>/<year>[/<month>]/<file>.fits
//
// Fixed-cadence runs use a flat per-dimension layout without date
// subdirectories.
type Store struct {
	bucket      *blob.Bucket
	mission     string
	granularity timegrid.Granularity
}

// New creates a store for one mission rooted in bucket.
func New(bucket *blob.Bucket, mission string, g timegrid.Granularity) *Store {
	return &Store{bucket: bucket, mission: mission, granularity: g}
}

// Prefix returns the directory prefix for a cell's artifacts, with a
// trailing slash.
func (s *Store) Prefix(dims expect.DimensionKey, interval timegrid.Interval) string {
	parts := []string{s.mission}
	parts = append(parts, dims.Values()...)
	parts = append(parts, interval.PathSegments(s.granularity)...)
	return path.Join(parts...) + "/"
}

// ArtifactPath returns the full key for a named artifact in a cell.
func (s *Store) ArtifactPath(dims expect.DimensionKey, interval timegrid.Interval, filename string) string {
	return s.Prefix(dims, interval) + filename
}

// Count returns the number of FITS artifacts present for a cell. Used by the
// expectation table to detect drift between the recorded count and what is
// actually stored.
func (s *Store) Count(ctx context.Context, interval timegrid.Interval, dims expect.DimensionKey) (int, error) {
	iter := s.bucket.List(&blob.ListOptions{Prefix: s.Prefix(dims, interval)})
	n := 0
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, fmt.Errorf("store: list %s: %w", s.Prefix(dims, interval), err)
		}
		if strings.HasSuffix(obj.Key, ".fits") {
			n++
		}
	}
}

// Counter adapts Count to the expectation table's LocalCounter contract.
func (s *Store) Counter() expect.LocalCounter {
	return func(ctx context.Context, interval timegrid.Interval, dims expect.DimensionKey) (int, error) {
		return s.Count(ctx, interval, dims)
	}
}

// NewWriter opens a writer for a new artifact. The write is committed when
// the writer is closed without error.
func (s *Store) NewWriter(ctx context.Context, key string) (*blob.Writer, error) {
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("store: create writer for %s: %w", key, err)
	}
	return w, nil
}

// Exists reports whether an artifact is already stored at key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("store: stat %s: %w", key, err)
	}
	return ok, nil
}

// Remove deletes an artifact. Missing artifacts are not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.bucket.Delete(ctx, key)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// Validate checks that the stored artifact begins with a FITS primary
// header. It reads only the first header bytes, not the whole file.
func (s *Store) Validate(ctx context.Context, key string) error {
	r, err := s.bucket.NewRangeReader(ctx, key, 0, int64(len(fitsMagic)), nil)
	if err != nil {
		return fmt.Errorf("store: read %s: %w", key, err)
	}
	defer r.Close()

	head := make([]byte, len(fitsMagic))
	if _, err := io.ReadFull(r, head); err != nil {
		return fmt.Errorf("%w: %s: short read", ErrNotFITS, key)
	}
	if !bytes.Equal(head, fitsMagic) {
		return fmt.Errorf("%w: %s", ErrNotFITS, key)
	}
	return nil
}

// Checksum returns the hex SHA-256 digest of a stored artifact.
func (s *Store) Checksum(ctx context.Context, key string) (string, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return "", fmt.Errorf("store: read %s: %w", key, err)
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("store: checksum %s: %w", key, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
