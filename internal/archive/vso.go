package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/httpclient"
	"github.com/mgjeon/heliodata/internal/timegrid"
)

// DefaultVSOBaseURL is the VSO HTTP gateway at NASA GSFC.
const DefaultVSOBaseURL = "https://vso.nascom.nasa.gov/cgi-bin/vso"

// VSOOptions configures a Virtual Solar Observatory adapter.
type VSOOptions struct {
	// BaseURL of the VSO HTTP gateway. Default: DefaultVSOBaseURL.
	BaseURL string

	// Provider restricts the search to one data provider, e.g. "SDAC"
	// for SOHO/EIT or "SSC" for STEREO/SECCHI.
	Provider string

	// Instrument name, e.g. "EIT" or "EUVI".
	Instrument string

	// Cadence is the sampling step applied within an interval.
	Cadence time.Duration
}

// VSO queries a VSO gateway for instrument observations. Searches cover all
// requested wavelengths (and, for STEREO, sources) in one call; the driver
// reconciles dimensions missing from the response.
type VSO struct {
	client *httpclient.Client
	opts   VSOOptions
}

// NewVSO creates a VSO adapter.
func NewVSO(client *httpclient.Client, opts VSOOptions) *VSO {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultVSOBaseURL
	}
	return &VSO{client: client, opts: opts}
}

type vsoRecord struct {
	URL        string `json:"url"`
	Wavelength string `json:"wavelength"`
	Source     string `json:"source,omitempty"`
	StartTime  string `json:"start_time"`
}

// Search queries the gateway for all matching records in the interval.
func (v *VSO) Search(ctx context.Context, interval timegrid.Interval, dims []expect.DimensionKey) ([]Result, error) {
	wavelengths := uniqueValues(dims, "wavelength")
	sources := uniqueValues(dims, "source")

	q := url.Values{}
	q.Set("provider", v.opts.Provider)
	q.Set("instrument", v.opts.Instrument)
	q.Set("start", interval.Start.UTC().Format(time.RFC3339))
	q.Set("end", interval.End.UTC().Format(time.RFC3339))
	if len(wavelengths) > 0 {
		q.Set("wavelength", strings.Join(wavelengths, ","))
	}
	if len(sources) > 0 {
		q.Set("source", strings.Join(sources, ","))
	}
	if v.opts.Cadence > 0 {
		q.Set("sample", fmt.Sprintf("%d", int64(v.opts.Cadence.Seconds())))
	}
	queryURL := httpclient.JoinURL(v.opts.BaseURL, "/search") + "?" + q.Encode()

	var records []vsoRecord
	if err := v.client.GetJSON(ctx, queryURL, &records); err != nil {
		return nil, Transient("vso search", err)
	}

	withSource := len(sources) > 0
	results := make([]Result, 0, len(records))
	for _, rec := range records {
		r := Result{
			URL:      rec.URL,
			Filename: fitsFilename(rec.URL),
		}
		if withSource {
			r.Dims = expect.Dims("source", shortSource(rec.Source), "wavelength", rec.Wavelength)
		} else {
			r.Dims = expect.Dims("wavelength", rec.Wavelength)
		}
		if t, err := time.Parse(time.RFC3339, rec.StartTime); err == nil {
			r.ObsTime = t
		}
		results = append(results, r)
	}
	return results, nil
}

// Fetch downloads one record.
func (v *VSO) Fetch(ctx context.Context, r Result, w io.Writer) error {
	if _, err := v.client.Download(ctx, r.URL, w); err != nil {
		return Transient("vso fetch", err)
	}
	return nil
}

// uniqueValues collects the distinct values of one axis across dimension
// keys, preserving order.
func uniqueValues(dims []expect.DimensionKey, axis string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, d := range dims {
		v := d.Value(axis)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

// shortSource maps archive spacecraft names to the short directory form
// used as the source dimension value: "STEREO_A" -> "a".
func shortSource(s string) string {
	s = strings.ToLower(s)
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// fitsFilename derives a local artifact name from a remote URL, forcing a
// .fits extension the way the archives' oddly named files are normalized.
func fitsFilename(rawURL string) string {
	name := path.Base(rawURL)
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	if name == "" || name == "." || name == "/" {
		return "download.fits"
	}
	if strings.HasSuffix(name, ".fits") {
		return name
	}
	if strings.HasSuffix(name, ".fts") {
		return strings.TrimSuffix(name, ".fts") + ".fits"
	}
	return strings.ReplaceAll(name, ".", "_") + ".fits"
}
