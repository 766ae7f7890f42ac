package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/httpclient"
	"github.com/mgjeon/heliodata/internal/timegrid"
)

// DefaultJSOCBaseURL is the JSOC export host. Segment paths returned by a
// query are relative to it.
const DefaultJSOCBaseURL = "http://jsoc.stanford.edu"

// JSOCOptions configures a JSOC DRMS adapter.
type JSOCOptions struct {
	// BaseURL of the JSOC host. Default: DefaultJSOCBaseURL.
	BaseURL string

	// Series is the DRMS series name, e.g. "aia.lev1_euv_12s" or
	// "hmi.m_720s".
	Series string

	// Axis is the dimension axis queried against the series:
	// "wavelength" selects records by WAVELNTH (AIA), "segment" selects
	// data segments by name (HMI).
	Axis string

	// Notify is the registered JSOC export email. Required by the
	// archive.
	Notify string

	// Cadence is the sampling step applied within an interval. Zero
	// means every record in the interval.
	Cadence time.Duration
}

// JSOC queries the JSOC DRMS record-set API and fetches image segments.
type JSOC struct {
	client *httpclient.Client
	opts   JSOCOptions
}

// NewJSOC creates a JSOC adapter.
func NewJSOC(client *httpclient.Client, opts JSOCOptions) *JSOC {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultJSOCBaseURL
	}
	if opts.Axis == "" {
		opts.Axis = "wavelength"
	}
	return &JSOC{client: client, opts: opts}
}

type jsocColumn struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type jsocResponse struct {
	Status   int          `json:"status"`
	Count    int          `json:"count"`
	Keywords []jsocColumn `json:"keywords"`
	Segments []jsocColumn `json:"segments"`
}

// Search queries the record-set listing endpoint for the interval. One query
// covers all requested dimension values; the response is split back out per
// dimension key.
func (j *JSOC) Search(ctx context.Context, interval timegrid.Interval, dims []expect.DimensionKey) ([]Result, error) {
	values := make([]string, 0, len(dims))
	for _, d := range dims {
		values = append(values, d.Value(j.opts.Axis))
	}

	var ds string
	switch j.opts.Axis {
	case "segment":
		ds = fmt.Sprintf("%s[%s]{%s}", j.opts.Series, j.recordTime(interval), strings.Join(values, ","))
	default:
		ds = fmt.Sprintf("%s[%s][%s]{image}", j.opts.Series, j.recordTime(interval), strings.Join(values, ","))
	}

	q := url.Values{}
	q.Set("op", "rs_list")
	q.Set("ds", ds)
	q.Set("key", "T_OBS,WAVELNTH")
	if j.opts.Axis == "segment" {
		q.Set("seg", strings.Join(values, ","))
	} else {
		q.Set("seg", "image")
	}
	if j.opts.Notify != "" {
		q.Set("notify", j.opts.Notify)
	}
	queryURL := httpclient.JoinURL(j.opts.BaseURL, "/cgi-bin/ajax/jsoc_info") + "?" + q.Encode()

	var resp jsocResponse
	if err := j.client.GetJSON(ctx, queryURL, &resp); err != nil {
		return nil, Transient("jsoc search", err)
	}
	if resp.Status != 0 {
		return nil, Transient("jsoc search", fmt.Errorf("query status %d for %s", resp.Status, ds))
	}
	if resp.Count == 0 {
		return nil, nil
	}

	switch j.opts.Axis {
	case "segment":
		return j.segmentResults(resp)
	default:
		return j.wavelengthResults(resp)
	}
}

// wavelengthResults zips the T_OBS/WAVELNTH keyword columns with the image
// segment column, one record per result.
func (j *JSOC) wavelengthResults(resp jsocResponse) ([]Result, error) {
	obs := column(resp.Keywords, "T_OBS")
	wav := column(resp.Keywords, "WAVELNTH")
	seg := column(resp.Segments, "image")
	if seg == nil {
		return nil, Transient("jsoc search", fmt.Errorf("response has no image segment column"))
	}

	results := make([]Result, 0, len(seg))
	for i, path := range seg {
		r := Result{URL: httpclient.JoinURL(j.opts.BaseURL, path)}
		if i < len(wav) {
			r.Dims = expect.Dims("wavelength", wav[i])
		}
		if i < len(obs) {
			r.ObsTime = parseObsTime(obs[i])
		}
		r.Filename = j.filename(r.ObsTime, r.Dims.Value("wavelength"))
		results = append(results, r)
	}
	return results, nil
}

// segmentResults emits one result per record per segment column.
func (j *JSOC) segmentResults(resp jsocResponse) ([]Result, error) {
	obs := column(resp.Keywords, "T_OBS")

	var results []Result
	for _, col := range resp.Segments {
		for i, path := range col.Values {
			r := Result{
				Dims: expect.Dims("segment", col.Name),
				URL:  httpclient.JoinURL(j.opts.BaseURL, path),
			}
			if i < len(obs) {
				r.ObsTime = parseObsTime(obs[i])
			}
			r.Filename = j.filename(r.ObsTime, col.Name)
			results = append(results, r)
		}
	}
	return results, nil
}

// Fetch downloads one image segment.
func (j *JSOC) Fetch(ctx context.Context, r Result, w io.Writer) error {
	if _, err := j.client.Download(ctx, r.URL, w); err != nil {
		return Transient("jsoc fetch", err)
	}
	return nil
}

// recordTime renders the interval as a DRMS record-set time clause,
// e.g. "2016.01.01_00:00:00_TAI-2016.02.01_00:00:00_TAI@24h".
func (j *JSOC) recordTime(interval timegrid.Interval) string {
	const layout = "2006.01.02_15:04:05_TAI"
	clause := interval.Start.UTC().Format(layout) + "-" + interval.End.UTC().Format(layout)
	if j.opts.Cadence > 0 {
		clause += "@" + formatCadence(j.opts.Cadence)
	}
	return clause
}

func (j *JSOC) filename(obs time.Time, value string) string {
	t := "unknown"
	if !obs.IsZero() {
		t = obs.UTC().Format("2006-01-02T150405Z")
	}
	if value == "" {
		return fmt.Sprintf("%s.%s.fits", j.opts.Series, t)
	}
	return fmt.Sprintf("%s.%s.%s.fits", j.opts.Series, t, value)
}

// formatCadence renders a duration in the largest whole DRMS unit.
func formatCadence(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}

func column(cols []jsocColumn, name string) []string {
	for _, c := range cols {
		if c.Name == name {
			return c.Values
		}
	}
	return nil
}

// parseObsTime parses DRMS T_OBS values such as
// "2016-01-01T00:00:05.57Z". Unparseable values yield a zero time.
func parseObsTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.99Z", time.RFC3339, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
