package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/httpclient"
	"github.com/mgjeon/heliodata/internal/timegrid"
)

// DefaultSOARBaseURL is the Solar Orbiter Archive TAP service.
const DefaultSOARBaseURL = "https://soar.esac.esa.int/soar-sl-tap"

// SOAROptions configures a Solar Orbiter Archive adapter.
type SOAROptions struct {
	// BaseURL of the SOAR TAP service. Default: DefaultSOARBaseURL.
	BaseURL string

	// Level is the processing level to query. Default: 2.
	Level int

	// Margin widens the search window around each interval start; the
	// closest observation inside the window is selected. Default: 15m.
	Margin time.Duration
}

// SOAR queries the Solar Orbiter Archive for EUI and PHI products. Each
// product dimension is queried separately around the interval start, and the
// observation closest to it is returned, at most one per product.
type SOAR struct {
	client *httpclient.Client
	opts   SOAROptions
}

// NewSOAR creates a SOAR adapter.
func NewSOAR(client *httpclient.Client, opts SOAROptions) *SOAR {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultSOARBaseURL
	}
	if opts.Level == 0 {
		opts.Level = 2
	}
	if opts.Margin == 0 {
		opts.Margin = 15 * time.Minute
	}
	return &SOAR{client: client, opts: opts}
}

type soarResponse struct {
	Data [][]any `json:"data"`
}

// Search queries each requested product around the interval start.
func (s *SOAR) Search(ctx context.Context, interval timegrid.Interval, dims []expect.DimensionKey) ([]Result, error) {
	pivot := interval.Start
	var results []Result

	for _, d := range dims {
		product := d.Value("product")
		if product == "" {
			continue
		}

		item, begin, err := s.closestItem(ctx, product, pivot)
		if err != nil {
			return nil, err
		}
		if item == "" {
			continue
		}

		q := url.Values{}
		q.Set("retrieval_type", "LAST_PRODUCT")
		q.Set("data_item_id", item)
		q.Set("product_type", "SCIENCE")

		results = append(results, Result{
			Dims:     d,
			URL:      httpclient.JoinURL(s.opts.BaseURL, "/data") + "?" + q.Encode(),
			Filename: pivot.UTC().Format("2006-01-02T150405") + ".fits",
			ObsTime:  begin,
		})
	}
	return results, nil
}

// closestItem runs one TAP query for a product and returns the data item id
// nearest the pivot time, or "" when the window is empty.
func (s *SOAR) closestItem(ctx context.Context, product string, pivot time.Time) (string, time.Time, error) {
	const layout = "2006-01-02 15:04:05"
	lo := pivot.Add(-s.opts.Margin).UTC().Format(layout)
	hi := pivot.Add(s.opts.Margin).UTC().Format(layout)

	adql := fmt.Sprintf(
		"SELECT data_item_id, begin_time FROM v_sc_data_item WHERE descriptor='%s' AND level='L%d' AND begin_time>='%s' AND begin_time<='%s'",
		product, s.opts.Level, lo, hi,
	)

	q := url.Values{}
	q.Set("REQUEST", "doQuery")
	q.Set("LANG", "ADQL")
	q.Set("FORMAT", "json")
	q.Set("QUERY", adql)
	queryURL := httpclient.JoinURL(s.opts.BaseURL, "/tap/sync") + "?" + q.Encode()

	var resp soarResponse
	if err := s.client.GetJSON(ctx, queryURL, &resp); err != nil {
		return "", time.Time{}, Transient("soar search", err)
	}

	var (
		bestItem string
		bestTime time.Time
		bestDiff time.Duration
	)
	for _, row := range resp.Data {
		if len(row) < 2 {
			continue
		}
		item, ok := row[0].(string)
		if !ok {
			continue
		}
		beginStr, ok := row[1].(string)
		if !ok {
			continue
		}
		begin, err := time.Parse(layout, beginStr)
		if err != nil {
			continue
		}

		diff := begin.Sub(pivot)
		if diff < 0 {
			diff = -diff
		}
		if bestItem == "" || diff < bestDiff {
			bestItem, bestTime, bestDiff = item, begin, diff
		}
	}
	return bestItem, bestTime, nil
}

// Fetch downloads one product.
func (s *SOAR) Fetch(ctx context.Context, r Result, w io.Writer) error {
	if _, err := s.client.Download(ctx, r.URL, w); err != nil {
		return Transient("soar fetch", err)
	}
	return nil
}
