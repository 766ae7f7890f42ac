package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/timegrid"
)

func TestSOARSearchPicksClosest(t *testing.T) {
	var gotADQL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/tap/sync") {
			gotADQL = r.URL.Query().Get("QUERY")
			io.WriteString(w, `{"data": [
				["solo_L2_eui-fsi174-image_20210301T001200", "2021-03-01 00:12:00"],
				["solo_L2_eui-fsi174-image_20210301T000300", "2021-03-01 00:03:00"],
				["solo_L2_eui-fsi174-image_20210228T235500", "2021-02-28 23:55:00"]
			]}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	s := NewSOAR(fastClient(), SOAROptions{BaseURL: server.URL, Margin: 15 * time.Minute})

	start := time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)
	interval := timegrid.Interval{Start: start, End: start.Add(24 * time.Hour)}
	dims := []expect.DimensionKey{expect.Dims("product", "eui-fsi174-image")}

	results, err := s.Search(context.Background(), interval, dims)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}

	if !strings.Contains(gotADQL, "descriptor='eui-fsi174-image'") || !strings.Contains(gotADQL, "level='L2'") {
		t.Errorf("ADQL = %q", gotADQL)
	}

	// 00:03:00 is nearest to the 00:00:00 pivot.
	if !strings.Contains(results[0].URL, "20210301T000300") {
		t.Errorf("selected item URL = %q", results[0].URL)
	}
	if results[0].Dims != dims[0] {
		t.Errorf("dims = %q", results[0].Dims)
	}
	if results[0].Filename != "2021-03-01T000000.fits" {
		t.Errorf("filename = %q", results[0].Filename)
	}
}

func TestSOARSearchEmptyWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data": []}`)
	}))
	defer server.Close()

	s := NewSOAR(fastClient(), SOAROptions{BaseURL: server.URL})
	start := time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)
	interval := timegrid.Interval{Start: start, End: start.Add(24 * time.Hour)}

	results, err := s.Search(context.Background(), interval,
		[]expect.DimensionKey{expect.Dims("product", "phi-fdt-blos")})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSOARSearchMultipleProducts(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("QUERY")
		queries = append(queries, q)
		if strings.Contains(q, "phi-fdt-blos") {
			io.WriteString(w, `{"data": []}`)
			return
		}
		io.WriteString(w, `{"data": [["solo_L2_eui-fsi304-image_20210301T000100", "2021-03-01 00:01:00"]]}`)
	}))
	defer server.Close()

	s := NewSOAR(fastClient(), SOAROptions{BaseURL: server.URL})
	start := time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)
	interval := timegrid.Interval{Start: start, End: start.Add(24 * time.Hour)}

	dims := []expect.DimensionKey{
		expect.Dims("product", "eui-fsi304-image"),
		expect.Dims("product", "phi-fdt-blos"),
	}
	results, err := s.Search(context.Background(), interval, dims)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("issued %d queries, want 2", len(queries))
	}
	// Only the EUI product has data; the driver marks the PHI dimension
	// no-data from its absence.
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Dims != dims[0] {
		t.Errorf("dims = %q", results[0].Dims)
	}
}

func TestSOARSearchFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := NewSOAR(fastClient(), SOAROptions{BaseURL: server.URL})
	start := time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)
	interval := timegrid.Interval{Start: start, End: start.Add(24 * time.Hour)}

	_, err := s.Search(context.Background(), interval,
		[]expect.DimensionKey{expect.Dims("product", "eui-fsi174-image")})
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestTransientError(t *testing.T) {
	err := Transient("test op", io.ErrUnexpectedEOF)
	if !IsTransient(err) {
		t.Fatal("IsTransient = false")
	}
	if Transient("op", nil) != nil {
		t.Fatal("Transient(nil) should be nil")
	}
	if IsTransient(io.ErrUnexpectedEOF) {
		t.Fatal("bare error should not be transient")
	}
}
