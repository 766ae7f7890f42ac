package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mgjeon/heliodata/internal/archive"
	"github.com/mgjeon/heliodata/internal/config"
	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/httpclient"
)

func runSDOHMI(args []string) int {
	fs := flag.NewFlagSet("sdo-hmi", flag.ExitOnError)
	common := registerCommon(fs)
	series := fs.String("series", "hmi.m_720s", "DRMS series to query")
	segments := fs.String("segments", "magnetogram", "Comma-separated data segments, e.g. magnetogram,continuum")
	baseURL := fs.String("jsoc-url", archive.DefaultJSOCBaseURL, "JSOC host")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: heliodata sdo-hmi [options]

Reconcile SDO/HMI data segments from the JSOC DRMS archive. One record per
interval and segment; a registered -notify email is required by JSOC.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := common.buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if v := splitFlag(*segments); len(v) > 0 {
		cfg.Segments = v
	}
	if cfg.Notify == "" {
		fmt.Fprintln(os.Stderr, "Error: -notify (registered JSOC email) is required")
		return ExitInvalidArgs
	}

	dims := make([]expect.DimensionKey, 0, len(cfg.Segments))
	for _, s := range cfg.Segments {
		dims = append(dims, expect.Dims("segment", s))
	}

	return runReconciliation("sdo-hmi", cfg, dims,
		func(client *httpclient.Client, cfg config.Config) archive.Adapter {
			return archive.NewJSOC(client, archive.JSOCOptions{
				BaseURL: *baseURL,
				Series:  *series,
				Axis:    "segment",
				Notify:  cfg.Notify,
				Cadence: cfg.Cadence,
			})
		}, nil)
}
