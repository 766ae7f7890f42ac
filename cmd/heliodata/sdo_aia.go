package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mgjeon/heliodata/internal/archive"
	"github.com/mgjeon/heliodata/internal/config"
	"github.com/mgjeon/heliodata/internal/httpclient"
)

// aiaWavelengths are the EUV channels of SDO/AIA.
var aiaWavelengths = []string{"94", "131", "171", "193", "211", "304", "335"}

func runSDOAIA(args []string) int {
	fs := flag.NewFlagSet("sdo-aia", flag.ExitOnError)
	common := registerCommon(fs)
	series := fs.String("series", "aia.lev1_euv_12s", "DRMS series to query")
	wavelengths := fs.String("wavelengths", "", "Comma-separated EUV channels (default all seven)")
	baseURL := fs.String("jsoc-url", archive.DefaultJSOCBaseURL, "JSOC host")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: heliodata sdo-aia [options]

Reconcile SDO/AIA EUV images from the JSOC DRMS archive. One record per
interval and wavelength; a registered -notify email is required by JSOC.

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
	if v := splitFlag(*wavelengths); len(v) > 0 {
		cfg.Wavelengths = v
	}
	if len(cfg.Wavelengths) == 0 {
		cfg.Wavelengths = aiaWavelengths
	}
	if cfg.Notify == "" {
		fmt.Fprintln(os.Stderr, "Error: -notify (registered JSOC email) is required")
		return ExitInvalidArgs
	}

	return runReconciliation("sdo-aia", cfg, wavelengthDims(cfg.Wavelengths),
		func(client *httpclient.Client, cfg config.Config) archive.Adapter {
			return archive.NewJSOC(client, archive.JSOCOptions{
				BaseURL: *baseURL,
				Series:  *series,
				Axis:    "wavelength",
				Notify:  cfg.Notify,
				Cadence: cfg.Cadence,
			})
		}, nil)
}
