package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mgjeon/heliodata/internal/archive"
	"github.com/mgjeon/heliodata/internal/config"
	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/httpclient"
	"github.com/mgjeon/heliodata/internal/timegrid"
)

// euviWavelengths are the EUV bandpasses of STEREO/SECCHI-EUVI.
var euviWavelengths = []string{"171", "195", "284", "304"}

// stereoBLost is when contact with STEREO-B was lost; cells for source b
// after this point are recorded no-data without querying.
var stereoBLost = time.Date(2014, time.October, 1, 0, 0, 0, 0, time.UTC)

func runSTEREOEUVI(args []string) int {
	fs := flag.NewFlagSet("stereo-euvi", flag.ExitOnError)
	common := registerCommon(fs)
	wavelengths := fs.String("wavelengths", "", "Comma-separated bandpasses (default 171,195,284,304)")
	sources := fs.String("sources", "a,b", "Comma-separated spacecraft, a and/or b")
	baseURL := fs.String("vso-url", archive.DefaultVSOBaseURL, "VSO gateway")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: heliodata stereo-euvi [options]

Reconcile STEREO/SECCHI-EUVI images via a VSO gateway (SSC provider).
One image per interval, spacecraft, and bandpass. STEREO-B cells after
October 2014 are recorded no-data; contact with the spacecraft was lost.

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
		cfg.Wavelengths = euviWavelengths
	}
	if v := splitFlag(*sources); len(v) > 0 {
		cfg.Sources = v
	}

	dims := make([]expect.DimensionKey, 0, len(cfg.Sources)*len(cfg.Wavelengths))
	for _, s := range cfg.Sources {
		for _, w := range cfg.Wavelengths {
			dims = append(dims, expect.Dims("source", s, "wavelength", w))
		}
	}

	exclude := func(interval timegrid.Interval, dim expect.DimensionKey) bool {
		return dim.Value("source") == "b" && !interval.Start.Before(stereoBLost)
	}

	return runReconciliation("stereo-euvi", cfg, dims,
		func(client *httpclient.Client, cfg config.Config) archive.Adapter {
			return archive.NewVSO(client, archive.VSOOptions{
				BaseURL:    *baseURL,
				Provider:   "SSC",
				Instrument: "EUVI",
				Cadence:    cfg.Cadence,
			})
		}, exclude)
}
