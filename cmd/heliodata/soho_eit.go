package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mgjeon/heliodata/internal/archive"
	"github.com/mgjeon/heliodata/internal/config"
	"github.com/mgjeon/heliodata/internal/httpclient"
)

// eitWavelengths are the EUV bandpasses of SOHO/EIT.
var eitWavelengths = []string{"171", "195", "284", "304"}

func runSOHOEIT(args []string) int {
	fs := flag.NewFlagSet("soho-eit", flag.ExitOnError)
	common := registerCommon(fs)
	wavelengths := fs.String("wavelengths", "", "Comma-separated bandpasses (default 171,195,284,304)")
	baseURL := fs.String("vso-url", archive.DefaultVSOBaseURL, "VSO gateway")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: heliodata soho-eit [options]

Reconcile SOHO/EIT full-disk images via a VSO gateway (SDAC provider).
One image per interval and bandpass.

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
		cfg.Wavelengths = eitWavelengths
	}

	return runReconciliation("soho-eit", cfg, wavelengthDims(cfg.Wavelengths),
		func(client *httpclient.Client, cfg config.Config) archive.Adapter {
			return archive.NewVSO(client, archive.VSOOptions{
				BaseURL:    *baseURL,
				Provider:   "SDAC",
				Instrument: "EIT",
				Cadence:    cfg.Cadence,
			})
		}, nil)
}
