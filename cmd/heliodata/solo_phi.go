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
)

func runSoloPHI(args []string) int {
	fs := flag.NewFlagSet("solo-phi", flag.ExitOnError)
	common := registerCommon(fs)
	products := fs.String("products", "phi-fdt-blos,phi-fdt-icnt", "Comma-separated PHI product descriptors")
	level := fs.Int("level", 2, "Processing level")
	margin := fs.Duration("margin", 15*time.Minute, "Search window half-width around each interval start")
	baseURL := fs.String("soar-url", archive.DefaultSOARBaseURL, "SOAR TAP service")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: heliodata solo-phi [options]

Reconcile Solar Orbiter PHI products from the SOAR archive. For each
interval and product, the observation closest to the interval start
within the margin window is fetched.

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
	if v := splitFlag(*products); len(v) > 0 {
		cfg.Products = v
	}

	dims := make([]expect.DimensionKey, 0, len(cfg.Products))
	for _, p := range cfg.Products {
		dims = append(dims, expect.Dims("product", p))
	}

	return runReconciliation("solo-phi", cfg, dims,
		func(client *httpclient.Client, cfg config.Config) archive.Adapter {
			return archive.NewSOAR(client, archive.SOAROptions{
				BaseURL: *baseURL,
				Level:   *level,
				Margin:  *margin,
			})
		}, nil)
}
