package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/mgjeon/heliodata/internal/archive"
	"github.com/mgjeon/heliodata/internal/config"
	"github.com/mgjeon/heliodata/internal/driver"
	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/httpclient"
	"github.com/mgjeon/heliodata/internal/progress"
	"github.com/mgjeon/heliodata/internal/store"
	"github.com/mgjeon/heliodata/internal/timegrid"
)

// commonFlags are the flags shared by every mission subcommand.
type commonFlags struct {
	root        *string
	start       *string
	end         *string
	granularity *string
	cadence     *string
	workers     *int
	skip        *string
	notify      *string
	configFile  *string
	progress    *bool
	checksum    *bool
	noValidate  *bool
	noBackup    *bool
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		root:        fs.String("root", "", "Data root: directory path or bucket URL (file://, s3://, gs://, mem://)"),
		start:       fs.String("start", "", "Start of the time range, inclusive (2006-01-02 or RFC 3339)"),
		end:         fs.String("end", "", "End of the time range, exclusive"),
		granularity: fs.String("granularity", "", "Time grid granularity: year, month, or a duration like 24h"),
		cadence:     fs.String("cadence", "", "Archive sampling step within an interval, e.g. 24h"),
		workers:     fs.Int("workers", 0, "Number of parallel fetch workers"),
		skip:        fs.String("skip", "", "Comma-separated statuses treated as terminal, e.g. no_data"),
		notify:      fs.String("notify", "", "Registered JSOC export email"),
		configFile:  fs.String("config", "", "YAML configuration file"),
		progress:    fs.Bool("progress", false, "Show a progress line during the run"),
		checksum:    fs.Bool("checksum", false, "Log a SHA-256 digest per fetched artifact"),
		noValidate:  fs.Bool("no-validate", false, "Skip FITS header validation of fetched artifacts"),
		noBackup:    fs.Bool("no-backup", false, "Do not back up the expectation table before the run"),
	}
}

// buildConfig assembles the effective configuration: defaults, then config
// file, then environment, then flags.
func (f *commonFlags) buildConfig() (config.Config, error) {
	cfg := config.Default()

	if *f.configFile != "" {
		fileCfg, err := config.LoadFromFile(*f.configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	var override config.Config
	override.Root = *f.root
	if *f.start != "" {
		t, err := config.ParseTime(*f.start)
		if err != nil {
			return config.Config{}, fmt.Errorf("parse -start: %w", err)
		}
		override.Start = t
	}
	if *f.end != "" {
		t, err := config.ParseTime(*f.end)
		if err != nil {
			return config.Config{}, fmt.Errorf("parse -end: %w", err)
		}
		override.End = t
	}
	override.Granularity = *f.granularity
	if *f.cadence != "" {
		d, err := time.ParseDuration(*f.cadence)
		if err != nil {
			return config.Config{}, fmt.Errorf("parse -cadence: %w", err)
		}
		override.Cadence = d
	}
	override.Workers = *f.workers
	override.SkipStatuses = splitFlag(*f.skip)
	override.Notify = *f.notify
	cfg = cfg.Merge(override)

	if *f.progress {
		cfg.Progress = true
	}
	if *f.checksum {
		cfg.Checksum = true
	}
	if *f.noValidate {
		cfg.ValidateFITS = false
	}
	if *f.noBackup {
		cfg.Backup = false
	}
	return cfg, nil
}

// openRoot opens the data root as a blob bucket. Bare paths become local
// file buckets, created on first use.
func openRoot(ctx context.Context, root string) (*blob.Bucket, error) {
	if strings.Contains(root, "://") {
		return blob.OpenBucket(ctx, root)
	}
	return fileblob.OpenBucket(root, &fileblob.Options{CreateDir: true})
}

// newLogger builds the run logger: text to stderr, plus an info.log in the
// data root when it is a local directory.
func newLogger(root string) (*slog.Logger, func()) {
	var w io.Writer = os.Stderr
	cleanup := func() {}

	if root != "" && !strings.Contains(root, "://") {
		if err := os.MkdirAll(root, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(root, "info.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err == nil {
				w = io.MultiWriter(os.Stderr, f)
				cleanup = func() { f.Close() }
			}
		}
	}
	return slog.New(slog.NewTextHandler(w, nil)), cleanup
}

// runReconciliation is the shared engine behind every mission subcommand.
func runReconciliation(
	mission string,
	cfg config.Config,
	dims []expect.DimensionKey,
	newAdapter func(*httpclient.Client, config.Config) archive.Adapter,
	exclude func(timegrid.Interval, expect.DimensionKey) bool,
) int {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if len(dims) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no dimension values configured")
		return ExitInvalidArgs
	}

	log, closeLog := newLogger(cfg.Root)
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[heliodata] Received interrupt, shutting down...")
		cancel()
	}()

	bucket, err := openRoot(ctx, cfg.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening data root: %v\n", err)
		return ExitStorageError
	}
	defer bucket.Close()

	grid, g, err := cfg.Grid()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	st := store.New(bucket, mission, g)
	table, err := expect.Load(ctx, bucket, mission+"/expectations.json",
		expect.WithMission(mission),
		expect.WithSkipStatuses(cfg.Skip()...),
		expect.WithLocalCounter(st.Counter()),
		expect.WithBackup(cfg.Backup),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, expect.ErrCorrupt) {
			return ExitTableCorrupt
		}
		return ExitStorageError
	}
	if err := table.Merge(ctx, grid, dims); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}

	client := httpclient.NewClient(httpclient.Options{
		RetryAttempts:   cfg.Retry.Attempts,
		RetryBackoff:    cfg.Retry.Backoff,
		RetryMaxBackoff: cfg.Retry.MaxBackoff,
		UserAgent:       "heliodata/" + version,
	})

	var reporter *progress.Reporter
	if cfg.Progress {
		reporter = progress.NewReporter(progress.Options{
			Mission:    mission,
			TotalCells: len(grid) * len(dims),
			Workers:    cfg.Workers,
		})
		reporter.Start()
		defer reporter.Stop()
	}

	d := driver.New(table, st, newAdapter(client, cfg), driver.Options{
		Mission:        mission,
		Workers:        cfg.Workers,
		FailureBackoff: cfg.FailureBackoff,
		Validate:       cfg.ValidateFITS,
		Checksum:       cfg.Checksum,
		Exclude:        exclude,
		Logger:         log,
		Progress:       reporter,
	})

	if err := d.Run(ctx, grid, dims); err != nil {
		if errors.Is(err, context.Canceled) {
			return ExitInterrupted
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	return ExitSuccess
}

// wavelengthDims builds one dimension key per wavelength.
func wavelengthDims(wavelengths []string) []expect.DimensionKey {
	dims := make([]expect.DimensionKey, 0, len(wavelengths))
	for _, w := range wavelengths {
		dims = append(dims, expect.Dims("wavelength", w))
	}
	return dims
}

// splitFlag splits a comma-separated flag value.
func splitFlag(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
