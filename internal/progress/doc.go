// Package progress provides progress reporting for reconciliation runs.
//
// This package outputs human-readable progress information to stderr,
// tracking how many expectation cells a run has resolved, found empty,
// failed, or skipped as already fresh.
//
// # Usage
//
//	reporter := progress.NewReporter(Options{
//	    Mission:    "sdo-aia",
//	    TotalCells: len(outstanding),
//	    Workers:    8,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Update as cells finish
//	reporter.CellResolved(files, bytes)
//
// # Output Format
//
//	[heliodata] Mission: sdo-aia | Cells: 2190 | Workers: 8
//	[heliodata] Progress: 45.2% | 990/2190 cells | 934 resolved | 12 no-data | 4 failed | 40 fresh
//	[heliodata] Fetched: 934 files (11.32 GB) | Total time: 18m 32s
package progress
