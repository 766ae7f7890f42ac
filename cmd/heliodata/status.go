package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mgjeon/heliodata/internal/expect"
)

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	root := fs.String("root", "", "Data root: directory path or bucket URL (required)")
	mission := fs.String("mission", "", "Mission name, e.g. sdo-aia (required)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: heliodata status [options]

Print the expectation table summary for a mission: how many cells are
resolved, empty, failed, or still pending.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if *root == "" || *mission == "" {
		fmt.Fprintln(os.Stderr, "Error: -root and -mission are required")
		fs.Usage()
		return ExitInvalidArgs
	}

	ctx := context.Background()
	bucket, err := openRoot(ctx, *root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening data root: %v\n", err)
		return ExitStorageError
	}
	defer bucket.Close()

	table, err := expect.Load(ctx, bucket, *mission+"/expectations.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, expect.ErrCorrupt) {
			return ExitTableCorrupt
		}
		return ExitStorageError
	}

	if table.Len() == 0 {
		fmt.Printf("%s: no expectation table at %s\n", *mission, *root)
		return ExitSuccess
	}

	counts := table.Outstanding()
	keys := table.Keys()
	fmt.Printf("Mission:   %s\n", *mission)
	fmt.Printf("Intervals: %d (%s .. %s)\n", len(keys), keys[0], keys[len(keys)-1])
	fmt.Printf("Cells:     %d\n", table.Len())
	for _, s := range []expect.Status{
		expect.StatusResolved,
		expect.StatusNoData,
		expect.StatusPending,
		expect.StatusQueryFailed,
		expect.StatusFetchFailed,
	} {
		fmt.Printf("  %-13s %d\n", string(s), counts[s])
	}
	return ExitSuccess
}
