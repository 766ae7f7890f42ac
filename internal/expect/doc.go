// Package expect tracks which (time interval, dimension) combinations of a
// download run have been resolved, and why the unresolved ones are not.
//
// The table is the single source of truth for incremental re-runs: a cell is
// re-queried when it is pending, when a previous query or fetch failed, when
// the archive reported no data (unless no-data is configured as terminal),
// or when the recorded artifact count no longer matches what is locally
// present.
//
// # Persistence
//
// The table is one JSON document in a gocloud.dev blob bucket, rewritten
// synchronously after every cell transition. Remote query latency dominates
// by orders of magnitude, so durability is favored over write throughput.
// A table written by an older, narrower configuration loads unchanged and is
// extended cell by cell (schema growth, not schema break).
//
// # Usage
//
//	table, err := expect.Load(ctx, bucket, "soho-eit/expectations.json",
//	    expect.WithSkipStatuses(expect.StatusNoData),
//	    expect.WithLocalCounter(store.Count),
//	)
//	needs, err := table.NeedsEvaluation(ctx, interval, dims)
//	if needs {
//	    // query the archive, then:
//	    err = table.Set(ctx, interval, dims, expect.Cell{Status: expect.StatusResolved, Count: n})
//	}
package expect
