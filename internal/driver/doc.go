// Package driver walks an expectation table against a remote archive and
// reconciles the two: cells that need evaluation are queried, their artifacts
// fetched into the store, and the outcome recorded back into the table.
//
// A run is incremental and resumable. The table persists after every
// transition, queries are sequential in time order, and only the fetch of a
// single cell's artifacts is parallelized. Failures are recorded rather than
// retried in place; the next run picks them up.
package driver
