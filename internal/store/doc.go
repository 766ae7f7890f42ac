// Package store is the FITS artifact store backing a download run.
//
// Artifacts live in a gocloud.dev blob bucket so the same code serves a
// local directory (file://), an in-memory bucket in tests (mem://), or
// object storage (s3://, gs://). The layout mirrors the archive layout the
// downloads are organized by: one subtree per dimension key, with year or
// year/month subdirectories for calendar grids.
//
// The download driver only needs two operations at this boundary: count the
// artifacts present for a cell, and write a new artifact. Validation is a
// cheap FITS-magic check on the stored bytes.
package store
