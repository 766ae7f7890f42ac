// Package archive defines the boundary to remote solar data archives and
// provides thin HTTP adapters for the ones the missions use.
//
// An Adapter does two things: search a time interval for matching
// observations, and fetch one observation into a writer. Searches that
// succeed with zero matches return an empty slice, which is a definitive
// answer; failures of the query itself are reported as errors, usually
// wrapped in TransientError so the driver can record the cell for retry.
//
// Adapters:
//   - JSOC: DRMS series queries for SDO/AIA and SDO/HMI
//   - VSO: provider/instrument queries for SOHO/EIT (SDAC) and
//     STEREO/SECCHI-EUVI (SSC)
//   - SOAR: Solar Orbiter product queries for EUI and PHI
//
// The exact wire formats are owned by the archives; these adapters only
// translate between a (interval, dimension) request and the archive's query
// parameters, and carry no retry logic beyond the shared HTTP client's
// transport-level policy.
package archive
