// Package cli implements the cpython-stats command tree.
//
// import-prs, import-commits and import-all run each selected source once,
// from its stored cursor to the present. watch repeats import-all every
// SYNC_INTERVAL and serves /health and /v1/sync/status on STATUS_ADDR.
// migrate manages the schema directly and exits 2 on any failure.
//
// The process exits 0 when every source finished, 1 when any source ended
// in the error state or could not be started, and 2 on usage or
// configuration errors.
package cli
