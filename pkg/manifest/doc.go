// Package manifest builds the per-network docker compose file.
//
// A Manifest wraps a yaml.v3 node tree rather than a typed struct so that
// services, comments and extension keys the builder does not own survive a
// load/modify/save cycle untouched. Only the bootnode service and the node
// services written by UpsertNodeService are generated; everything else is
// passed through. New files carry no top-level version key; an existing one
// is kept.
package manifest
