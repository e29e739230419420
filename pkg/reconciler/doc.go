// Package reconciler detects drift between the roster and the per-network
// manifests. A node recorded in only one of them is left behind by a lifecycle
// operation that failed half way; the reconciler reports it through the
// poanet_roster_drift gauge, a roster.drift event and the network check
// command, but never repairs anything itself.
package reconciler
