// Package metrics exposes Prometheus collectors for backup and restore
// activity and writes them in the Prometheus text format.
package metrics
