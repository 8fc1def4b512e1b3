// Package kv provides the key-value persistence backends used by the backup
// store.
//
// Three implementations of [Store] are available:
//
//   - [Badger]: an embedded badger database on local disk (the default)
//   - [Memory]: an in-process map with an optional byte quota
//   - [Redis]: a redis server, for setups that share one store
//
// Backends report out-of-space conditions as [ErrQuotaExceeded] and missing
// keys as [ErrNotFound]; callers test for them with errors.Is.
package kv
