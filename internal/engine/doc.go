// Package engine decides when a conversation snapshot is taken and hands the
// work to a storage backend.
//
// [Engine.PerformBackup] checks its preconditions in order and returns
// quietly, with [Result.Skipped] set, when one is unmet:
//
//  1. automatic backups are enabled
//  2. a conversation is open
//  3. the conversation has at least one message
//  4. no backup for the same conversation is already running
//  5. storage has not been exhausted
//
// The copy and store step runs on a [Backend]: [InProcess] does it on the
// calling goroutine, while the worker package runs it on a pool. Both report
// results the same way, so the engine's handling does not depend on where
// the work ran.
//
// When storage is exhausted the engine turns automatic backups off through
// [Settings], latches, and warns the user once.
package engine
