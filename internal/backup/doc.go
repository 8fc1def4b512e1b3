// Package backup stores conversation snapshots and enforces their retention
// policy.
//
// # Retention
//
// A [Store] keeps at most MaxBackups records per partition. A partition is
// either one conversation identity ([PerChat], the default) or the whole
// store ([Global]). The rules are the same in both modes:
//
//   - Records are ordered newest first by timestamp.
//   - A record with the same identity and last message index as an existing
//     one replaces it instead of being appended, so a conversation with no
//     new messages never accumulates duplicate snapshots.
//   - When a write exceeds capacity the oldest records are evicted first.
//   - Timestamps are unique and strictly increasing within a partition.
//
// The mode is persisted on the first write. Opening an existing store in the
// other mode fails with [ErrModeMismatch].
//
// # Storage Layout
//
// Records are kept in a [kv.Store] as JSON lists:
//
//	chatbackup:mode                    "chat" or "global"
//	chatbackup:p:char_42_MyChat        per-chat list for one identity
//	chatbackup:global                  the single list in global mode
//
// # Creating Backups
//
//	store, err := backup.Open(ctx, kv.NewMemory(), backup.WithMaxBackups(3))
//	res, err := store.Put(ctx, record)
//	fmt.Println(res.Replaced, len(res.Evicted), res.Count)
//
// # Listing and Pruning
//
// [Store.List] returns one identity's records and [Store.ListAll] returns
// everything. Entries that fail to decode or validate are skipped and
// reported in [Listing.Invalid] rather than failing the listing.
//
// [Store.Prune] applies a tighter retention count immediately, [Store.Delete]
// removes a single record and [Store.Clear] removes every record.
//
// # Error Handling
//
//   - [ExhaustedError]: the backend is out of space; matches ErrStorageExhausted
//     and carries the record that was not written
//   - ErrStorageIO: any other backend failure
//   - ErrInvalidRecord: a record failed validation
//   - ErrNotFound: Get or Delete named a record that does not exist
//   - [ErrModeMismatch]: the backend was written in the other partitioning mode
package backup
