// Package validator checks the contents of a backup store against the
// rules the store maintains on write: every entry decodes, no partition
// holds more than the retention count, and no chat has two backups of the
// same last message.
//
// Problems are collected as [Issue] values in a [Result] and written with
// a [Reporter]:
//
//	listing, err := store.ListAll(ctx)
//	...
//	result := validator.Backups(listing, store.MaxBackups(), store.Mode())
//	validator.NewReporter(os.Stdout, validator.FormatText).Report(result)
//
// Errors mean data was lost or written by something other than
// chatbackup. Warnings resolve themselves on the next write.
package validator
