// Package restore rebuilds a chat session from a backup record.
//
// A restore is destructive for the chat it writes into, so it always asks a
// [Confirmer] first. After confirmation it runs these steps in order:
//
//	SwitchingContext  select the record's character or group
//	CreatingSession   open a new, empty chat
//	InjectingData     replace the live messages and metadata
//	Rendering         redraw (failure is reported, not fatal)
//	Persisting        save the chat
//
// Each host call is bounded by a step timeout. A failure stops the sequence
// where it is; nothing is rolled back, and retrying starts again from
// confirmation.
//
// Mocks for [Host] and [Confirmer] live in the mocks subpackage and are
// generated with mockery.
package restore
