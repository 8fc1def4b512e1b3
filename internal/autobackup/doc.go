// Package autobackup connects host chat events to the backup engine.
//
// A [Controller] keeps one debounced trigger bound to the current
// conversation. Message events restart it; a conversation switch discards
// whatever was pending and rebinds. Closing the controller runs a pending
// backup immediately so nothing is lost on shutdown.
package autobackup
