// Package filehost is a chat host backed by a directory of JSONL chat files.
//
// It lets the backup engine and the restorer work against chats kept on disk
// in the same layout a SillyTavern user directory uses, and [Host.Watch]
// turns edits to those files into the activity events that drive automatic
// backups.
package filehost
