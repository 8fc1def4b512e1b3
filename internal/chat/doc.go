// Package chat defines the conversation data model shared by the backup,
// restore and host packages.
//
// An [Identity] names one logical conversation: a character or group plus the
// chat session within it. Its [Identity.Key] is the partition key used by the
// backup store:
//
//	char_<sourceID>_<chatName>
//	group_<sourceID>_<chatName>
//
// A [Record] is one stored snapshot. A [Live] is the handle through which the
// host's mutable message list and metadata map are read and replaced.
package chat
