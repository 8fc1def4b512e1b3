// Package config provides configuration management for the chatbackup CLI.
//
// # Configuration File
//
// The default configuration file location is ~/.config/chatbackup/config.yaml.
// Every key can be overridden with a CHATBACKUP_ environment variable, dots
// replaced by underscores (CHATBACKUP_STORE_BACKEND).
//
//	version: 1
//	enabled: true
//	max_backups: 3          # 1..10
//	debounce: 2s
//	partitioning: chat      # chat or global
//	offload: false
//	workers: 2
//	store:
//	  backend: badger       # badger, memory or redis
//	  path: ""              # defaults to the XDG data dir
//	  quota_bytes: 0
//	  redis:
//	    addr: localhost:6379
//	restore:
//	  step_timeout: 30s
//	host:
//	  root: ~/SillyTavern/data/default-user/chats
//
// # Loading Configuration
//
// Call [Init] once, then [Load]. Load validates the result and returns the
// first problem found; [Validate] returns them all as [*FieldError] values.
//
// # Runtime Settings
//
// [Settings] is the view the backup engine reads while running. Turning
// automatic backups off after storage runs out goes through
// [Settings.DisableAutoBackup], which saves the file. [Settings.Watch] picks
// up edits made by hand.
package config
