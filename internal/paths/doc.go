// Package paths resolves the per-user directories chatbackup reads and writes.
//
// Configuration lives under the XDG config home and the embedded backup
// store under the XDG data home (github.com/adrg/xdg). Both can be
// overridden with CHATBACKUP_CONFIG_DIR and CHATBACKUP_DATA_DIR.
package paths
