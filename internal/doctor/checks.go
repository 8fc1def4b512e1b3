package doctor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/chatbackup/internal/backup"
	"github.com/thoreinstein/chatbackup/internal/config"
	"github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/host/filehost"
)

// Permission limits. The config file may hold a redis password, and the
// store holds chat contents.
const (
	secureFilePerm os.FileMode = 0600
	secureDirPerm  os.FileMode = 0700
)

// ConfigCheck validates the configuration file on disk, independently of
// the configuration the running command loaded.
type ConfigCheck struct {
	path string
}

var _ Check = (*ConfigCheck)(nil)

// NewConfigCheck checks the config file at path.
func NewConfigCheck(path string) *ConfigCheck {
	return &ConfigCheck{path: path}
}

// Name returns the unique identifier for this check.
func (c *ConfigCheck) Name() string { return "config-file" }

// Category returns the grouping for this check.
func (c *ConfigCheck) Category() string { return "config" }

// Run parses the file over the defaults and validates the result.
func (c *ConfigCheck) Run(context.Context) *CheckResult {
	result := &CheckResult{Details: map[string]any{"path": c.path}}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		result.Status = SeverityInfo
		result.Message = "no config file, using defaults"
		result.FixHint = "Run: chatbackup config init"
		return result
	}
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("cannot read config file: %v", err)
		return result
	}

	cfg := config.Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file decodes to io.EOF and keeps the defaults.
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("config file is not valid YAML: %v", err)
		result.FixHint = "Run: chatbackup config edit"
		return result
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		problems := make([]string, len(errs))
		for i, e := range errs {
			problems[i] = e.Error()
		}
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%d invalid setting(s)", len(errs))
		result.Details["problems"] = problems
		result.FixHint = "Run: chatbackup config edit"
		return result
	}

	result.Status = SeverityPass
	result.Message = "config file is valid"
	return result
}

// pathIssue is a permission problem found on a path.
type pathIssue struct {
	Path     string
	Type     string
	Mode     os.FileMode
	Fixable  bool
	Expected os.FileMode
}

// PermissionCheck flags config files and store directories readable by
// other users.
type PermissionCheck struct {
	PermissionFixer

	files []string
	dirs  []string
}

var (
	_ Check = (*PermissionCheck)(nil)
	_ Fixer = (*PermissionCheck)(nil)
)

// NewPermissionCheck checks files against 0600 and dirs against 0700.
// Paths that do not exist are skipped.
func NewPermissionCheck(files, dirs []string) *PermissionCheck {
	return &PermissionCheck{files: files, dirs: dirs}
}

// Name returns the unique identifier for this check.
func (c *PermissionCheck) Name() string { return "permissions" }

// Category returns the grouping for this check.
func (c *PermissionCheck) Category() string { return "filesystem" }

// Run stats every path and records the ones that are too open.
func (c *PermissionCheck) Run(context.Context) *CheckResult {
	var issues []pathIssue
	var problems []string

	check := func(path, kind string, want os.FileMode) {
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				problems = append(problems, fmt.Sprintf("%s: %v", path, err))
			}
			return
		}
		if kind == "directory" && !info.IsDir() {
			problems = append(problems, path+": not a directory")
			return
		}
		mode := info.Mode().Perm()
		if mode&^want != 0 {
			issues = append(issues, pathIssue{Path: path, Type: kind, Mode: mode, Fixable: true, Expected: want})
		}
	}
	for _, f := range c.files {
		check(f, "file", secureFilePerm)
	}
	for _, d := range c.dirs {
		check(d, "directory", secureDirPerm)
	}
	c.setIssues(issues)

	result := &CheckResult{}
	switch {
	case len(problems) > 0:
		result.Status = SeverityError
		result.Message = "cannot inspect some paths"
		result.Details = map[string]any{"problems": problems}
	case len(issues) > 0:
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("%d path(s) readable by other users", len(issues))
		open := make([]string, len(issues))
		for i, is := range issues {
			open[i] = fmt.Sprintf("%s (%04o, want %04o)", is.Path, is.Mode, is.Expected)
		}
		result.Details = map[string]any{"paths": open}
		result.Fixable = true
		result.FixHint = "Run: chatbackup doctor --fix"
	default:
		result.Status = SeverityPass
		result.Message = "permissions are restricted to the owner"
	}
	return result
}

// StoreCheck reads every partition of the backup store and reports
// entries that fail to decode.
type StoreCheck struct {
	store *backup.Store
}

var _ Check = (*StoreCheck)(nil)

// NewStoreCheck checks store.
func NewStoreCheck(store *backup.Store) *StoreCheck {
	return &StoreCheck{store: store}
}

// Name returns the unique identifier for this check.
func (c *StoreCheck) Name() string { return "backup-store" }

// Category returns the grouping for this check.
func (c *StoreCheck) Category() string { return "store" }

// Run lists all backups.
func (c *StoreCheck) Run(ctx context.Context) *CheckResult {
	listing, err := c.store.ListAll(ctx)
	if err != nil {
		return &CheckResult{
			Status:  SeverityError,
			Message: fmt.Sprintf("cannot read backup store: %v", err),
			FixHint: "Check store.backend and store.path in: chatbackup config show",
		}
	}

	details := map[string]any{
		"backups":      len(listing.Records),
		"max_backups":  c.store.MaxBackups(),
		"partitioning": string(c.store.Mode()),
	}
	if n := len(listing.Invalid); n > 0 {
		keys := make([]string, n)
		for i, inv := range listing.Invalid {
			keys[i] = fmt.Sprintf("%s[%d]", inv.Key, inv.Index)
		}
		details["invalid"] = keys
		return &CheckResult{
			Status:  SeverityWarning,
			Message: fmt.Sprintf("%d invalid backup entr(ies) will be dropped on the next write", n),
			Details: details,
			FixHint: "Run: chatbackup backup prune",
		}
	}
	return &CheckResult{
		Status:  SeverityPass,
		Message: fmt.Sprintf("%d backup(s) readable", len(listing.Records)),
		Details: details,
	}
}

// ChatRootCheck verifies the chat directory used by watch and restore.
type ChatRootCheck struct {
	root string
}

var _ Check = (*ChatRootCheck)(nil)

// NewChatRootCheck checks the chat directory at root.
func NewChatRootCheck(root string) *ChatRootCheck {
	return &ChatRootCheck{root: root}
}

// Name returns the unique identifier for this check.
func (c *ChatRootCheck) Name() string { return "chat-root" }

// Category returns the grouping for this check.
func (c *ChatRootCheck) Category() string { return "host" }

// Run lists the chats under the root.
func (c *ChatRootCheck) Run(context.Context) *CheckResult {
	if c.root == "" {
		return &CheckResult{
			Status:  SeverityInfo,
			Message: "host.root not set; watch and restore need it",
			FixHint: "Run: chatbackup config set host.root <dir>",
		}
	}
	info, err := os.Stat(c.root)
	if err != nil || !info.IsDir() {
		return &CheckResult{
			Status:  SeverityError,
			Message: "chat directory does not exist",
			Details: map[string]any{"root": c.root},
			FixHint: "Run: chatbackup config set host.root <dir>",
		}
	}
	chats, err := filehost.New(c.root).Chats()
	if err != nil {
		return &CheckResult{
			Status:  SeverityError,
			Message: fmt.Sprintf("cannot list chats: %v", err),
			Details: map[string]any{"root": c.root},
		}
	}
	return &CheckResult{
		Status:  SeverityPass,
		Message: fmt.Sprintf("%d chat(s) found", len(chats)),
		Details: map[string]any{"root": c.root, "chats": len(chats)},
	}
}

// AutoBackupCheck warns when automatic backups are switched off, which
// also happens on its own after the store runs out of space.
type AutoBackupCheck struct {
	settings *config.Settings
	disabled bool
}

var (
	_ Check = (*AutoBackupCheck)(nil)
	_ Fixer = (*AutoBackupCheck)(nil)
)

// NewAutoBackupCheck checks the live settings.
func NewAutoBackupCheck(settings *config.Settings) *AutoBackupCheck {
	return &AutoBackupCheck{settings: settings}
}

// Name returns the unique identifier for this check.
func (c *AutoBackupCheck) Name() string { return "auto-backup" }

// Category returns the grouping for this check.
func (c *AutoBackupCheck) Category() string { return "config" }

// Run reads the enabled flag.
func (c *AutoBackupCheck) Run(context.Context) *CheckResult {
	c.disabled = !c.settings.AutoBackupEnabled()
	if c.disabled {
		return &CheckResult{
			Status:  SeverityWarning,
			Message: "automatic backups are disabled",
			Fixable: true,
			FixHint: "Free up storage, then run: chatbackup doctor --fix",
		}
	}
	return &CheckResult{
		Status:  SeverityPass,
		Message: fmt.Sprintf("automatic backups enabled, keeping %d per chat", c.settings.MaxBackups()),
	}
}

// CanFix reports whether Run found backups disabled.
func (c *AutoBackupCheck) CanFix() bool {
	return c.disabled
}

// Fix switches automatic backups back on and saves the setting.
func (c *AutoBackupCheck) Fix(context.Context) []FixResult {
	if !c.disabled {
		return nil
	}
	result := FixResult{Path: "enabled"}
	if err := c.settings.SetEnabled(true); err != nil {
		result.Description = "failed to enable automatic backups"
		result.Error = err
		return []FixResult{result}
	}
	c.disabled = false
	result.Fixed = true
	result.Description = "enabled automatic backups"
	return []FixResult{result}
}
