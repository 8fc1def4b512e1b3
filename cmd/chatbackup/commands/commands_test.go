package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
)

// resetFlags returns every flag of cmd and its children to its default, so
// one test's flags do not leak into the next Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// env isolates config and data directories and creates a chat root holding
// one character chat. It returns the root and the chat file.
func env(t *testing.T) (string, string) {
	t.Helper()
	color.NoColor = true
	t.Setenv("CHATBACKUP_CONFIG_DIR", t.TempDir())
	t.Setenv("CHATBACKUP_DATA_DIR", t.TempDir())
	t.Chdir(t.TempDir())

	root := t.TempDir()
	file := filepath.Join(root, "characters", "seraphina", "Seraphina - 2024-05-01@10h00m00s.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	content := `{"user_name":"You","character_name":"Seraphina","create_date":"2024-05-01T10:00:00Z","chat_metadata":{"note":"glade"}}
{"name":"Seraphina","is_user":false,"mes":"Welcome, traveler."}
{"name":"You","is_user":true,"mes":"Where am I?"}
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return root, file
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, stderr bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	if stderr.Len() > 0 {
		t.Log(stderr.String())
	}
	return out.String(), err
}

const chatKey = "char_seraphina_Seraphina%20-%202024-05-01@10h00m00s"

func TestVersion(t *testing.T) {
	env(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "chatbackup version")
}

func TestVersion_IgnoresBadConfig(t *testing.T) {
	env(t)
	require.NoError(t, os.WriteFile("config.yaml", []byte("max_backups: 99\n"), 0o600))

	_, err := execute(t, "version")
	require.NoError(t, err)

	_, err = execute(t, "backup", "list")
	require.Error(t, err)
	var exitErr *cberrors.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cberrors.ExitUser, exitErr.Code)
}

func TestQuietAndVerboseConflict(t *testing.T) {
	env(t)
	_, err := execute(t, "-q", "-v", "backup", "list")
	require.Error(t, err)
}

func TestSnapshotListShowExport(t *testing.T) {
	root, file := env(t)

	out, err := execute(t, "snapshot", file)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Backed up 2 messages")

	// Same last message replaces instead of adding.
	out, err = execute(t, "snapshot", file, "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Replaced backup")

	out, err = execute(t, "backup", "list", "--json")
	require.NoError(t, err, out)
	var listed []struct {
		Key     string `json:"key"`
		Backups []struct {
			Timestamp    int64  `json:"timestamp"`
			DisplayName  string `json:"display_name"`
			MessageCount int    `json:"message_count"`
			Preview      string `json:"preview"`
		} `json:"backups"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, chatKey, listed[0].Key)
	require.Len(t, listed[0].Backups, 1)
	assert.Equal(t, "Seraphina", listed[0].Backups[0].DisplayName)
	assert.Equal(t, "Where am I?", listed[0].Backups[0].Preview)

	out, err = execute(t, "backup", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Seraphina: Seraphina - 2024-05-01@10h00m00s")
	assert.Contains(t, out, "key: "+chatKey)

	out, err = execute(t, "backup", "show", chatKey, "-f", "toml")
	require.NoError(t, err, out)
	assert.Contains(t, out, "message_count = 2")

	out, err = execute(t, "backup", "show", chatKey, "--full", "-f", "yaml")
	require.NoError(t, err, out)
	assert.Contains(t, out, "note: glade")
	assert.Contains(t, out, "Welcome, traveler.")

	_, err = execute(t, "backup", "show", chatKey, "-f", "xml")
	require.Error(t, err)

	exported := filepath.Join(t.TempDir(), "out.jsonl")
	out, err = execute(t, "backup", "export", chatKey, "-o", exported)
	require.NoError(t, err, out)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))

	md := filepath.Join(t.TempDir(), "out.md")
	out, err = execute(t, "backup", "export", chatKey, "-o", md, "--user-name", "Traveler")
	require.NoError(t, err, out)
	data, err = os.ReadFile(md)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "---\ntitle: Seraphina\n"))
	assert.Contains(t, string(data), "**Seraphina**\n\nWelcome, traveler.\n")

	_, err = execute(t, "backup", "export", chatKey, "-o", md, "-f", "pdf")
	require.Error(t, err)

	out, err = execute(t, "backup", "verify")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Verified 1 backups of 1 chats")
}

func TestRestore(t *testing.T) {
	root, file := env(t)
	_, err := execute(t, "snapshot", file)
	require.NoError(t, err)

	out, err := execute(t, "backup", "restore", chatKey, "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Restore cancelled", "EOF on the prompt declines")

	out, err = execute(t, "backup", "restore", chatKey, "--yes", "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Restored 2 messages into ")

	chats, err := filepath.Glob(filepath.Join(root, "characters", "seraphina", "*.jsonl"))
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	original, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(original), "\n"), "original chat is untouched")
}

func TestRestore_NoChatRoot(t *testing.T) {
	_, file := env(t)
	_, err := execute(t, "snapshot", file)
	require.NoError(t, err)

	_, err = execute(t, "backup", "restore", chatKey, "--yes")
	require.Error(t, err)
}

func TestDeletePruneClear(t *testing.T) {
	_, file := env(t)
	_, err := execute(t, "snapshot", file)
	require.NoError(t, err)

	out, err := execute(t, "backup", "prune", "--keep", "0", "--dry-run")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Would remove 1 backups")

	out, err = execute(t, "backup", "prune")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Nothing to prune")

	_, err = execute(t, "backup", "clear")
	require.Error(t, err)

	out, err = execute(t, "backup", "clear", "--force")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Removed 1 backups")

	_, err = execute(t, "backup", "delete", chatKey, "12345")
	require.Error(t, err)
	assert.True(t, cberrors.Is(err, cberrors.ErrNotFound))

	_, err = execute(t, "backup", "delete", "not-a-key", "1")
	require.Error(t, err)
}

func TestConfigSetGet(t *testing.T) {
	env(t)

	out, err := execute(t, "config", "set", "max_backups", "5")
	require.NoError(t, err, out)

	out, err = execute(t, "config", "get", "max_backups")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	_, err = execute(t, "config", "set", "max_backups", "50")
	require.Error(t, err)

	_, err = execute(t, "config", "set", "colour", "blue")
	require.Error(t, err)

	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "max_backups: 5")

	out, err = execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestMetrics(t *testing.T) {
	_, file := env(t)
	_, err := execute(t, "snapshot", file)
	require.NoError(t, err)

	out, err := execute(t, "metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "chatbackup_stored_records 1")
	assert.Contains(t, out, "chatbackup_auto_backup_enabled 1")
}

func TestMain_ExitCodes(t *testing.T) {
	env(t)
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"backup", "clear"})
	rootCmd.SetOut(&bytes.Buffer{})

	var stderr bytes.Buffer
	code := Main(&stderr)
	assert.Equal(t, cberrors.ExitUser, code)
	assert.Contains(t, stderr.String(), "Run again with --force")
}

func TestDoctor(t *testing.T) {
	root, _ := env(t)

	_, err := execute(t, "config", "set", "enabled", "false")
	require.NoError(t, err)

	out, err := execute(t, "doctor", "--json", "--root", root)
	require.Error(t, err)
	var exitErr *cberrors.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cberrors.ExitUser, exitErr.Code)

	var report struct {
		Results []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	statuses := map[string]string{}
	for _, r := range report.Results {
		statuses[r.Name] = r.Status
	}
	assert.Equal(t, "pass", statuses["config-file"])
	assert.Equal(t, "pass", statuses["backup-store"])
	assert.Equal(t, "pass", statuses["chat-root"])
	assert.Equal(t, "warning", statuses["auto-backup"])

	out, err = execute(t, "doctor", "--fix", "--all", "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "enabled automatic backups")
	assert.Contains(t, out, "0 warnings, 0 errors")

	out, err = execute(t, "config", "get", "enabled")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	_, err = execute(t, "doctor", "--json", "--all")
	require.Error(t, err)
}
