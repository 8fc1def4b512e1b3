package filehost

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"

	"github.com/thoreinstein/chatbackup/internal/chat"
	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/paths"
	"github.com/thoreinstein/chatbackup/pkg/fileutil"
)

// Ext is the chat file extension.
const Ext = ".jsonl"

// Directory names under the root, by kind.
const (
	CharactersDir = "characters"
	GroupsDir     = "groups"
)

// Header fields.
const (
	headerUserName      = "user_name"
	headerCharacterName = "character_name"
	headerCreateDate    = "create_date"
	headerChatMetadata  = "chat_metadata"
)

var (
	// ErrNoChat is returned when an operation needs an open chat and there
	// is none.
	ErrNoChat = errors.New("no chat is open")

	// ErrEntityNotFound is returned by SelectEntity for unknown characters
	// and groups.
	ErrEntityNotFound = errors.Mark(errors.New("character or group not found"), cberrors.ErrNotFound)

	// ErrUnsafeName is returned for source ids and chat names that are not a
	// single path element under the root.
	ErrUnsafeName = errors.New("name is not a single path element")
)

// Host serves chats stored as JSONL files laid out as
// <root>/characters/<source id>/<chat name>.jsonl and
// <root>/groups/<source id>/<chat name>.jsonl.
//
// The first line of a chat file is a header object; every following line is
// one message. The header's chat_metadata field holds the chat metadata.
type Host struct {
	root       string
	userName   string
	createDirs bool
	out        io.Writer
	now        func() time.Time
	logger     *slog.Logger

	live *chat.Live

	mu       sync.Mutex
	current  chat.Identity
	open     bool
	header   map[string]any
	selected chat.Identity
}

// Option configures a Host.
type Option func(*Host)

// WithUserName sets the user name written to new chat headers.
func WithUserName(name string) Option {
	return func(h *Host) {
		h.userName = name
	}
}

// WithCreateEntities makes SelectEntity create missing character and group
// directories instead of failing.
func WithCreateEntities(on bool) Option {
	return func(h *Host) {
		h.createDirs = on
	}
}

// WithOutput sets where Render prints the transcript.
func WithOutput(w io.Writer) Option {
	return func(h *Host) {
		if w != nil {
			h.out = w
		}
	}
}

// WithClock sets the time source used to name new chats.
func WithClock(now func() time.Time) Option {
	return func(h *Host) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger sets the host's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a Host rooted at root.
func New(root string, opts ...Option) *Host {
	h := &Host{
		root:     root,
		userName: "You",
		out:      io.Discard,
		now:      time.Now,
		logger:   slog.Default(),
		live:     chat.NewLive(nil, nil),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Root returns the chat directory.
func (h *Host) Root() string {
	return h.root
}

func kindDir(k chat.Kind) string {
	if k == chat.KindGroup {
		return GroupsDir
	}
	return CharactersDir
}

// EntityDir returns the directory holding an entity's chats.
func (h *Host) EntityDir(kind chat.Kind, sourceID string) string {
	return filepath.Join(h.root, kindDir(kind), sourceID)
}

// Path returns the chat file for id.
func (h *Host) Path(id chat.Identity) string {
	return filepath.Join(h.EntityDir(id.Kind, id.SourceID), id.ChatName+Ext)
}

// checkName rejects names that would resolve outside their parent directory.
func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..",
		strings.ContainsAny(name, "/\\\x00"),
		strings.ContainsRune(name, filepath.Separator):
		return errors.Wrapf(ErrUnsafeName, "%q", name)
	}
	return nil
}

// checkIdentity validates id and ensures it maps to a file inside the root.
func checkIdentity(id chat.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if err := checkName(id.SourceID); err != nil {
		return err
	}
	return checkName(id.ChatName)
}

// IdentityOf maps a chat file path under the root back to its identity.
func (h *Host) IdentityOf(path string) (chat.Identity, error) {
	rel, err := filepath.Rel(h.root, path)
	if err != nil {
		return chat.Identity{}, errors.Wrapf(err, "%s is not under %s", path, h.root)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 || !strings.HasSuffix(parts[2], Ext) {
		return chat.Identity{}, errors.Newf("%s is not a chat file", rel)
	}

	var kind chat.Kind
	switch parts[0] {
	case CharactersDir:
		kind = chat.KindCharacter
	case GroupsDir:
		kind = chat.KindGroup
	default:
		return chat.Identity{}, errors.Newf("%s is not under %s or %s", rel, CharactersDir, GroupsDir)
	}

	id := chat.Identity{Kind: kind, SourceID: parts[1], ChatName: strings.TrimSuffix(parts[2], Ext)}
	return id, id.Validate()
}

// Chats lists every chat file under the root.
func (h *Host) Chats() ([]chat.Identity, error) {
	var ids []chat.Identity
	for _, dir := range []string{CharactersDir, GroupsDir} {
		base := filepath.Join(h.root, dir)
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == base {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || filepath.Ext(path) != Ext || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			id, err := h.IdentityOf(path)
			if err != nil {
				h.logger.Debug("skipping file", "path", path, "error", err.Error())
				return nil
			}
			ids = append(ids, id)
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s", base)
		}
	}
	slices.SortFunc(ids, func(a, b chat.Identity) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return ids, nil
}

// Open loads id's chat file and makes it the current chat.
func (h *Host) Open(id chat.Identity) error {
	if err := checkIdentity(id); err != nil {
		return err
	}
	header, messages, err := readChat(h.Path(id))
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = id
	h.selected = chat.Identity{Kind: id.Kind, SourceID: id.SourceID}
	h.open = true
	h.header = header
	h.live.ReplaceAll(messages, metadataOf(header))
	return nil
}

// Reload re-reads the current chat from disk. It returns the message count
// before and after.
func (h *Host) Reload() (before, after int, err error) {
	h.mu.Lock()
	id, open := h.current, h.open
	h.mu.Unlock()
	if !open {
		return 0, 0, ErrNoChat
	}

	before = h.live.Len()
	if err := h.Open(id); err != nil {
		return before, before, err
	}
	return before, h.live.Len(), nil
}

// CurrentIdentity implements engine.Host.
func (h *Host) CurrentIdentity(context.Context) (chat.Identity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.open
}

// DisplayName implements engine.Host. It reads the character name from the
// chat header.
func (h *Host) DisplayName(_ context.Context, id chat.Identity) string {
	h.mu.Lock()
	if h.open && h.current == id {
		name, _ := h.header[headerCharacterName].(string)
		h.mu.Unlock()
		return name
	}
	h.mu.Unlock()

	if checkIdentity(id) != nil {
		return ""
	}
	header, err := readHeader(h.Path(id))
	if err != nil {
		return ""
	}
	name, _ := header[headerCharacterName].(string)
	return name
}

// Live implements engine.Host and restore.Host.
func (h *Host) Live() *chat.Live {
	return h.live
}

// SelectEntity implements restore.Host.
func (h *Host) SelectEntity(_ context.Context, kind chat.Kind, sourceID string) error {
	if !kind.Valid() || sourceID == "" {
		return errors.Newf("invalid entity %s/%q", kind, sourceID)
	}
	if err := checkName(sourceID); err != nil {
		return err
	}
	dir := h.EntityDir(kind, sourceID)

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return errors.Newf("%s is not a directory", dir)
	case errors.Is(err, fs.ErrNotExist) && h.createDirs:
		if err := paths.EnsureDir(dir, 0); err != nil {
			return err
		}
	case errors.Is(err, fs.ErrNotExist):
		return errors.Wrapf(ErrEntityNotFound, "%s %s", kind, sourceID)
	case err != nil:
		return errors.Wrapf(err, "checking %s", dir)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.selected = chat.Identity{Kind: kind, SourceID: sourceID}
	return nil
}

// CreateChat implements restore.Host. It creates an empty chat file for the
// selected entity, named after the entity and the current time.
func (h *Host) CreateChat(ctx context.Context) (chat.Identity, error) {
	h.mu.Lock()
	sel := h.selected
	h.mu.Unlock()
	if sel.SourceID == "" {
		return chat.Identity{}, errors.New("no character or group selected")
	}

	name := h.entityName(ctx, sel)
	base := fmt.Sprintf("%s - %s", paths.SafeFilename(name), h.now().Format("2006-01-02@15h04m05s"))
	id := chat.Identity{Kind: sel.Kind, SourceID: sel.SourceID, ChatName: base}
	for n := 2; ; n++ {
		if _, err := os.Stat(h.Path(id)); errors.Is(err, fs.ErrNotExist) {
			break
		}
		id.ChatName = fmt.Sprintf("%s (%d)", base, n)
	}

	header := map[string]any{
		headerUserName:      h.userName,
		headerCharacterName: name,
		headerCreateDate:    h.now().Format(time.RFC3339),
		headerChatMetadata:  map[string]any{},
	}
	if err := fileutil.AtomicWriteJSONL(h.Path(id), []any{header}); err != nil {
		return chat.Identity{}, errors.Wrapf(err, "creating %s", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = id
	h.open = true
	h.header = header
	h.live.ReplaceAll(nil, chat.Metadata{})
	h.logger.Debug("created chat", "identity", id.String())
	return id, nil
}

// entityName finds a display name for the entity from any of its existing
// chats, falling back to the source id.
func (h *Host) entityName(ctx context.Context, sel chat.Identity) string {
	entries, err := os.ReadDir(h.EntityDir(sel.Kind, sel.SourceID))
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != Ext || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			id := sel
			id.ChatName = strings.TrimSuffix(e.Name(), Ext)
			if name := h.DisplayName(ctx, id); name != "" {
				return name
			}
		}
	}
	return sel.SourceID
}

var (
	nameColor = color.New(color.FgCyan, color.Bold)
	userColor = color.New(color.FgGreen, color.Bold)
)

// Render implements restore.Host by printing the current chat.
func (h *Host) Render(_ context.Context) error {
	h.mu.Lock()
	id, open := h.current, h.open
	h.mu.Unlock()
	if !open {
		return ErrNoChat
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "== %s ==\n", id)
	for _, m := range h.live.Messages() {
		name, _ := m["name"].(string)
		if name == "" {
			name = "?"
		}
		c := nameColor
		if user, _ := m["is_user"].(bool); user {
			c = userColor
		}
		fmt.Fprintf(&buf, "%s: %s\n", c.Sprint(name), chat.StripHTML(chat.MessageText(m)))
	}
	_, err := h.out.Write(buf.Bytes())
	return err
}

// SaveChat implements restore.Host by writing the current chat to disk.
func (h *Host) SaveChat(_ context.Context) error {
	h.mu.Lock()
	id, open := h.current, h.open
	header := make(map[string]any, len(h.header)+1)
	for k, v := range h.header {
		header[k] = v
	}
	h.mu.Unlock()
	if !open {
		return ErrNoChat
	}
	if err := checkIdentity(id); err != nil {
		return err
	}

	header[headerChatMetadata] = h.live.Metadata()
	lines := []any{header}
	for _, m := range h.live.Messages() {
		lines = append(lines, m)
	}

	if err := paths.EnsureDir(filepath.Dir(h.Path(id)), 0); err != nil {
		return err
	}
	if err := fileutil.AtomicWriteJSONL(h.Path(id), lines); err != nil {
		return errors.Wrapf(err, "saving %s", id)
	}

	h.mu.Lock()
	h.header = header
	h.mu.Unlock()
	return nil
}

// WriteChat writes a standalone chat file with the given messages and
// metadata, as used by export.
func WriteChat(path, characterName, userName string, created time.Time, messages []chat.Message, metadata chat.Metadata) error {
	if metadata == nil {
		metadata = chat.Metadata{}
	}
	header := map[string]any{
		headerUserName:      userName,
		headerCharacterName: characterName,
		headerCreateDate:    created.Format(time.RFC3339),
		headerChatMetadata:  metadata,
	}
	lines := make([]any, 0, len(messages)+1)
	lines = append(lines, header)
	for _, m := range messages {
		lines = append(lines, m)
	}
	return fileutil.AtomicWriteJSONL(path, lines)
}

func isHeader(obj map[string]any) bool {
	if _, ok := obj["mes"]; ok {
		return false
	}
	_, hasMeta := obj[headerChatMetadata]
	_, hasUser := obj[headerUserName]
	return hasMeta || hasUser
}

func metadataOf(header map[string]any) chat.Metadata {
	if meta, ok := header[headerChatMetadata].(map[string]any); ok {
		return meta
	}
	return chat.Metadata{}
}

// readChat splits a chat file into its header and messages.
func readChat(path string) (map[string]any, []chat.Message, error) {
	lines, err := fileutil.ReadJSONL(path, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, errors.Mark(errors.Wrapf(err, "chat %s", path), cberrors.ErrNotFound)
		}
		return nil, nil, errors.Wrapf(err, "reading chat %s", path)
	}

	header := map[string]any{}
	if len(lines) > 0 && isHeader(lines[0]) {
		header = lines[0]
		lines = lines[1:]
	}
	messages := make([]chat.Message, len(lines))
	for i, l := range lines {
		messages[i] = l
	}
	return header, messages, nil
}

// readHeader decodes only the first line of a chat file.
func readHeader(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	var header map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, err
	}
	if !isHeader(header) {
		return nil, errors.Newf("%s has no header", path)
	}
	return header, nil
}
