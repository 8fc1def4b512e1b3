package filehost

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/thoreinstein/chatbackup/internal/autobackup"
)

// Watch follows changes to chat files under the root and translates them into
// host events on out until ctx is done. Writing to a different chat than the
// current one opens it and reports a conversation switch first.
//
// Watch closes out when it returns.
func (h *Host) Watch(ctx context.Context, out chan<- autobackup.Notification) error {
	defer close(out)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating file watcher")
	}
	defer w.Close()

	for _, dir := range []string{CharactersDir, GroupsDir} {
		if err := addRecursive(w, filepath.Join(h.root, dir)); err != nil {
			return err
		}
	}
	if err := w.Add(h.root); err != nil {
		return errors.Wrapf(err, "watching %s", h.root)
	}
	h.logger.Debug("watching chats", "root", h.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := addRecursive(w, ev.Name); err != nil {
					h.logger.Warn("cannot watch new directory", "path", ev.Name, "error", err.Error())
				}
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			for _, n := range h.changed(ev.Name) {
				select {
				case out <- n:
				case <-ctx.Done():
					return nil
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("file watcher error", "error", err.Error())
		}
	}
}

// changed reloads the chat at path and returns the events the change
// amounts to.
func (h *Host) changed(path string) []autobackup.Notification {
	name := filepath.Base(path)
	if filepath.Ext(name) != Ext || strings.HasPrefix(name, ".") {
		return nil
	}
	id, err := h.IdentityOf(path)
	if err != nil {
		return nil
	}

	h.mu.Lock()
	current, open := h.current, h.open
	h.mu.Unlock()

	if !open || current != id {
		if err := h.Open(id); err != nil {
			h.logger.Debug("cannot open changed chat", "path", path, "error", err.Error())
			return nil
		}
		return []autobackup.Notification{
			{Event: autobackup.ConversationSwitched, Identity: id},
			{Event: autobackup.MessageReceived, Identity: id},
		}
	}

	before, after, err := h.Reload()
	if err != nil {
		// Partially written files are read again on the next event.
		h.logger.Debug("cannot reload chat", "path", path, "error", err.Error())
		return nil
	}
	return []autobackup.Notification{{Event: activity(before, after), Identity: id}}
}

func activity(before, after int) autobackup.Event {
	switch {
	case after > before:
		return autobackup.MessageReceived
	case after < before:
		return autobackup.MessageDeleted
	default:
		return autobackup.MessageEdited
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Missing kind directories are created later and picked up
			// through the root watch.
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
	if err != nil {
		return errors.Wrapf(err, "watching %s", root)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
