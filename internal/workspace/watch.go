package workspace

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	storagefs "mdtasks/internal/storage/fs"
)

// Watch follows file changes under the root until ctx is done. Changed
// documents are re-indexed and passed to listeners; removed ones are
// dropped from the store.
func (w *Workspace) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}
	slog.Info("watching workspace", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "err", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, watcher, ev)
		}
	}
}

func (w *Workspace) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && (w.matcher.SkipDir(rel) || path == w.dataDir) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			slog.Warn("watch add failed", "dir", path, "err", err)
		}
		return nil
	})
}

func (w *Workspace) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, ev fsnotify.Event) {
	doc, err := storagefs.DocPathFromFile(w.root, ev.Name)
	if err != nil {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.matcher.SkipDir(doc) {
				_ = w.addTree(watcher, ev.Name)
			}
			return
		}
	}
	if !w.matcher.Match(doc) {
		return
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		if _, err := os.Stat(ev.Name); errors.Is(err, os.ErrNotExist) {
			if err := w.store.RemoveDocument(ctx, doc); err != nil {
				slog.Warn("drop removed document failed", "doc", doc, "err", err)
			}
			slog.Debug("document removed", "doc", doc)
		}
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	w.reload(ctx, doc, ev.Name)
}

func (w *Workspace) reload(ctx context.Context, doc, full string) {
	content, err := os.ReadFile(full)
	if err != nil {
		slog.Debug("reload skipped", "doc", doc, "err", err)
		return
	}
	if info, err := os.Stat(full); err == nil {
		if err := w.store.IndexDocumentIfChanged(ctx, doc, content, info.ModTime(), info.Size()); err != nil {
			slog.Warn("reindex failed", "doc", doc, "err", err)
		}
	}
	w.notify(doc, string(content))
}
