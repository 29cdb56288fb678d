// Package workspace hosts the Markdown documents under a root directory. It
// serves line edits against the files on disk, keeps the task store in sync
// and reports changes to listeners.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mdtasks/internal/document"
	"mdtasks/internal/index"
	"mdtasks/internal/storage/fs"
)

var ErrNotDocument = errors.New("not a workspace document")

type Options struct {
	Root        string
	DataDir     string
	Include     []string
	Exclude     []string
	BusyTimeout time.Duration
	LockTimeout time.Duration
}

// Listener receives the full text of a document after it changed.
type Listener func(doc, text string)

type Workspace struct {
	root    string
	dataDir string
	matcher *Matcher
	store   *index.Store
	locker  *fs.Locker
	lock    *fs.DirLock

	mu        sync.RWMutex
	listeners []Listener
}

// Open locks the data directory, opens the task store and indexes the
// documents under the root.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", root)
	}
	matcher, err := NewMatcher(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(root, ".mdtasks")
	}
	if dataDir, err = filepath.Abs(dataDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	lock, err := fs.LockDir(dataDir, opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	store, err := index.OpenWithOptions(filepath.Join(dataDir, "index.sqlite"), index.OpenOptions{BusyTimeout: opts.BusyTimeout})
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	store.SetLockTimeout(opts.LockTimeout)

	start := time.Now()
	if err := store.Init(ctx, root, matcher); err != nil {
		_ = store.Close()
		_ = lock.Release()
		return nil, fmt.Errorf("index workspace: %w", err)
	}
	slog.Info("workspace indexed", "root", root, "duration_ms", time.Since(start).Milliseconds())

	return &Workspace{
		root:    root,
		dataDir: dataDir,
		matcher: matcher,
		store:   store,
		locker:  fs.NewLocker(),
		lock:    lock,
	}, nil
}

func (w *Workspace) Close() error {
	err := w.store.Close()
	if lerr := w.lock.Release(); err == nil {
		err = lerr
	}
	return err
}

func (w *Workspace) Root() string        { return w.root }
func (w *Workspace) Store() *index.Store { return w.store }
func (w *Workspace) Matcher() *Matcher   { return w.matcher }

// Subscribe registers fn for change notifications. Listeners run on the
// goroutine that observed the change and must not block.
func (w *Workspace) Subscribe(fn Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *Workspace) notify(doc, text string) {
	w.mu.RLock()
	listeners := append([]Listener(nil), w.listeners...)
	w.mu.RUnlock()
	for _, fn := range listeners {
		fn(doc, text)
	}
}

func (w *Workspace) resolve(doc string) (string, string, error) {
	clean, err := fs.NormalizeDocPath(doc)
	if err != nil {
		return "", "", err
	}
	if !w.matcher.Match(clean) {
		return "", "", fmt.Errorf("%s: %w", clean, ErrNotDocument)
	}
	full, err := fs.DocFilePath(w.root, clean)
	if err != nil {
		return "", "", err
	}
	return clean, full, nil
}

// Snapshot returns the current text of doc as stored on disk.
func (w *Workspace) Snapshot(_ context.Context, doc string) (string, error) {
	_, full, err := w.resolve(doc)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ReplaceLine rewrites one line of doc on disk, keeping its line ending, and
// re-indexes the document. The write is refused with document.ErrLineChanged
// when the line on disk no longer reads prior.
func (w *Workspace) ReplaceLine(ctx context.Context, doc string, line int, prior, text string) error {
	clean, full, err := w.resolve(doc)
	if err != nil {
		return err
	}
	unlock := w.locker.Lock(clean)
	content, err := os.ReadFile(full)
	if err != nil {
		unlock()
		return err
	}
	buf := document.Parse(string(content))
	if err := buf.SwapLine(line, prior, text); err != nil {
		unlock()
		return fmt.Errorf("%s: %w", clean, err)
	}
	updated := buf.String()
	if err := fs.WriteFileAtomic(full, []byte(updated), 0o644); err != nil {
		unlock()
		return err
	}
	if info, err := os.Stat(full); err == nil {
		if err := w.store.IndexDocument(ctx, clean, []byte(updated), info.ModTime(), info.Size()); err != nil {
			slog.Warn("reindex after edit failed", "doc", clean, "err", err)
		}
	}
	unlock()

	slog.Debug("line replaced", "doc", clean, "line", line)
	w.notify(clean, updated)
	return nil
}

// ToggleLine flips the checkbox on line of doc without a sync coordinator.
func (w *Workspace) ToggleLine(ctx context.Context, doc string, line int) (index.ToggleResult, error) {
	text, err := w.Snapshot(ctx, doc)
	if err != nil {
		return index.LineOutOfRange, err
	}
	buf := document.Parse(text)
	edit, res := index.Toggle(buf, line)
	if res != index.Toggled {
		return res, nil
	}
	return res, w.ReplaceLine(ctx, doc, edit.Line, buf.Line(edit.Line), edit.Text)
}

// Reindex reconciles the store with the files on disk.
func (w *Workspace) Reindex(ctx context.Context) error {
	scanned, updated, cleaned, err := w.store.RecheckFromFS(ctx, w.root, w.matcher)
	if err != nil {
		return err
	}
	slog.Info("workspace rechecked", "scanned", scanned, "updated", updated, "cleaned", cleaned)
	return nil
}
