// Package hosttest provides an in-memory host.Environment for tests. Files,
// documents, and settings are plain maps; mutation helpers fire the same
// change notifications the real environment would.
package hosttest

import (
	"context"
	"errors"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pandeptwidyaop/cmdprobe/internal/host"
)

type fileEntry struct {
	text     string
	modTime  time.Time
	readable bool
}

// Env is a scriptable in-memory host environment.
type Env struct {
	// InvokeFunc handles InvokeCommand calls. Nil means every invocation
	// fails with an error.
	InvokeFunc func(ctx context.Context, id string, args []any) (any, error)

	mu       sync.Mutex
	roots    []string
	files    map[string]fileEntry
	settings map[string]any
	docs     map[string]host.DocumentInfo
	active   string
	visible  []string
	clock    time.Time

	fileCreated   handlers[func(string)]
	fileChanged   handlers[func(string)]
	fileDeleted   handlers[func(string)]
	docOpened     handlers[func(host.DocumentInfo)]
	docClosed     handlers[func(host.DocumentInfo)]
	activeChanged handlers[func(string)]
	visChanged    handlers[func([]string)]
	settingChange handlers[func(string, any)]
}

type handlers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]T
}

func (h *handlers[T]) add(fn T) host.Disposable {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fns == nil {
		h.fns = make(map[int]T)
	}
	id := h.next
	h.next++
	h.fns[id] = fn
	return host.DisposeFunc(func() {
		h.mu.Lock()
		delete(h.fns, id)
		h.mu.Unlock()
	})
}

func (h *handlers[T]) each(fn func(T)) {
	h.mu.Lock()
	snapshot := make([]T, 0, len(h.fns))
	for _, f := range h.fns {
		snapshot = append(snapshot, f)
	}
	h.mu.Unlock()
	for _, f := range snapshot {
		fn(f)
	}
}

// New builds an Env with a single workspace root.
func New(root string) *Env {
	return &Env{
		roots:    []string{root},
		files:    make(map[string]fileEntry),
		settings: make(map[string]any),
		docs:     make(map[string]host.DocumentInfo),
		clock:    time.Now(),
	}
}

// --- mutation helpers for tests ---

// AddFile adds or silently replaces a file without firing events. Use for
// initial workspace population.
func (e *Env) AddFile(p, text string) {
	e.mu.Lock()
	e.clock = e.clock.Add(time.Millisecond)
	e.files[p] = fileEntry{text: text, modTime: e.clock, readable: true}
	e.mu.Unlock()
}

// AddUnreadableFile adds a file whose content cannot be read.
func (e *Env) AddUnreadableFile(p string) {
	e.mu.Lock()
	e.clock = e.clock.Add(time.Millisecond)
	e.files[p] = fileEntry{modTime: e.clock, readable: false}
	e.mu.Unlock()
}

// CreateFile adds a file and fires the file-created notification.
func (e *Env) CreateFile(p, text string) {
	e.AddFile(p, text)
	e.fileCreated.each(func(fn func(string)) { fn(p) })
}

// WriteFile replaces a file's content and fires file-changed.
func (e *Env) WriteFile(p, text string) {
	e.AddFile(p, text)
	e.fileChanged.each(func(fn func(string)) { fn(p) })
}

// DeleteFile removes a file and fires file-deleted.
func (e *Env) DeleteFile(p string) {
	e.mu.Lock()
	delete(e.files, p)
	e.mu.Unlock()
	e.fileDeleted.each(func(fn func(string)) { fn(p) })
}

// SetSetting updates a setting and fires setting-changed.
func (e *Env) SetSetting(key string, value any) {
	e.mu.Lock()
	e.settings[key] = value
	e.mu.Unlock()
	e.settingChange.each(func(fn func(string, any)) { fn(key, value) })
}

// SeedSetting sets a setting without firing events.
func (e *Env) SeedSetting(key string, value any) {
	e.mu.Lock()
	e.settings[key] = value
	e.mu.Unlock()
}

// OpenDocument registers an open document and fires document-opened.
func (e *Env) OpenDocument(doc host.DocumentInfo) {
	e.mu.Lock()
	e.docs[doc.URI] = doc
	e.mu.Unlock()
	e.docOpened.each(func(fn func(host.DocumentInfo)) { fn(doc) })
}

// CloseDocument removes an open document and fires document-closed.
func (e *Env) CloseDocument(uri string) {
	e.mu.Lock()
	doc, ok := e.docs[uri]
	if ok {
		delete(e.docs, uri)
		if e.active == uri {
			e.active = ""
		}
	}
	e.mu.Unlock()
	if ok {
		e.docClosed.each(func(fn func(host.DocumentInfo)) { fn(doc) })
	}
}

// SetVisibleEditors replaces the visible editor set and fires the change.
func (e *Env) SetVisibleEditors(uris []string) {
	e.mu.Lock()
	e.visible = append([]string(nil), uris...)
	e.mu.Unlock()
	e.visChanged.each(func(fn func([]string)) { fn(uris) })
}

// --- host.Environment ---

// InvokeCommand delegates to InvokeFunc.
func (e *Env) InvokeCommand(ctx context.Context, id string, args []any) (any, error) {
	if e.InvokeFunc == nil {
		return nil, errors.New("no invoke handler configured")
	}
	return e.InvokeFunc(ctx, id, args)
}

// WorkspaceRoots returns the configured roots.
func (e *Env) WorkspaceRoots() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.roots...)
}

// SetWorkspaceRoots replaces the workspace roots.
func (e *Env) SetWorkspaceRoots(roots []string) {
	e.mu.Lock()
	e.roots = append([]string(nil), roots...)
	e.mu.Unlock()
}

// Stat returns metadata for a file or directory.
func (e *Env) Stat(p string) (host.FileInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f, ok := e.files[p]; ok {
		return host.FileInfo{Size: int64(len(f.text)), ModTime: f.modTime}, nil
	}
	prefix := strings.TrimSuffix(p, "/") + "/"
	for fp := range e.files {
		if strings.HasPrefix(fp, prefix) {
			return host.FileInfo{IsDir: true}, nil
		}
	}
	for _, root := range e.roots {
		if p == root {
			return host.FileInfo{IsDir: true}, nil
		}
	}
	return host.FileInfo{}, os.ErrNotExist
}

// ReadFileText returns a file's content.
func (e *Env) ReadFileText(p string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.files[p]
	if !ok {
		return "", os.ErrNotExist
	}
	if !f.readable {
		return "", os.ErrPermission
	}
	return f.text, nil
}

// ListDirectory lists the immediate children of a directory.
func (e *Env) ListDirectory(dir string) ([]host.DirEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	prefix := strings.TrimSuffix(dir, "/") + "/"
	seen := make(map[string]bool)
	var out []host.DirEntry
	for fp := range e.files {
		if !strings.HasPrefix(fp, prefix) {
			continue
		}
		rest := strings.TrimPrefix(fp, prefix)
		name, _, hasSub := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, host.DirEntry{Name: name, IsDir: hasSub})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (e *Env) OnFileCreated(fn func(string)) host.Disposable   { return e.fileCreated.add(fn) }
func (e *Env) OnFileChanged(fn func(string)) host.Disposable   { return e.fileChanged.add(fn) }
func (e *Env) OnFileDeleted(fn func(string)) host.Disposable   { return e.fileDeleted.add(fn) }
func (e *Env) OnDocumentOpened(fn func(host.DocumentInfo)) host.Disposable {
	return e.docOpened.add(fn)
}
func (e *Env) OnDocumentClosed(fn func(host.DocumentInfo)) host.Disposable {
	return e.docClosed.add(fn)
}
func (e *Env) OnActiveDocumentChanged(fn func(string)) host.Disposable {
	return e.activeChanged.add(fn)
}
func (e *Env) OnVisibleEditorsChanged(fn func([]string)) host.Disposable {
	return e.visChanged.add(fn)
}
func (e *Env) OnSettingChanged(fn func(string, any)) host.Disposable {
	return e.settingChange.add(fn)
}

// Setting returns the current value for key.
func (e *Env) Setting(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.settings[key]
	return v, ok
}

// OpenDocuments lists the open documents sorted by URI.
func (e *Env) OpenDocuments() []host.DocumentInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]host.DocumentInfo, 0, len(e.docs))
	for _, d := range e.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// ActiveDocument returns the active document URI.
func (e *Env) ActiveDocument() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// VisibleEditors returns the visible editor URIs.
func (e *Env) VisibleEditors() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.visible...)
}

// ApplyDocumentText replaces a document's content, opening it if needed.
func (e *Env) ApplyDocumentText(uri, text string) error {
	e.mu.Lock()
	doc, ok := e.docs[uri]
	if ok {
		doc.Text = text
		doc.Dirty = true
		e.docs[uri] = doc
		e.mu.Unlock()
		return nil
	}
	doc = host.DocumentInfo{URI: uri, Text: text, Dirty: true}
	e.docs[uri] = doc
	e.mu.Unlock()
	e.docOpened.each(func(fn func(host.DocumentInfo)) { fn(doc) })
	return nil
}

// SetActiveDocument marks a document active and fires the change.
func (e *Env) SetActiveDocument(uri string) error {
	e.mu.Lock()
	if uri != "" {
		if _, ok := e.docs[uri]; !ok {
			e.mu.Unlock()
			return host.ErrDocumentNotFound
		}
	}
	changed := e.active != uri
	e.active = uri
	e.mu.Unlock()
	if changed {
		e.activeChanged.each(func(fn func(string)) { fn(uri) })
	}
	return nil
}

// Join builds a path under the first workspace root.
func (e *Env) Join(parts ...string) string {
	e.mu.Lock()
	root := e.roots[0]
	e.mu.Unlock()
	return path.Join(append([]string{root}, parts...)...)
}
