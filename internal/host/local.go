package host

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNoInvoker is returned when no command registry is attached.
var ErrNoInvoker = errors.New("no command invoker attached")

// ErrDocumentNotFound is returned for operations on unknown documents.
var ErrDocumentNotFound = errors.New("document not found")

// Options configures a LocalEnvironment.
type Options struct {
	Roots        []string
	Settings     map[string]any
	ExcludeGlobs []string
	PollInterval time.Duration
	MaxDepth     int
}

type listenerSet[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]T
}

func (l *listenerSet[T]) add(fn T) Disposable {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]T)
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return DisposeFunc(func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	})
}

func (l *listenerSet[T]) each(fn func(T)) {
	l.mu.Lock()
	snapshot := make([]T, 0, len(l.fns))
	for _, f := range l.fns {
		snapshot = append(snapshot, f)
	}
	l.mu.Unlock()
	for _, f := range snapshot {
		fn(f)
	}
}

type localDocument struct {
	uri        string
	languageID string
	text       string
	dirty      bool
}

// LocalEnvironment is an Environment backed by the real filesystem, an
// in-memory settings map, and an in-memory document registry. File change
// notifications come from a polling watcher over the workspace roots.
type LocalEnvironment struct {
	opts    Options
	invoker Invoker

	mu       sync.Mutex
	settings map[string]any
	docs     map[string]*localDocument
	active   string
	visible  []string

	fileCreated   listenerSet[func(string)]
	fileChanged   listenerSet[func(string)]
	fileDeleted   listenerSet[func(string)]
	docOpened     listenerSet[func(DocumentInfo)]
	docClosed     listenerSet[func(DocumentInfo)]
	activeChanged listenerSet[func(string)]
	visChanged    listenerSet[func([]string)]
	settingChange listenerSet[func(string, any)]

	watchStop chan struct{}
	watchDone chan struct{}
}

// NewLocalEnvironment builds a LocalEnvironment. The watcher is not started
// until StartWatcher is called.
func NewLocalEnvironment(opts Options) *LocalEnvironment {
	settings := make(map[string]any, len(opts.Settings))
	for k, v := range opts.Settings {
		settings[k] = v
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 10
	}
	return &LocalEnvironment{
		opts:     opts,
		settings: settings,
		docs:     make(map[string]*localDocument),
	}
}

// SetInvoker attaches the command registry used by InvokeCommand.
func (e *LocalEnvironment) SetInvoker(inv Invoker) {
	e.mu.Lock()
	e.invoker = inv
	e.mu.Unlock()
}

// InvokeCommand dispatches to the attached registry.
func (e *LocalEnvironment) InvokeCommand(ctx context.Context, id string, args []any) (any, error) {
	e.mu.Lock()
	inv := e.invoker
	e.mu.Unlock()
	if inv == nil {
		return nil, ErrNoInvoker
	}
	return inv.InvokeCommand(ctx, id, args)
}

// WorkspaceRoots returns the configured workspace roots.
func (e *LocalEnvironment) WorkspaceRoots() []string {
	return append([]string(nil), e.opts.Roots...)
}

// Stat returns file metadata for path.
func (e *LocalEnvironment) Stat(path string) (FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Size: fi.Size(), ModTime: fi.ModTime(), IsDir: fi.IsDir()}, nil
}

// ReadFileText reads path as UTF-8 text.
func (e *LocalEnvironment) ReadFileText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ListDirectory lists the entries of a directory.
func (e *LocalEnvironment) ListDirectory(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(entries))
	for _, ent := range entries {
		out = append(out, DirEntry{Name: ent.Name(), IsDir: ent.IsDir()})
	}
	return out, nil
}

func (e *LocalEnvironment) OnFileCreated(fn func(string)) Disposable {
	return e.fileCreated.add(fn)
}

func (e *LocalEnvironment) OnFileChanged(fn func(string)) Disposable {
	return e.fileChanged.add(fn)
}

func (e *LocalEnvironment) OnFileDeleted(fn func(string)) Disposable {
	return e.fileDeleted.add(fn)
}

func (e *LocalEnvironment) OnDocumentOpened(fn func(DocumentInfo)) Disposable {
	return e.docOpened.add(fn)
}

func (e *LocalEnvironment) OnDocumentClosed(fn func(DocumentInfo)) Disposable {
	return e.docClosed.add(fn)
}

func (e *LocalEnvironment) OnActiveDocumentChanged(fn func(string)) Disposable {
	return e.activeChanged.add(fn)
}

func (e *LocalEnvironment) OnVisibleEditorsChanged(fn func([]string)) Disposable {
	return e.visChanged.add(fn)
}

func (e *LocalEnvironment) OnSettingChanged(fn func(string, any)) Disposable {
	return e.settingChange.add(fn)
}

// Setting returns the current value for key.
func (e *LocalEnvironment) Setting(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.settings[key]
	return v, ok
}

// SetSetting updates a setting and notifies listeners.
func (e *LocalEnvironment) SetSetting(key string, value any) {
	e.mu.Lock()
	e.settings[key] = value
	e.mu.Unlock()
	e.settingChange.each(func(fn func(string, any)) { fn(key, value) })
}

// OpenDocuments lists the currently open documents.
func (e *LocalEnvironment) OpenDocuments() []DocumentInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]DocumentInfo, 0, len(e.docs))
	for _, d := range e.docs {
		out = append(out, DocumentInfo{URI: d.uri, LanguageID: d.languageID, Dirty: d.dirty, Text: d.text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// ActiveDocument returns the URI of the active document, if any.
func (e *LocalEnvironment) ActiveDocument() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// VisibleEditors returns the URIs of the visible editors.
func (e *LocalEnvironment) VisibleEditors() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.visible...)
}

// OpenDocument registers a document as open and notifies listeners.
func (e *LocalEnvironment) OpenDocument(doc DocumentInfo) {
	e.mu.Lock()
	e.docs[doc.URI] = &localDocument{uri: doc.URI, languageID: doc.LanguageID, text: doc.Text, dirty: doc.Dirty}
	e.mu.Unlock()
	e.docOpened.each(func(fn func(DocumentInfo)) { fn(doc) })
}

// CloseDocument removes an open document and notifies listeners.
func (e *LocalEnvironment) CloseDocument(uri string) {
	e.mu.Lock()
	d, ok := e.docs[uri]
	if ok {
		delete(e.docs, uri)
		if e.active == uri {
			e.active = ""
		}
	}
	e.mu.Unlock()
	if ok {
		info := DocumentInfo{URI: d.uri, LanguageID: d.languageID, Dirty: d.dirty, Text: d.text}
		e.docClosed.each(func(fn func(DocumentInfo)) { fn(info) })
	}
}

// ApplyDocumentText replaces the content of a document, opening it if it is
// not currently open. Used by snapshot restore.
func (e *LocalEnvironment) ApplyDocumentText(uri, text string) error {
	e.mu.Lock()
	d, ok := e.docs[uri]
	if ok {
		d.text = text
		d.dirty = true
		e.mu.Unlock()
		return nil
	}
	e.docs[uri] = &localDocument{uri: uri, text: text, dirty: true}
	e.mu.Unlock()
	e.docOpened.each(func(fn func(DocumentInfo)) {
		fn(DocumentInfo{URI: uri, Text: text, Dirty: true})
	})
	return nil
}

// SetActiveDocument marks a document as active and notifies listeners.
func (e *LocalEnvironment) SetActiveDocument(uri string) error {
	e.mu.Lock()
	if uri != "" {
		if _, ok := e.docs[uri]; !ok {
			e.mu.Unlock()
			return ErrDocumentNotFound
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

// SetVisibleEditors replaces the visible editor set and notifies listeners.
func (e *LocalEnvironment) SetVisibleEditors(uris []string) {
	e.mu.Lock()
	e.visible = append([]string(nil), uris...)
	e.mu.Unlock()
	e.visChanged.each(func(fn func([]string)) { fn(uris) })
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// StartWatcher begins polling the workspace roots for file changes. It is a
// no-op if the watcher is already running.
func (e *LocalEnvironment) StartWatcher() {
	e.mu.Lock()
	if e.watchStop != nil {
		e.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	e.watchStop = stop
	e.watchDone = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		prev := e.scan()
		ticker := time.NewTicker(e.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				cur := e.scan()
				e.emitChanges(prev, cur)
				prev = cur
			}
		}
	}()
	log.Printf("[Host] File watcher started (interval %v)", e.opts.PollInterval)
}

// StopWatcher stops the polling watcher and waits for it to exit.
func (e *LocalEnvironment) StopWatcher() {
	e.mu.Lock()
	stop, done := e.watchStop, e.watchDone
	e.watchStop, e.watchDone = nil, nil
	e.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

func (e *LocalEnvironment) scan() map[string]fileStamp {
	out := make(map[string]fileStamp)
	for _, root := range e.opts.Roots {
		e.scanDir(root, 0, out)
	}
	return out
}

func (e *LocalEnvironment) scanDir(dir string, depth int, out map[string]fileStamp) {
	if depth > e.opts.MaxDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, ent := range entries {
		name := ent.Name()
		if e.excluded(name) {
			continue
		}
		full := filepath.Join(dir, name)
		if ent.IsDir() {
			e.scanDir(full, depth+1, out)
			continue
		}
		fi, err := ent.Info()
		if err != nil {
			continue
		}
		out[full] = fileStamp{size: fi.Size(), modTime: fi.ModTime()}
	}
}

func (e *LocalEnvironment) excluded(name string) bool {
	for _, glob := range e.opts.ExcludeGlobs {
		if ok, _ := filepath.Match(glob, name); ok {
			return true
		}
		if !strings.ContainsAny(glob, "*?[") && glob == name {
			return true
		}
	}
	return false
}

func (e *LocalEnvironment) emitChanges(prev, cur map[string]fileStamp) {
	for path, stamp := range cur {
		old, ok := prev[path]
		if !ok {
			p := path
			e.fileCreated.each(func(fn func(string)) { fn(p) })
			continue
		}
		if old.size != stamp.size || !old.modTime.Equal(stamp.modTime) {
			p := path
			e.fileChanged.each(func(fn func(string)) { fn(p) })
		}
	}
	for path := range prev {
		if _, ok := cur[path]; !ok {
			p := path
			e.fileDeleted.each(func(fn func(string)) { fn(p) })
		}
	}
}
