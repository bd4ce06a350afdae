// Package host abstracts the environment the engine runs against: the
// command registry, filesystem primitives, editor documents, settings, and
// change notifications.
package host

import (
	"context"
	"time"
)

// Disposable detaches a previously registered listener.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a func to the Disposable interface.
type DisposeFunc func()

// Dispose calls the underlying func.
func (f DisposeFunc) Dispose() { f() }

// FileInfo is the subset of file metadata the engine records.
type FileInfo struct {
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// DirEntry is one entry from a directory listing.
type DirEntry struct {
	Name  string
	IsDir bool
}

// DocumentInfo describes one open document.
type DocumentInfo struct {
	URI        string
	LanguageID string
	Dirty      bool
	Text       string
}

// Invoker dispatches a command to the external registry. The call may block
// for an arbitrary time and offers no cancellation guarantee.
type Invoker interface {
	InvokeCommand(ctx context.Context, id string, args []any) (any, error)
}

// Environment is the full host surface consumed by the engine. All listener
// registrations return a Disposable that detaches the callback.
type Environment interface {
	Invoker

	WorkspaceRoots() []string
	Stat(path string) (FileInfo, error)
	ReadFileText(path string) (string, error)
	ListDirectory(path string) ([]DirEntry, error)

	OnFileCreated(fn func(path string)) Disposable
	OnFileChanged(fn func(path string)) Disposable
	OnFileDeleted(fn func(path string)) Disposable
	OnDocumentOpened(fn func(doc DocumentInfo)) Disposable
	OnDocumentClosed(fn func(doc DocumentInfo)) Disposable
	OnActiveDocumentChanged(fn func(uri string)) Disposable
	OnVisibleEditorsChanged(fn func(uris []string)) Disposable
	OnSettingChanged(fn func(key string, value any)) Disposable

	Setting(key string) (any, bool)
	OpenDocuments() []DocumentInfo
	ActiveDocument() string
	VisibleEditors() []string

	ApplyDocumentText(uri, text string) error
	SetActiveDocument(uri string) error
}
