package models

import "time"

// FileState is the recorded metadata for one file in a snapshot. Text files
// under the size ceiling additionally carry a line count and content hash.
type FileState struct {
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	ContentHash string    `json:"content_hash,omitempty"`
	LineCount   int       `json:"line_count,omitempty"`
	Type        string    `json:"type"`
	Readable    bool      `json:"readable"`
}

// DocumentState is the recorded state of one open document. Text is kept so
// that a snapshot restore can replay document contents.
type DocumentState struct {
	URI         string `json:"uri"`
	LanguageID  string `json:"language_id"`
	Dirty       bool   `json:"dirty"`
	LineCount   int    `json:"line_count"`
	ContentHash string `json:"content_hash,omitempty"`
	Text        string `json:"text,omitempty"`
}

// WorkspaceSnapshot is a point-in-time capture of workspace state. Two
// snapshots are comparable only if captured by the same detector instance.
type WorkspaceSnapshot struct {
	ID             string               `json:"id"`
	CreatedAt      time.Time            `json:"created_at"`
	Files          map[string]FileState `json:"files"`
	Settings       map[string]any       `json:"settings"`
	OpenDocuments  []DocumentState      `json:"open_documents"`
	ActiveDocument string               `json:"active_document,omitempty"`
	VisibleEditors []string             `json:"visible_editors,omitempty"`
}
