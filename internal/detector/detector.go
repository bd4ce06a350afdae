// Package detector owns workspace-state snapshotting, live change
// monitoring, and before/after diffing.
package detector

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/pandeptwidyaop/cmdprobe/internal/host"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

var (
	// ErrAlreadyMonitoring is returned when monitoring is started twice.
	ErrAlreadyMonitoring = errors.New("monitoring is already active")
	// ErrNotMonitoring is returned when monitoring is stopped while idle.
	ErrNotMonitoring = errors.New("monitoring is not active")
)

// dedupWindow is the timestamp tolerance when matching live effects against
// diff-derived effects.
const dedupWindow = time.Second

// Config bounds the detector's snapshot walks and effect buffer.
type Config struct {
	ExcludeGlobs    []string
	WatchedSettings []string
	MaxFileSize     int64
	MaxDepth        int
	MaxEffects      int
}

func (c *Config) setDefaults() {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 1 << 20
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = 10
	}
	if c.MaxEffects == 0 {
		c.MaxEffects = 1000
	}
}

// textExtensions lists file extensions treated as text and eligible for
// line counting and content hashing.
var textExtensions = map[string]bool{
	".c": true, ".cfg": true, ".conf": true, ".cpp": true, ".css": true,
	".go": true, ".h": true, ".html": true, ".ini": true, ".java": true,
	".js": true, ".json": true, ".jsx": true, ".md": true, ".py": true,
	".rb": true, ".rs": true, ".sh": true, ".sql": true, ".toml": true,
	".ts": true, ".tsx": true, ".txt": true, ".xml": true, ".yaml": true,
	".yml": true,
}

// Detector captures workspace snapshots and observes live changes between
// StartMonitoring and StopMonitoring. All buffers are instance scoped; no
// process-wide listener registry is involved.
type Detector struct {
	env host.Environment
	cfg Config

	mu           sync.Mutex
	active       bool
	monitorStart time.Time
	effects      []models.SideEffect
	overflow     bool
	baseline     *models.WorkspaceSnapshot
	handles      []host.Disposable
	subscribers  map[chan models.SideEffect]struct{}
}

// New builds a Detector over the given host environment.
func New(env host.Environment, cfg Config) *Detector {
	cfg.setDefaults()
	return &Detector{
		env:         env,
		cfg:         cfg,
		subscribers: make(map[chan models.SideEffect]struct{}),
	}
}

// CreateSnapshot walks the workspace roots and captures file metadata,
// watched settings, open documents, the active document, and visible
// editors. Unreadable files are recorded rather than failing the snapshot.
func (d *Detector) CreateSnapshot() (*models.WorkspaceSnapshot, error) {
	snap := &models.WorkspaceSnapshot{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Files:     make(map[string]models.FileState),
		Settings:  make(map[string]any),
	}

	for _, root := range d.env.WorkspaceRoots() {
		if err := d.walk(root, 0, snap.Files); err != nil {
			return nil, fmt.Errorf("walking workspace root %s: %w", root, err)
		}
	}

	for _, key := range d.cfg.WatchedSettings {
		if v, ok := d.env.Setting(key); ok {
			snap.Settings[key] = v
		}
	}

	for _, doc := range d.env.OpenDocuments() {
		snap.OpenDocuments = append(snap.OpenDocuments, models.DocumentState{
			URI:         doc.URI,
			LanguageID:  doc.LanguageID,
			Dirty:       doc.Dirty,
			LineCount:   countLines(doc.Text),
			ContentHash: hashContent(doc.Text),
			Text:        doc.Text,
		})
	}
	snap.ActiveDocument = d.env.ActiveDocument()
	snap.VisibleEditors = d.env.VisibleEditors()

	return snap, nil
}

func (d *Detector) walk(dir string, depth int, files map[string]models.FileState) error {
	if depth > d.cfg.MaxDepth {
		return nil
	}
	entries, err := d.env.ListDirectory(dir)
	if err != nil {
		if depth == 0 {
			return err
		}
		log.Printf("[Detector] Skipping unreadable directory %s: %v", dir, err)
		return nil
	}
	for _, ent := range entries {
		if d.excluded(ent.Name) {
			continue
		}
		full := joinPath(dir, ent.Name)
		if ent.IsDir {
			if err := d.walk(full, depth+1, files); err != nil {
				return err
			}
			continue
		}
		files[full] = d.fileState(full)
	}
	return nil
}

func (d *Detector) fileState(path string) models.FileState {
	info, err := d.env.Stat(path)
	if err != nil {
		return models.FileState{Type: "binary", Readable: false}
	}
	state := models.FileState{
		Size:     info.Size,
		ModTime:  info.ModTime,
		Type:     "binary",
		Readable: true,
	}
	if !textExtensions[strings.ToLower(filepath.Ext(path))] {
		return state
	}
	state.Type = "text"
	if info.Size > d.cfg.MaxFileSize {
		return state
	}
	text, err := d.env.ReadFileText(path)
	if err != nil {
		state.Readable = false
		return state
	}
	state.LineCount = countLines(text)
	state.ContentHash = hashContent(text)
	return state
}

func (d *Detector) excluded(name string) bool {
	for _, glob := range d.cfg.ExcludeGlobs {
		if ok, _ := filepath.Match(glob, name); ok {
			return true
		}
		if !strings.ContainsAny(glob, "*?[") && glob == name {
			return true
		}
	}
	return false
}

// StartMonitoring clears the effect buffer, captures a baseline snapshot,
// and attaches live-change listeners. Effects observed before this call are
// never recorded.
func (d *Detector) StartMonitoring() error {
	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		return ErrAlreadyMonitoring
	}
	d.effects = nil
	d.overflow = false
	d.mu.Unlock()

	baseline, err := d.CreateSnapshot()
	if err != nil {
		return fmt.Errorf("capturing monitoring baseline: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return ErrAlreadyMonitoring
	}
	d.baseline = baseline
	d.monitorStart = time.Now()
	d.active = true
	d.handles = []host.Disposable{
		d.env.OnFileCreated(func(path string) {
			d.record(models.EffectFileCreated, path, fmt.Sprintf("file created: %s", path), nil)
		}),
		d.env.OnFileChanged(func(path string) {
			d.record(models.EffectFileModified, path, fmt.Sprintf("file modified: %s", path), nil)
		}),
		d.env.OnFileDeleted(func(path string) {
			d.record(models.EffectFileDeleted, path, fmt.Sprintf("file deleted: %s", path), nil)
		}),
		d.env.OnDocumentOpened(func(doc host.DocumentInfo) {
			d.record(models.EffectViewOpened, doc.URI, fmt.Sprintf("document opened: %s", doc.URI), nil)
		}),
		d.env.OnDocumentClosed(func(doc host.DocumentInfo) {
			d.record(models.EffectViewClosed, doc.URI, fmt.Sprintf("document closed: %s", doc.URI), nil)
		}),
		d.env.OnActiveDocumentChanged(func(uri string) {
			if uri != "" {
				d.record(models.EffectViewOpened, uri, fmt.Sprintf("active document changed: %s", uri), nil)
			}
		}),
		d.env.OnVisibleEditorsChanged(func(uris []string) {
			d.record(models.EffectViewOpened, strings.Join(uris, ","), "visible editor set changed", nil)
		}),
		d.env.OnSettingChanged(func(key string, value any) {
			if !d.watched(key) {
				return
			}
			d.record(models.EffectSettingChanged, key, fmt.Sprintf("setting changed: %s", key),
				&models.EffectDetails{NewValue: value})
		}),
	}
	log.Printf("[Detector] Monitoring started")
	return nil
}

func (d *Detector) watched(key string) bool {
	if len(d.cfg.WatchedSettings) == 0 {
		return true
	}
	for _, k := range d.cfg.WatchedSettings {
		if k == key {
			return true
		}
	}
	return false
}

// record appends one live-observed effect. Effects past the configured
// ceiling are dropped with a single logged warning.
func (d *Detector) record(t models.EffectType, resource, description string, details *models.EffectDetails) {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	if len(d.effects) >= d.cfg.MaxEffects {
		if !d.overflow {
			d.overflow = true
			log.Printf("[Detector] Side-effect buffer full (%d); further live events dropped", d.cfg.MaxEffects)
		}
		d.mu.Unlock()
		return
	}
	effect := models.SideEffect{
		Type:        t,
		Resource:    resource,
		Timestamp:   time.Now(),
		Description: description,
		Severity:    models.DefaultSeverity(t),
		Category:    models.CategoryFor(t),
		Details:     details,
	}
	d.effects = append(d.effects, effect)
	subs := make([]chan models.SideEffect, 0, len(d.subscribers))
	for ch := range d.subscribers {
		subs = append(subs, ch)
	}
	d.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- effect:
		default:
		}
	}
}

// StopMonitoring detaches all listeners, diffs the baseline against a fresh
// snapshot, and returns the merged, deduplicated effect list sorted by
// timestamp.
func (d *Detector) StopMonitoring() ([]models.SideEffect, error) {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return nil, ErrNotMonitoring
	}
	handles := d.handles
	d.handles = nil
	d.active = false
	baseline := d.baseline
	d.baseline = nil
	live := d.effects
	d.effects = nil
	d.mu.Unlock()

	for _, h := range handles {
		h.Dispose()
	}

	final, err := d.CreateSnapshot()
	if err != nil {
		log.Printf("[Detector] Final snapshot failed, returning live effects only: %v", err)
		sortEffects(live)
		return live, nil
	}

	merged := d.Diff(baseline, final)
	for _, effect := range live {
		if !supersededBy(effect, merged) {
			merged = append(merged, effect)
		}
	}
	sortEffects(merged)
	log.Printf("[Detector] Monitoring stopped; %d effects (%d live)", len(merged), len(live))
	return merged, nil
}

// supersededBy reports whether a live effect duplicates a diff-derived one:
// same type and resource with timestamps within the dedup window.
func supersededBy(live models.SideEffect, diffed []models.SideEffect) bool {
	for _, e := range diffed {
		if e.Type == live.Type && e.Resource == live.Resource {
			delta := e.Timestamp.Sub(live.Timestamp)
			if delta < 0 {
				delta = -delta
			}
			if delta < dedupWindow {
				return true
			}
		}
	}
	return false
}

// Effects returns a copy of the live effect buffer without blocking
// monitoring.
func (d *Detector) Effects() []models.SideEffect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.SideEffect(nil), d.effects...)
}

// IsActive reports whether monitoring is currently running.
func (d *Detector) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Subscribe returns a channel receiving live effects as they are recorded.
// Slow subscribers miss events rather than blocking the detector.
func (d *Detector) Subscribe() chan models.SideEffect {
	ch := make(chan models.SideEffect, 100)
	d.mu.Lock()
	d.subscribers[ch] = struct{}{}
	d.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (d *Detector) Unsubscribe(ch chan models.SideEffect) {
	d.mu.Lock()
	_, ok := d.subscribers[ch]
	delete(d.subscribers, ch)
	d.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Dispose unconditionally detaches all listeners and closes subscriptions.
func (d *Detector) Dispose() {
	d.mu.Lock()
	handles := d.handles
	d.handles = nil
	d.active = false
	d.baseline = nil
	d.effects = nil
	subs := d.subscribers
	d.subscribers = make(map[chan models.SideEffect]struct{})
	d.mu.Unlock()

	for _, h := range handles {
		h.Dispose()
	}
	for ch := range subs {
		close(ch)
	}
}

func sortEffects(effects []models.SideEffect) {
	sort.SliceStable(effects, func(i, j int) bool {
		return effects[i].Timestamp.Before(effects[j].Timestamp)
	})
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}

func hashContent(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}

func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
