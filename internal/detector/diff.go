package detector

import (
	"fmt"
	"reflect"
	"time"

	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

// Diff compares two snapshots taken by this detector and returns the
// inferred side effects: file creations, deletions, and modifications,
// open-document membership changes, and watched-setting changes.
func (d *Detector) Diff(before, after *models.WorkspaceSnapshot) []models.SideEffect {
	now := time.Now()
	var effects []models.SideEffect

	for path, cur := range after.Files {
		prev, existed := before.Files[path]
		if !existed {
			size := cur.Size
			effects = append(effects, models.SideEffect{
				Type:        models.EffectFileCreated,
				Resource:    path,
				Timestamp:   now,
				Description: fmt.Sprintf("file created: %s", path),
				Severity:    models.DefaultSeverity(models.EffectFileCreated),
				Category:    models.CategoryFileSystem,
				Details:     &models.EffectDetails{NewSize: &size},
			})
			continue
		}
		if fileChanged(prev, cur) {
			effects = append(effects, fileModifiedEffect(path, prev, cur, now))
		}
	}
	for path, prev := range before.Files {
		if _, ok := after.Files[path]; !ok {
			size := prev.Size
			effects = append(effects, models.SideEffect{
				Type:        models.EffectFileDeleted,
				Resource:    path,
				Timestamp:   now,
				Description: fmt.Sprintf("file deleted: %s", path),
				Severity:    models.DefaultSeverity(models.EffectFileDeleted),
				Category:    models.CategoryFileSystem,
				Details:     &models.EffectDetails{OldSize: &size},
			})
		}
	}

	beforeDocs := docSet(before)
	afterDocs := docSet(after)
	for uri := range afterDocs {
		if !beforeDocs[uri] {
			effects = append(effects, models.SideEffect{
				Type:        models.EffectViewOpened,
				Resource:    uri,
				Timestamp:   now,
				Description: fmt.Sprintf("document opened: %s", uri),
				Severity:    models.DefaultSeverity(models.EffectViewOpened),
				Category:    models.CategoryViews,
			})
		}
	}
	for uri := range beforeDocs {
		if !afterDocs[uri] {
			effects = append(effects, models.SideEffect{
				Type:        models.EffectViewClosed,
				Resource:    uri,
				Timestamp:   now,
				Description: fmt.Sprintf("document closed: %s", uri),
				Severity:    models.DefaultSeverity(models.EffectViewClosed),
				Category:    models.CategoryViews,
			})
		}
	}

	for key, cur := range after.Settings {
		prev, existed := before.Settings[key]
		if existed && reflect.DeepEqual(prev, cur) {
			continue
		}
		effects = append(effects, models.SideEffect{
			Type:        models.EffectSettingChanged,
			Resource:    key,
			Timestamp:   now,
			Description: fmt.Sprintf("setting changed: %s", key),
			Severity:    models.DefaultSeverity(models.EffectSettingChanged),
			Category:    models.CategorySettings,
			Details:     &models.EffectDetails{OldValue: prev, NewValue: cur},
		})
	}
	for key, prev := range before.Settings {
		if _, ok := after.Settings[key]; !ok {
			effects = append(effects, models.SideEffect{
				Type:        models.EffectSettingChanged,
				Resource:    key,
				Timestamp:   now,
				Description: fmt.Sprintf("setting changed: %s", key),
				Severity:    models.DefaultSeverity(models.EffectSettingChanged),
				Category:    models.CategorySettings,
				Details:     &models.EffectDetails{OldValue: prev},
			})
		}
	}

	return effects
}

func fileChanged(prev, cur models.FileState) bool {
	if prev.Size != cur.Size {
		return true
	}
	if prev.ContentHash != cur.ContentHash {
		return true
	}
	return !prev.ModTime.Equal(cur.ModTime)
}

func fileModifiedEffect(path string, prev, cur models.FileState, now time.Time) models.SideEffect {
	details := &models.EffectDetails{}
	if prev.Size != cur.Size {
		oldSize, newSize := prev.Size, cur.Size
		details.OldSize = &oldSize
		details.NewSize = &newSize
	}
	if prev.ContentHash != cur.ContentHash {
		details.OldHash = prev.ContentHash
		details.NewHash = cur.ContentHash
	}
	if prev.LineCount != cur.LineCount {
		oldLines, newLines := prev.LineCount, cur.LineCount
		details.OldLineCount = &oldLines
		details.NewLineCount = &newLines
	}
	return models.SideEffect{
		Type:        models.EffectFileModified,
		Resource:    path,
		Timestamp:   now,
		Description: fmt.Sprintf("file modified: %s", path),
		Severity:    models.DefaultSeverity(models.EffectFileModified),
		Category:    models.CategoryFileSystem,
		Details:     details,
	}
}

func docSet(snap *models.WorkspaceSnapshot) map[string]bool {
	out := make(map[string]bool, len(snap.OpenDocuments))
	for _, doc := range snap.OpenDocuments {
		out[doc.URI] = true
	}
	return out
}
