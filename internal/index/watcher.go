package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/othala/internal/archive"
	"github.com/starford/othala/internal/docnum"
)

// EventCallback is called after a watcher-driven catalog change.
// kind is one of "archived", "updated", "deleted"; number is the versioned
// document number.
type EventCallback func(kind string, number string)

// Watch starts an fsnotify watcher on the archive root and processes change
// events until ctx is cancelled. It calls cb (if non-nil) after each
// successful catalog mutation.
//
// New revision directories created at runtime are automatically added to the
// watch list. Rename events trigger a reconciliation pass that removes stale
// catalog entries whose revisions no longer exist on disk.
func Watch(ctx context.Context, db *DB, store *archive.Store, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories are added to the watcher; a directory
			// appearing with a meta file already inside (atomic rename
			// from a temp dir) is indexed immediately.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(db, store, absPath, logger, cb)
					continue
				}
			}

			// Only meta files mark catalog-relevant changes; attachment
			// writes do not alter the catalog.
			if filepath.Base(absPath) != archive.MetaFilename {
				continue
			}
			number, numErr := revisionOf(absPath)
			if numErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if idxErr := IndexRevision(db, store, number); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("number", number.String()), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "archived"
				}
				logger.Debug("watcher: indexed", slog.String("number", number.String()), slog.String("op", kind))
				if cb != nil {
					cb(kind, number.String())
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteRecord(number.String()); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("number", number.String()), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("number", number.String()))
				if cb != nil {
					cb("deleted", number.String())
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). We delete the old entry
				// immediately and schedule a short reconciliation pass
				// to catch any stragglers.
				if delErr := db.DeleteRecord(number.String()); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("number", number.String()), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("number", number.String()))
					if cb != nil {
						cb("deleted", number.String())
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// revisionOf maps a meta file path to its revision number via the parent
// directory name.
func revisionOf(metaPath string) (docnum.Number, error) {
	return docnum.Parse(filepath.Base(filepath.Dir(metaPath)))
}

// reconcileAfterRename does a lightweight sync using batch lookups: finds
// catalog entries without a corresponding revision on disk and removes them,
// and finds on-disk revisions that are not catalogued and indexes them.
func reconcileAfterRename(db *DB, store *archive.Store, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	docs, err := store.Documents()
	if err != nil {
		logger.Warn("reconcile: scan failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]docnum.Number)
	for _, doc := range docs {
		revs, err := store.RevisionNumbers(doc)
		if err != nil {
			continue
		}
		for _, rev := range revs {
			disk[rev.String()] = rev
		}
	}

	for number := range checksums {
		if _, ok := disk[number]; !ok {
			if delErr := db.DeleteRecord(number); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("number", number))
				if cb != nil {
					cb("deleted", number)
				}
			}
		}
	}

	for key, rev := range disk {
		cs, csErr := metaChecksum(store, rev)
		if csErr != nil || checksums[key] == cs {
			continue
		}
		if idxErr := IndexRevision(db, store, rev); idxErr == nil {
			logger.Debug("reconcile: indexed new", slog.String("number", key))
			if cb != nil {
				cb("archived", key)
			}
		}
	}
}

// indexNewDir indexes any revisions already present under a newly created
// directory.
func indexNewDir(db *DB, store *archive.Store, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Base(path) != archive.MetaFilename {
			return nil
		}
		number, numErr := revisionOf(path)
		if numErr != nil {
			return nil
		}
		if idxErr := IndexRevision(db, store, number); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("number", number.String()))
			if cb != nil {
				cb("archived", number.String())
			}
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
