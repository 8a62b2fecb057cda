package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// settleInterval is how often growing recordings are re-checked. A file
// is enqueued once its size has held still for one full interval, so a
// recorder still appending to it is never converted mid-write.
// Variable so tests can shorten it.
var settleInterval = 5 * time.Second

// emptyGraceTicks bounds how long a zero-byte file stays pending. A
// recorder that has opened its output but written nothing yet gets a
// minute at the default interval; after that the entry is dropped. A
// later write event re-arms it.
const emptyGraceTicks = 12

// pendingFile tracks one recording waiting to settle.
type pendingFile struct {
	size      int64 // last observed size, -1 before the first stat
	zeroTicks int   // consecutive ticks observed at size zero
}

// watch feeds newly settled recordings under root into jobs until ctx
// is cancelled. Subdirectories created while watching are picked up.
func watch(ctx context.Context, root string, log zerolog.Logger, jobs chan<- string, stats *RunStats) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := watchTree(w, root); err != nil {
		return err
	}
	log.Info().Str("dir", root).Msg("watching for new recordings")

	pending := make(map[string]*pendingFile)
	ticker := time.NewTicker(settleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := watchTree(w, ev.Name); err != nil {
						log.Warn().Err(err).Str("dir", ev.Name).Msg("cannot watch new directory")
					}
					continue
				}
			}
			if (ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write)) && IsSource(ev.Name) {
				if _, known := pending[ev.Name]; !known {
					log.Debug().Str("file", filepath.Base(ev.Name)).Msg("new recording, waiting for it to settle")
				}
				pending[ev.Name] = &pendingFile{size: -1}
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")

		case <-ticker.C:
			for path, pf := range pending {
				fi, err := os.Stat(path)
				if err != nil {
					delete(pending, path)
					continue
				}
				if fi.Size() == 0 {
					pf.size = 0
					pf.zeroTicks++
					if pf.zeroTicks >= emptyGraceTicks {
						log.Debug().Str("file", filepath.Base(path)).Msg("recording stayed empty, no longer waiting")
						delete(pending, path)
					}
					continue
				}
				if fi.Size() != pf.size {
					pf.size = fi.Size()
					pf.zeroTicks = 0
					continue
				}
				delete(pending, path)
				stats.update(func(s *RunStats) { s.Total++ })
				select {
				case jobs <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// watchTree registers dir and every subdirectory under it.
func watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
