package ingest

import (
	"context"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/logger"
	"go.uber.org/zap"
)

// ReloadCallback receives the result of each re-ingestion
type ReloadCallback func(*Result) error

// Watcher re-ingests a data directory when one of the ingestion files changes.
// Reloads run on the goroutine that called Run, never concurrently with each other.
type Watcher struct {
	loader         *Loader
	dir            string
	watcher        *fsnotify.Watcher
	debouncePeriod time.Duration
	callbacks      []ReloadCallback
	logger         *zap.SugaredLogger
}

// NewWatcher starts watching dir. Events are only consumed once Run is called.
func NewWatcher(loader *Loader, dir string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch data directory %s", dir)
	}

	return &Watcher{
		loader:         loader,
		dir:            dir,
		watcher:        fw,
		debouncePeriod: debounce,
		logger:         loader.logger.Named("watch"),
	}, nil
}

// OnReload registers a callback invoked after every re-ingestion
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.callbacks = append(w.callbacks, cb)
}

// Run processes file events until ctx is done or the watcher is closed.
// Bursts of writes within the debounce period collapse into one reload.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isIngestionEvent(event) {
				continue
			}
			w.logger.Debugw("Data file changed", logger.FieldFile, filepath.Base(event.Name), "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debouncePeriod)
			} else {
				timer.Reset(w.debouncePeriod)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("Data watcher error", logger.FieldError, err)

		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	res, err := w.loader.LoadDir(ctx, w.dir)
	if err != nil {
		w.logger.Errorw("Re-ingestion failed", logger.FieldError, err)
		return
	}
	w.logger.Infow("Re-ingested data directory", "dir", w.dir, logger.FieldRows, res.Applied())

	for _, cb := range w.callbacks {
		if err := cb(res); err != nil {
			// remaining callbacks still run
			w.logger.Warnw("Reload callback error", logger.FieldError, err)
		}
	}
}

// Close stops watching without waiting for Run to return
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func isIngestionEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	return slices.Contains(Files, filepath.Base(event.Name))
}
