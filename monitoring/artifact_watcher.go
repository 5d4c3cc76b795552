package monitoring

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactWatcher reports changes to the model artifact on disk. The running
// pipeline is never reloaded; a change only raises a restart-required flag.
type ArtifactWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	changed   atomic.Bool
	changedAt atomic.Int64

	stopOnce sync.Once
	done     chan struct{}
}

// NewArtifactWatcher watches the directory holding path, since Save replaces
// the file by rename and a watch on the file itself would be lost.
func NewArtifactWatcher(path string, logger *zap.Logger) (*ArtifactWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	aw := &ArtifactWatcher{
		path:    abs,
		watcher: w,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go aw.run()
	return aw, nil
}

func (aw *ArtifactWatcher) run() {
	defer close(aw.done)
	for {
		select {
		case event, ok := <-aw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != aw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			aw.changedAt.Store(time.Now().UnixNano())
			if !aw.changed.Swap(true) {
				aw.logger.Warn("model artifact changed on disk, restart required to serve it",
					zap.String("path", aw.path),
					zap.String("op", event.Op.String()),
				)
			}
		case err, ok := <-aw.watcher.Errors:
			if !ok {
				return
			}
			aw.logger.Error("artifact watcher error", zap.Error(err))
		}
	}
}

// Changed reports whether the artifact was modified since startup and when.
func (aw *ArtifactWatcher) Changed() (bool, time.Time) {
	if !aw.changed.Load() {
		return false, time.Time{}
	}
	return true, time.Unix(0, aw.changedAt.Load())
}

// Close stops watching. It is safe to call more than once.
func (aw *ArtifactWatcher) Close() error {
	var err error
	aw.stopOnce.Do(func() {
		err = aw.watcher.Close()
		<-aw.done
	})
	return err
}
