package registry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// Watch emits a tick whenever the registry file changes, letting the
// watchdog poll ahead of its next scheduled tick. The returned cleanup
// stops the watcher; the channel is closed afterwards.
//
// The watch is on the parent directory because atomic writes replace the
// file via rename, which would silently detach a watch on the file itself.
func (s *FileStore) Watch(ctx context.Context) (<-chan struct{}, func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	ticks := make(chan struct{}, 1)

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
		close(ticks)
	})

	name := filepath.Base(s.path)

	sctx.Go(func(sctx *stopper.Context) error {
		for {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}

				if filepath.Base(event.Name) != name {
					continue
				}

				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
					continue
				}

				// Coalesce: a tick already pending covers this change.
				select {
				case ticks <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}

				s.log.Warn("registry watch error", "error", err)
			}
		}
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	return ticks, cleanup, nil
}
