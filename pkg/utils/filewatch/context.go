package filewatch

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// UntilModifyContext derives a context which is canceled as soon as any
// of the named files changes on disk (written, created, removed or
// renamed).
//
// Agents watch their config file this way: a change cancels the run
// context, the process exits, and the supervisor restarts it with the
// new config.
//
// The returned cancel function stops watching and releases the watcher.
// On error, context and cancel are both nil.
func UntilModifyContext(ctx context.Context, files ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	for _, f := range files {
		if err := w.Add(f); err != nil {
			w.Close()
			return nil, nil, err
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)

	go func() {
		defer w.Close()

		select {
		case <-cctx.Done():
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op.String()))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			cancel(err)
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
