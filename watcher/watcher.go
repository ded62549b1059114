// Package watcher runs a handler for every new video file that appears in a
// directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler processes one new file. A returned error stops the watcher.
type Handler func(ctx context.Context, path string) error

// Options configures a Watcher.
type Options struct {
	Dir        string
	Extensions []string
	// A file is handed over once its size is unchanged for StableChecks
	// consecutive polls StableInterval apart.
	StableInterval time.Duration
	StableChecks   int
}

// Watcher monitors one directory and handles new files sequentially.
type Watcher struct {
	opts    Options
	handler Handler
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// New starts watching opts.Dir. Events are queued until Run is called.
func New(opts Options, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StableInterval <= 0 {
		opts.StableInterval = time.Second
	}
	if opts.StableChecks <= 0 {
		opts.StableChecks = 3
	}

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path %s: not a directory", opts.Dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(opts.Dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	return &Watcher{opts: opts, handler: handler, logger: logger, watcher: fw}, nil
}

// Run handles new files until ctx is canceled or the handler fails.
// Cancellation returns nil. Run closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	log := w.logger.With(zap.String("directory", w.opts.Dir))
	log.Info("File watcher started", zap.Strings("extensions", w.opts.Extensions))

	for {
		select {
		case <-ctx.Done():
			log.Info("File watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !w.matches(event.Name) {
				log.Debug("Ignoring file", zap.String("path", event.Name))
				continue
			}

			log.Info("New video detected", zap.String("path", event.Name))
			stable, err := w.waitStable(ctx, event.Name)
			if err != nil {
				if ctx.Err() != nil {
					log.Info("File watcher stopped")
					return nil
				}
				if errors.Is(err, fs.ErrNotExist) {
					log.Warn("Video disappeared before it was complete", zap.String("path", event.Name))
					continue
				}
				return err
			}
			if !stable {
				continue
			}

			if err := w.handler(ctx, event.Name); err != nil {
				log.Error("Stopping watcher", zap.String("path", event.Name), zap.Error(err))
				return err
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			log.Error("Watcher error", zap.Error(err))
		}
	}
}

// Close stops watching without running the loop.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) matches(path string) bool {
	name := filepath.Base(path)
	for _, ext := range w.opts.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// waitStable polls the size of path until it has not changed for
// StableChecks polls. Directories are reported as not stable.
func (w *Watcher) waitStable(ctx context.Context, path string) (bool, error) {
	ticker := time.NewTicker(w.opts.StableInterval)
	defer ticker.Stop()

	lastSize := int64(-1)
	unchanged := 0
	for {
		info, err := os.Stat(path)
		if err != nil {
			return false, err
		}
		if info.IsDir() {
			return false, nil
		}

		if info.Size() == lastSize {
			unchanged++
		} else {
			unchanged = 0
			lastSize = info.Size()
		}
		if unchanged >= w.opts.StableChecks {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
