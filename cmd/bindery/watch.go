package main

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceWindow collapses bursts of events, such as an editor saving
// several files, into one rebuild.
const debounceWindow = 300 * time.Millisecond

// watch calls build after changes below root until ctx is cancelled.
// Events for paths under ignore (the build outputs) are dropped.
func watch(ctx context.Context, root string, ignore []string, log *zap.Logger, build func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addTree(w, root, ignore); err != nil {
		return err
	}
	log.Info("watching for changes", zap.String("root", root))

	timer := time.NewTimer(debounceWindow)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ignored(event.Name, ignore) || event.Has(fsnotify.Chmod) {
				continue
			}
			log.Debug("file event", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			if event.Has(fsnotify.Create) {
				_ = addTree(w, event.Name, ignore)
			}
			timer.Reset(debounceWindow)

		case <-timer.C:
			if err := build(); err != nil {
				log.Error("rebuild failed", zap.Error(err))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		}
	}
}

// addTree watches root and every directory below it. Non-directories are
// ignored.
func addTree(w *fsnotify.Watcher, root string, ignore []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if ignored(path, ignore) || (path != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func ignored(path string, ignore []string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, p := range ignore {
		if abs == p || strings.HasPrefix(abs, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
