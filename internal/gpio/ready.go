package gpio

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

var errReadyTimeout = errors.New("timed out waiting for gpio attributes")

// waitReady blocks until the exported line can be configured. Without
// WatchReady this is a plain sleep of the export delay.
func (l *Line) waitReady() {
	if l.exportDelay <= 0 {
		return
	}
	if !l.watchReady {
		l.sleep(l.exportDelay)
		return
	}

	start := time.Now()
	if err := waitForFile(l.directionPath, l.exportDelay); err != nil {
		l.logger.Debug("GPIO readiness watch ended without attributes", "path", l.directionPath, "error", err)
		if errors.Is(err, errReadyTimeout) {
			return
		}
		// The watch itself failed; fall back to the remaining fixed delay.
		if remaining := l.exportDelay - time.Since(start); remaining > 0 {
			l.sleep(remaining)
		}
		return
	}
	l.logger.Debug("GPIO attributes ready", "path", l.directionPath, "waited", time.Since(start))
}

// waitForFile waits until path exists, watching its parent and grandparent
// directories (the class root and gpio<N>) for creations.
func waitForFile(path string, timeout time.Duration) error {
	lineDir := filepath.Dir(path)
	root := filepath.Dir(lineDir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return err
	}
	// gpio<N> may already exist with the attribute still missing.
	_ = watcher.Add(lineDir)

	// Checked after the watches are in place so a creation cannot slip between.
	if exists(path) {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return errReadyTimeout

		case event, ok := <-watcher.Events:
			if !ok {
				return errReadyTimeout
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			if event.Name == lineDir {
				_ = watcher.Add(lineDir)
			}
			if exists(path) {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errReadyTimeout
			}
			return err
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
