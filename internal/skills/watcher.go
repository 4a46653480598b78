package skills

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a Loader whenever a skill directory changes on disk,
// so editing a skill file takes effect on the next agent run without a
// process restart.
type Watcher struct {
	fsw    *fsnotify.Watcher
	loader *Loader
	done   chan struct{}
}

// NewWatcher watches every non-empty directory the loader was built from
// and triggers Reload on any write/create/remove/rename event.
func NewWatcher(loader *Loader) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{loader.globalDir, loader.workspaceSkillsDir(), loader.subagentSkillsDir()} {
		if dir == "" {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			slog.Debug("skills: failed to watch directory", "dir", dir, "error", err)
		}
	}

	w := &Watcher{fsw: fsw, loader: loader, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Debug("skills: directory changed, reloading", "path", event.Name)
				w.loader.Reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("skills: watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
