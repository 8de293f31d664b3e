package deferredshading

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads a config file whenever it is written and hands each
// valid result to onChange. Invalid edits are logged and ignored.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(Config)
	log      Logger
	done     chan struct{}
	stopped  chan struct{}
}

func WatchConfig(path string, log Logger, onChange func(Config)) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	// Editors replace files on save; watching the directory survives that.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch config %s: %w", path, err)
	}
	cw := &ConfigWatcher{
		path:     filepath.Clean(path),
		watcher:  w,
		onChange: onChange,
		log:      log,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

func (cw *ConfigWatcher) run() {
	defer close(cw.stopped)
	for {
		select {
		case e, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != cw.path || e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			cfg, err := LoadConfig(cw.path)
			if err != nil {
				cw.log.Warnf("config reload: %v", err)
				continue
			}
			cw.log.Infof("config reloaded from %s", cw.path)
			cw.onChange(cfg)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.Errorf("config watcher: %v", err)
		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) Close() error {
	close(cw.done)
	err := cw.watcher.Close()
	<-cw.stopped
	return err
}
