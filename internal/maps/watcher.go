package maps

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports map files that change on disk. Names arrive on Changes;
// the frame loop decides what to do with them.
type Watcher struct {
	fs      *fsnotify.Watcher
	changes chan string
	log     *zap.Logger
	wg      sync.WaitGroup
}

// Watch starts watching the project directory.
func (p *Project) Watch() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create map watcher: %w", err)
	}
	if err := fsw.Add(p.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", p.dir, err)
	}
	w := &Watcher{
		fs:      fsw,
		changes: make(chan string, 64),
		log:     p.log,
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) Changes() <-chan string { return w.changes }

func (w *Watcher) Close() error {
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Ext(ev.Name) != Ext {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(ev.Name), Ext)
			select {
			case w.changes <- name:
			default:
				w.log.Warn("map change dropped", zap.String("map", name))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("map watcher error", zap.Error(err))
		}
	}
}
