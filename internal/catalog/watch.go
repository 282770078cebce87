package catalog

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/liuscraft/boombox/internal/logging"
)

const debounceDelay = 100 * time.Millisecond

// Watcher 监听目录文件，变化稳定 100ms 后重新加载并应用
type Watcher struct {
	path     string
	target   Target
	watcher  *fsnotify.Watcher
	Reloaded chan *Catalog
	Errors   chan error
	closeCh  chan struct{}
	done     chan struct{}
	once     sync.Once
}

// Watch 监听 path 所在目录（编辑器常以 rename 方式保存文件）
func Watch(path string, target Target) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}

	watcher := &Watcher{
		path:     abs,
		target:   target,
		watcher:  w,
		Reloaded: make(chan *Catalog, 4),
		Errors:   make(chan error, 4),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	defer close(w.Reloaded)
	defer close(w.Errors)

	var debounce <-chan time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(debounceDelay)
		case <-debounce:
			debounce = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendErr(err)
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		logging.Warnf("Catalog: reload %s failed: %v", w.path, err)
		w.sendErr(err)
		return
	}
	if err := c.Apply(w.target); err != nil {
		logging.Warnf("Catalog: apply %s: %v", w.path, err)
		w.sendErr(err)
	}
	logging.Infof("Catalog: reloaded %s (%d channels, %d sounds)", w.path, len(c.Channels), len(c.Sounds))

	select {
	case w.Reloaded <- c:
	default:
	}
}

func (w *Watcher) sendErr(err error) {
	select {
	case w.Errors <- err:
	default:
	}
}
