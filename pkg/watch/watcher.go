// Package watch reports changes another process makes to the local store.
package watch

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/harrisonrobin/touchgrass/pkg/logging"
)

type Event struct {
	Path      string
	Operation string
}

// Filter decides which file names are reported.
type Filter func(name string) bool

// StoreFiles matches the JSON documents of a FileStore and the SQLite
// database with its journal, skipping hidden temp files.
func StoreFiles(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch {
	case filepath.Ext(base) == ".json", filepath.Ext(base) == ".db":
		return true
	case strings.HasSuffix(base, ".db-wal"), strings.HasSuffix(base, ".db-journal"):
		return true
	}
	return false
}

type Watcher struct {
	watcher *fsnotify.Watcher
	filter  Filter
	events  chan Event
	log     *logging.Logger
}

// New watches the given directories (non-recursively).
func New(dirs []string, filter Filter, log *logging.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = StoreFiles
	}
	if log == nil {
		log = logging.Discard()
	}

	w := &Watcher{
		watcher: watcher,
		filter:  filter,
		events:  make(chan Event, 100),
		log:     log.WithComponent(logging.ComponentWatch),
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	go w.processEvents()
	return w, nil
}

func (w *Watcher) processEvents() {
	defer close(w.events)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod || !w.filter(event.Name) {
				continue
			}
			select {
			case w.events <- Event{Path: event.Name, Operation: event.Op.String()}:
			default:
				// Consumer is behind; a refresh is already pending.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("file monitoring error", "error", err)
		}
	}
}

// Events is closed after Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
