package backend

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchMsg is sent when the provider's IPC socket appears or disappears.
type WatchMsg struct {
	// Path is the socket that changed.
	Path string
	// Kind distinguishes appearance from removal.
	Kind WatchKind
}

// WatchKind identifies the type of socket change.
type WatchKind int

const (
	WatchProviderUp WatchKind = iota
	WatchProviderDown
)

// Watcher monitors the directory of an IPC provider socket via fsnotify, so a
// wallet started after the client is picked up without a restart.
type Watcher struct {
	w      *fsnotify.Watcher
	sender Sender
	socket string
	logger *slog.Logger
}

// NewWatcher creates a watcher for an IPC endpoint. Remote endpoints return
// ErrNotIPC.
func NewWatcher(endpoint string, sender Sender, logger *slog.Logger) (*Watcher, error) {
	if endpoint == "" || isRemote(endpoint) {
		return nil, ErrNotIPC
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory containing the socket (to catch creates + removes).
	if err := fw.Add(filepath.Dir(endpoint)); err != nil {
		fw.Close()
		return nil, err
	}

	watcher := &Watcher{
		w:      fw,
		sender: sender,
		socket: filepath.Clean(endpoint),
		logger: logger,
	}
	go watcher.loop()
	return watcher, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.w.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.socket {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				w.logger.Info("provider socket appeared", "path", event.Name)
				w.sender.Send(WatchMsg{Path: event.Name, Kind: WatchProviderUp})
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.logger.Info("provider socket removed", "path", event.Name)
				w.sender.Send(WatchMsg{Path: event.Name, Kind: WatchProviderDown})
			}

		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}
