package checkout

import (
	"context"
	"sync"
)

// Window is the placeholder acquired synchronously when checkout starts. It is either
// redirected to the checkout page or closed.
type Window interface {
	Redirect(c context.Context, url string) error
	Close() error
}

type WindowOpener interface {
	// Open may return nil when no window could be created.
	Open() Window
}

type OpenerFunc func() Window

func (f OpenerFunc) Open() Window {
	return f()
}

// NoopOpener never opens a window.
type NoopOpener struct{}

func (NoopOpener) Open() Window {
	return nil
}

// RecordingWindow remembers where it was sent so the caller can hand the url to a client.
type RecordingWindow struct {
	mu     sync.Mutex
	url    string
	closed bool
}

func (w *RecordingWindow) Redirect(c context.Context, url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.url = url
	return nil
}

func (w *RecordingWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *RecordingWindow) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

func (w *RecordingWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// RecordingOpener opens a fresh RecordingWindow each time and keeps every one it opened.
type RecordingOpener struct {
	mu      sync.Mutex
	windows []*RecordingWindow
}

func (o *RecordingOpener) Open() Window {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := &RecordingWindow{}
	o.windows = append(o.windows, w)
	return w
}

func (o *RecordingOpener) Windows() []*RecordingWindow {
	o.mu.Lock()
	defer o.mu.Unlock()
	windows := make([]*RecordingWindow, len(o.windows))
	copy(windows, o.windows)
	return windows
}

// Last returns the most recently opened window, or nil.
func (o *RecordingOpener) Last() *RecordingWindow {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.windows) == 0 {
		return nil
	}
	return o.windows[len(o.windows)-1]
}
