// Package watcher indexes PDFs dropped into a folder. Every created or
// modified .pdf goes through the regular upload path of a dedicated session,
// so results land in that session's transcript like any other upload.
package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/technicia/chat-bfa/internal/chat/domain"
)

// SessionID is the session the watcher uploads into.
const SessionID = "watcher"

// DefaultSettle is how long a queued file is left alone before upload, so
// that a copy in progress can finish writing.
const DefaultSettle = 500 * time.Millisecond

// Uploader is the part of the chat service the watcher needs.
type Uploader interface {
	EnsureSession(id string) domain.SessionState
	UploadFile(ctx context.Context, sessionID, filename string, content io.Reader) (domain.SessionState, error)
}

// Watcher uploads PDFs appearing in a directory.
type Watcher struct {
	uploader  Uploader
	sessionID string
	settle    time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	queued map[string]struct{}
}

// dropped is a queued file and the time its first event was seen.
type dropped struct {
	path string
	at   time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) { w.settle = d }
}

// WithSessionID overrides SessionID.
func WithSessionID(id string) Option {
	return func(w *Watcher) { w.sessionID = id }
}

// New creates a watcher.
func New(uploader Uploader, logger *zap.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		uploader:  uploader,
		sessionID: SessionID,
		settle:    DefaultSettle,
		logger:    logger,
		queued:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches dir until ctx is cancelled. PDFs already present are not
// indexed; only create and write events are.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching folder for PDFs", zap.String("dir", dir), zap.String("session_id", w.sessionID))

	queue := make(chan dropped, 100)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-fw.Events:
				if !ok {
					return nil
				}
				if !isPDF(event.Name) || !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if !w.enqueue(event.Name) {
					continue
				}
				select {
				case queue <- dropped{path: event.Name, at: time.Now()}:
				case <-ctx.Done():
					return nil
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return nil
				}
				w.logger.Warn("folder watcher error", zap.Error(err))
			}
		}
	})

	g.Go(func() error {
		for d := range queue {
			// Files queued together settle together.
			if wait := time.Until(d.at.Add(w.settle)); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil
				}
			}
			w.dequeue(d.path)
			w.index(ctx, d.path)
		}
		return nil
	})

	return g.Wait()
}

// enqueue reports whether path was not already waiting.
func (w *Watcher) enqueue(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.queued[path]; ok {
		return false
	}
	w.queued[path] = struct{}{}
	return true
}

func (w *Watcher) dequeue(path string) {
	w.mu.Lock()
	delete(w.queued, path)
	w.mu.Unlock()
}

func (w *Watcher) index(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		w.logger.Warn("open dropped file", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	name := filepath.Base(path)
	w.uploader.EnsureSession(w.sessionID)
	state, err := w.uploader.UploadFile(ctx, w.sessionID, name, f)
	if err != nil {
		w.logger.Warn("dropped file not indexed", zap.String("document", name), zap.Error(err))
		return
	}
	if n := len(state.Messages); n > 0 {
		last := state.Messages[n-1]
		w.logger.Info("dropped file processed",
			zap.String("document", name),
			zap.String("role", string(last.Role)),
			zap.String("message", last.Content),
		)
	}
}

func isPDF(path string) bool {
	return filepath.Ext(path) == ".pdf"
}
