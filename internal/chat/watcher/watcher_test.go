package watcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/technicia/chat-bfa/internal/chat/domain"
)

type upload struct {
	sessionID string
	filename  string
	body      string
}

type recordingUploader struct {
	mu      sync.Mutex
	uploads []upload
	done    chan upload
}

func newRecordingUploader() *recordingUploader {
	return &recordingUploader{done: make(chan upload, 10)}
}

func (r *recordingUploader) EnsureSession(id string) domain.SessionState {
	return domain.SessionState{ID: id}
}

func (r *recordingUploader) UploadFile(_ context.Context, sessionID, filename string, content io.Reader) (domain.SessionState, error) {
	b, _ := io.ReadAll(content)
	u := upload{sessionID: sessionID, filename: filename, body: string(b)}
	r.mu.Lock()
	r.uploads = append(r.uploads, u)
	r.mu.Unlock()
	r.done <- u
	return domain.SessionState{ID: sessionID}, nil
}

func (r *recordingUploader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.uploads)
}

func startWatcher(t *testing.T, u Uploader, opts ...Option) string {
	t.Helper()
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	w := New(u, zap.NewNop(), opts...)
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx, dir) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errc; err != nil {
			t.Errorf("Run returned %v", err)
		}
	})

	// Give fsnotify time to register the directory.
	time.Sleep(100 * time.Millisecond)
	return dir
}

func TestWatcher_UploadsDroppedPDF(t *testing.T) {
	up := newRecordingUploader()
	dir := startWatcher(t, up, WithSettle(50*time.Millisecond))

	if err := os.WriteFile(filepath.Join(dir, "manual.pdf"), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case u := <-up.done:
		if u.sessionID != SessionID {
			t.Errorf("expected session %q, got %q", SessionID, u.sessionID)
		}
		if u.filename != "manual.pdf" {
			t.Errorf("expected manual.pdf, got %q", u.filename)
		}
		if u.body != "%PDF-1.4" {
			t.Errorf("unexpected body %q", u.body)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for upload")
	}
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	up := newRecordingUploader()
	dir := startWatcher(t, up, WithSettle(10*time.Millisecond))

	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644)
	os.WriteFile(filepath.Join(dir, "scan.PDF"), []byte("hi"), 0o644)

	select {
	case u := <-up.done:
		t.Errorf("unexpected upload of %q", u.filename)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_CoalescesQueuedEvents(t *testing.T) {
	up := newRecordingUploader()
	dir := startWatcher(t, up, WithSettle(400*time.Millisecond), WithSessionID("drop"))

	path := filepath.Join(dir, "big.pdf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		f.Write([]byte("chunk"))
		f.Sync()
		time.Sleep(10 * time.Millisecond)
	}
	f.Close()

	select {
	case u := <-up.done:
		if u.sessionID != "drop" {
			t.Errorf("expected session drop, got %q", u.sessionID)
		}
		if u.body != "chunkchunkchunkchunkchunk" {
			t.Errorf("expected the complete file, got %q", u.body)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for upload")
	}

	time.Sleep(200 * time.Millisecond)
	if n := up.count(); n != 1 {
		t.Errorf("expected a single upload, got %d", n)
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(newRecordingUploader(), zap.NewNop())
	if err := w.Run(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestEnqueue_Deduplicates(t *testing.T) {
	w := New(newRecordingUploader(), zap.NewNop())
	if !w.enqueue("a.pdf") {
		t.Error("first enqueue should succeed")
	}
	if w.enqueue("a.pdf") {
		t.Error("second enqueue should be refused while queued")
	}
	w.dequeue("a.pdf")
	if !w.enqueue("a.pdf") {
		t.Error("enqueue after dequeue should succeed")
	}
}

func TestWatcher_BatchSettlesOnce(t *testing.T) {
	const settle = 400 * time.Millisecond
	up := newRecordingUploader()
	dir := startWatcher(t, up, WithSettle(settle))

	start := time.Now()
	names := []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf"}
	for _, name := range names {
		os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644)
	}

	for range names {
		select {
		case <-up.done:
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout, %d uploads", up.count())
		}
	}

	// One settle window for the whole batch, not one per file.
	if elapsed := time.Since(start); elapsed > 2*settle {
		t.Errorf("batch took %s, expected about %s", elapsed, settle)
	}
}
