package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type fakeBackend struct {
	*httptest.Server
	mu     sync.Mutex
	limits []*int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/index/file", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success"}`))
	})
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
			Limit *int   `json:"limit"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		fb.limits = append(fb.limits, body.Limit)
		fb.mu.Unlock()
		w.Write([]byte(`{"answer":"45 Nm","sources":[{"payload":{"page_number":12,"text":"Torque: 45 Nm ..."}}]}`))
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"Bonjour"}`))
	})
	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAsk(t *testing.T) {
	fb := newFakeBackend(t)

	out, err := run(t, "", "ask", "--backend-url", fb.URL, "--limit", "3", "What", "is", "the", "torque", "spec?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"vous> What is the torque spec?",
		"technicia> 45 Nm",
		"Sources (1)",
		"Page 12: Torque: 45 Nm",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if len(fb.limits) != 1 || fb.limits[0] == nil || *fb.limits[0] != 3 {
		t.Errorf("expected limit 3 sent, got %v", fb.limits)
	}
}

func TestAsk_BackendDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	out, err := run(t, "", "ask", "--backend-url", url, "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out, "erreur> Erreur:") {
		t.Errorf("expected error message in transcript, got:\n%s", out)
	}
}

func TestUpload(t *testing.T) {
	fb := newFakeBackend(t)

	out, err := run(t, "", "upload", "--backend-url", fb.URL, writeFile(t, "report.pdf"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "système> Document report.pdf indexé avec succès") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestUpload_NotPDF(t *testing.T) {
	fb := newFakeBackend(t)

	_, err := run(t, "", "upload", "--backend-url", fb.URL, writeFile(t, "notes.txt"))
	if err == nil || !strings.Contains(err.Error(), "Veuillez sélectionner un fichier PDF") {
		t.Fatalf("expected PDF validation error, got %v", err)
	}
}

func TestChat_REPL(t *testing.T) {
	fb := newFakeBackend(t)
	pdf := writeFile(t, "report.pdf")

	stdin := "What is the torque spec?\n\n/upload " + pdf + "\n/upload\n/quit\nnever sent\n"
	out, err := run(t, stdin, "chat", "--backend-url", fb.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"technicia> 45 Nm",
		"système> Document report.pdf indexé avec succès",
		"usage: /upload <fichier.pdf>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "never sent") {
		t.Error("expected input after /quit to be ignored")
	}
}

func TestChat_ChatProfile(t *testing.T) {
	fb := newFakeBackend(t)
	pdf := writeFile(t, "report.pdf")

	out, err := run(t, "salut\n/upload "+pdf+"\n", "chat", "--backend-url", fb.URL, "--profile", "chat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "technicia> Bonjour") {
		t.Errorf("expected chat answer, got:\n%s", out)
	}
	if !strings.Contains(out, "erreur> upload is not supported by the configured backend") {
		t.Errorf("expected unsupported upload, got:\n%s", out)
	}
}

func TestRoot_InvalidProfile(t *testing.T) {
	_, err := run(t, "", "ask", "--profile", "nope", "hello")
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestWatch_PrintsIndexedFiles(t *testing.T) {
	fb := newFakeBackend(t)
	dir := t.TempDir()

	t.Setenv("BACKEND_URL", fb.URL)

	cmd := &cobra.Command{}
	var out syncBuffer
	cmd.SetOut(&out)

	a, err := newApp(cmd, &options{envFile: filepath.Join(dir, "none.env"), logLevel: "error"})
	if err != nil {
		t.Fatal(err)
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, cmd, a, dir, 20*time.Millisecond) }()

	time.Sleep(100 * time.Millisecond)
	os.WriteFile(filepath.Join(dir, "manual.pdf"), []byte("%PDF-1.4"), 0o644)

	deadline := time.After(3 * time.Second)
	for !strings.Contains(out.String(), "Document manual.pdf indexé avec succès") {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("timeout, output:\n%s", out.String())
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch returned %v", err)
	}
}

func TestNewApp_LogLevel(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "none.env")

	level := func(t *testing.T, cmd *cobra.Command, opts *options) string {
		t.Helper()
		a, err := newApp(cmd, opts)
		if err != nil {
			t.Fatal(err)
		}
		defer a.close()
		return a.cfg.LogLevel
	}

	t.Run("environment wins over the flag default", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")
		if got := level(t, &cobra.Command{}, &options{envFile: envFile, logLevel: "warn"}); got != "debug" {
			t.Errorf("expected debug, got %q", got)
		}
	})

	t.Run("flag default when the environment is silent", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "")
		if got := level(t, &cobra.Command{}, &options{envFile: envFile, logLevel: "warn"}); got != "warn" {
			t.Errorf("expected warn, got %q", got)
		}
	})

	t.Run("explicit flag wins over the environment", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")
		opts := &options{envFile: envFile}
		cmd := &cobra.Command{}
		cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "")
		if err := cmd.Flags().Set("log-level", "error"); err != nil {
			t.Fatal(err)
		}
		if got := level(t, cmd, opts); got != "error" {
			t.Errorf("expected error, got %q", got)
		}
	})
}
