package cli

import (
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/technicia/chat-bfa/internal/chat/domain"
	"github.com/technicia/chat-bfa/internal/chat/infra"
	"github.com/technicia/chat-bfa/internal/chat/render"
	"github.com/technicia/chat-bfa/internal/chat/service"
	"github.com/technicia/chat-bfa/internal/chat/store"
	"github.com/technicia/chat-bfa/internal/config"
	"github.com/technicia/chat-bfa/internal/infra/observability"
	"github.com/technicia/chat-bfa/internal/infra/resilience"
)

// app is the in-process chat stack used by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	sessions *store.Registry
	svc      *service.ChatService
}

func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}
	cfg := config.Load()

	flags := cmd.Flags()
	if flags.Changed("backend-url") {
		cfg.BackendURL = opts.backendURL
	}
	if flags.Changed("profile") {
		cfg.BackendProfile = opts.profile
	}
	if flags.Changed("limit") {
		cfg.QueryLimit = opts.limit
	}
	if flags.Changed("timeout") {
		cfg.HTTPTimeout = opts.timeout
	}
	// The CLI stays quiet unless asked otherwise.
	if flags.Changed("log-level") || os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = opts.logLevel
	}

	profile, err := config.Profile(cfg.BackendProfile)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel, "technicia-cli")
	cb := resilience.NewCircuitBreaker("technicia-backend", logger)
	backend := infra.NewBackendClient(
		&http.Client{Timeout: cfg.HTTPTimeout},
		cfg.BackendURL,
		profile,
		cb,
		resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		},
	)

	sessions := store.NewRegistry(cfg.SessionTTL, nil)
	svc := service.NewChatService(backend, sessions, cfg.QueryLimit, observability.NewMetrics(), logger)

	return &app{cfg: cfg, logger: logger, sessions: sessions, svc: svc}, nil
}

func (a *app) close() {
	a.sessions.Close()
	a.logger.Sync()
}

// transcript prints the messages of a session that were not printed yet.
type transcript struct {
	w       io.Writer
	opts    render.Options
	printed int
}

func newTranscript(w io.Writer, a *app) *transcript {
	return &transcript{w: w, opts: render.Options{UploadSupported: a.svc.SupportsUpload()}}
}

// flush prints new bubbles and returns the last one printed, if any.
func (t *transcript) flush(state domain.SessionState) (render.Bubble, bool) {
	view := render.Build(state, t.opts)
	var last render.Bubble
	var ok bool
	for ; t.printed < len(view.Bubbles); t.printed++ {
		last = view.Bubbles[t.printed]
		ok = true
		render.TextBubble(t.w, last)
	}
	return last, ok
}

// transcribedError is a failure already shown as an error message.
type transcribedError struct {
	msg string
}

func (e transcribedError) Error() string { return e.msg }

// failed turns a trailing error message into a command error.
func failed(b render.Bubble, ok bool) error {
	if ok && b.Role == domain.RoleError {
		return transcribedError{msg: b.Content}
	}
	return nil
}
