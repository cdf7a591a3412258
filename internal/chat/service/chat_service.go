// Package service implements the two chat actions: uploading a document for
// indexing and asking a question. Both follow the same lifecycle against the
// session store:
//
//	validate → set flag (+ optimistic messages) → backend call → record result → clear flag
//
// Backend failures never escape as errors: they become "error" messages in
// the transcript and the session stays usable. Returned errors are reserved
// for requests that were refused before anything happened (validation, busy,
// unknown session, unsupported action).
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/technicia/chat-bfa/internal/chat/domain"
	"github.com/technicia/chat-bfa/internal/chat/port"
	"github.com/technicia/chat-bfa/internal/chat/store"
	maindomain "github.com/technicia/chat-bfa/internal/domain"
	"github.com/technicia/chat-bfa/internal/infra/observability"
)

var tracer = otel.Tracer("chat/service")

// User-facing texts.
const (
	msgNotPDF          = "Veuillez sélectionner un fichier PDF"
	msgIndexed         = "Document %s indexé avec succès"
	msgIndexFailed     = "Erreur lors de l'indexation: %s"
	msgQueryFailed     = "Erreur: %s"
	msgUnknownError    = "erreur inconnue"
	msgBackendDown     = "le service est momentanément indisponible"
	msgBackendTimedOut = "le service n'a pas répondu à temps"
)

// ChatService runs uploads and queries against sessions of a registry.
type ChatService struct {
	backend    port.BackendCaller
	sessions   *store.Registry
	queryLimit int
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewChatService creates the service. queryLimit is sent with every query
// when positive.
func NewChatService(
	backend port.BackendCaller,
	sessions *store.Registry,
	queryLimit int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		backend:    backend,
		sessions:   sessions,
		queryLimit: queryLimit,
		metrics:    metrics,
		logger:     logger,
	}
}

// SupportsUpload reports whether documents can be uploaded at all.
func (s *ChatService) SupportsUpload() bool {
	return s.backend.SupportsUpload()
}

// ============================================================
// Sessions
// ============================================================

// NewSession starts an empty session.
func (s *ChatService) NewSession() domain.SessionState {
	st := s.sessions.Create()
	s.metrics.SessionOpened()
	s.logger.Debug("session created", zap.String("session_id", st.ID()))
	return st.Snapshot()
}

// EnsureSession returns the session with a fixed id, starting it when it
// does not exist or has expired.
func (s *ChatService) EnsureSession(id string) domain.SessionState {
	st, created := s.sessions.Ensure(id)
	if created {
		s.metrics.SessionOpened()
		s.logger.Debug("session created", zap.String("session_id", id))
	}
	return st.Snapshot()
}

// Session returns the current state of a session.
func (s *ChatService) Session(id string) (domain.SessionState, error) {
	st, err := s.sessions.Get(id)
	if err != nil {
		return domain.SessionState{}, err
	}
	return st.Snapshot(), nil
}

// ============================================================
// Upload Handler
// ============================================================

// UploadFile validates and indexes a document in the given session.
//
// A name without the .pdf extension is refused with ErrValidation before any
// network call. Otherwise exactly one system or error message is appended and
// the uploading flag is cleared whatever happens.
func (s *ChatService) UploadFile(ctx context.Context, sessionID, filename string, content io.Reader) (domain.SessionState, error) {
	ctx, span := tracer.Start(ctx, "ChatService.UploadFile")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("document.name", filename),
	)

	st, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}

	if !strings.HasSuffix(filename, ".pdf") {
		return st.Snapshot(), &maindomain.ErrValidation{Field: "file", Message: msgNotPDF}
	}
	if !s.backend.SupportsUpload() {
		return st.Snapshot(), &maindomain.ErrUnsupported{Action: "upload"}
	}

	_, err = st.Update(func(cur domain.SessionState) ([]store.Action, error) {
		if cur.Uploading {
			return nil, &maindomain.ErrBusy{Action: "upload"}
		}
		return []store.Action{store.SetUploading{Value: true}}, nil
	})
	if err != nil {
		return st.Snapshot(), err
	}
	defer st.Dispatch(store.SetUploading{Value: false})

	start := time.Now()
	result, err := s.backend.IndexFile(ctx, filename, content)
	s.metrics.RecordBackendCall("upload", time.Since(start), err)

	if err == nil && result.Succeeded() {
		s.metrics.IncrUpload(observability.OutcomeSuccess)
		s.logger.Info("document indexed",
			zap.String("session_id", sessionID),
			zap.String("document", filename),
			zap.Any("metadata", result.Metadata),
		)
		return st.Dispatch(
			store.AppendMessage{Message: domain.NewMessage(domain.RoleSystem, fmt.Sprintf(msgIndexed, filename), nil)},
			store.SetDocument{Name: filename},
			store.SetUploading{Value: false},
		), nil
	}

	var reason string
	if err != nil {
		reason = describe(err)
	} else {
		reason = result.Error
		if reason == "" {
			reason = fmt.Sprintf("statut %q", result.Status)
		}
	}

	s.metrics.IncrUpload(observability.OutcomeError)
	s.logger.Warn("document indexing failed",
		zap.String("session_id", sessionID),
		zap.String("document", filename),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return st.Dispatch(
		store.AppendMessage{Message: domain.NewMessage(domain.RoleError, fmt.Sprintf(msgIndexFailed, reason), nil)},
		store.SetUploading{Value: false},
	), nil
}

// ============================================================
// Query Handler
// ============================================================

// SubmitQuery asks a question in the given session. limit overrides the
// configured number of sources when positive.
//
// An empty (after trimming) query or a query while another is in flight is
// refused before anything is recorded. Otherwise the user message and a
// pending placeholder are appended, and the placeholder is resolved by id into
// the assistant answer or an error message. loading is cleared whatever happens.
func (s *ChatService) SubmitQuery(ctx context.Context, sessionID, query string, limit int) (domain.SessionState, error) {
	ctx, span := tracer.Start(ctx, "ChatService.SubmitQuery")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	st, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return st.Snapshot(), &maindomain.ErrValidation{Field: "query", Message: "query is required"}
	}

	placeholder := domain.NewPlaceholder()
	_, err = st.Update(func(cur domain.SessionState) ([]store.Action, error) {
		if cur.Loading {
			return nil, &maindomain.ErrBusy{Action: "query"}
		}
		return []store.Action{
			store.AppendMessage{Message: domain.NewMessage(domain.RoleUser, query, nil)},
			store.SetLoading{Value: true},
			store.AppendMessage{Message: placeholder},
		}, nil
	})
	if err != nil {
		return st.Snapshot(), err
	}
	defer st.Dispatch(store.SetLoading{Value: false})

	req := &domain.QueryRequest{Query: query}
	if limit <= 0 {
		limit = s.queryLimit
	}
	if limit > 0 {
		req.Limit = &limit
	}

	start := time.Now()
	result, err := s.backend.Query(ctx, req)
	s.metrics.RecordBackendCall("query", time.Since(start), err)

	if err != nil {
		s.metrics.IncrQuery(observability.OutcomeError)
		s.logger.Warn("query failed",
			zap.String("session_id", sessionID),
			zap.Int("query_length", len(query)),
			zap.Error(err),
		)
		return st.Dispatch(
			store.ResolveMessage{ID: placeholder.ID, Role: domain.RoleError, Content: fmt.Sprintf(msgQueryFailed, describe(err))},
			store.SetLoading{Value: false},
		), nil
	}

	s.metrics.IncrQuery(observability.OutcomeSuccess)
	s.logger.Info("query answered",
		zap.String("session_id", sessionID),
		zap.Int("query_length", len(query)),
		zap.Int("sources", len(result.Sources)),
		zap.Duration("latency", time.Since(start)),
	)
	return st.Dispatch(
		store.ResolveMessage{ID: placeholder.ID, Role: domain.RoleAssistant, Content: result.Answer, Sources: result.Sources},
		store.SetLoading{Value: false},
	), nil
}

// describe turns a backend error into the text shown in the transcript.
func describe(err error) string {
	var open *maindomain.ErrCircuitOpen
	var timeout *maindomain.ErrTimeout
	var ext *maindomain.ErrExternalService

	switch {
	case errors.As(err, &open):
		return msgBackendDown
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return msgBackendTimedOut
	case errors.As(err, &ext):
		if ext.Err != nil {
			return ext.Err.Error()
		}
	}
	if err == nil || err.Error() == "" {
		return msgUnknownError
	}
	return err.Error()
}
