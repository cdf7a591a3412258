// Package handler exposes the chat over HTTP: the page itself and a small
// JSON API the page (or any client) drives.
//
//	GET  /                      chat page, opens a session when needed
//	POST /v1/sessions           new session → {"session_id", "token"}
//	GET  /v1/session            session state
//	GET  /v1/session/view       rendered message list (HTML fragment)
//	POST /v1/session/upload     multipart "file" → session state
//	POST /v1/session/query      {"query": "...", "limit": 5} → session state
//
// /v1/session routes need the session token, as a bearer token or the
// technicia_session cookie. Backend failures are not HTTP errors: they show
// up as "error" messages in the returned state.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/technicia/chat-bfa/internal/chat/domain"
	"github.com/technicia/chat-bfa/internal/chat/render"
	"github.com/technicia/chat-bfa/internal/chat/service"
	maindomain "github.com/technicia/chat-bfa/internal/domain"
	"github.com/technicia/chat-bfa/internal/infra/session"
)

var tracer = otel.Tracer("chat/handler")

// maxUploadBody bounds the multipart request body.
const maxUploadBody = 65 << 20

// CreateSessionResponse is returned by POST /v1/sessions.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// QueryRequest is the body of POST /v1/session/query.
type QueryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// ChatHandler serves the chat routes.
type ChatHandler struct {
	svc    *service.ChatService
	tokens *session.Manager
	logger *zap.Logger
}

// NewChatHandler creates the handler.
func NewChatHandler(svc *service.ChatService, tokens *session.Manager, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, tokens: tokens, logger: logger}
}

// Mount registers the chat routes on r.
func (h *ChatHandler) Mount(r chi.Router) {
	r.Get("/", h.Page)
	r.Post("/v1/sessions", h.CreateSession)

	r.Route("/v1/session", func(r chi.Router) {
		r.Use(session.Middleware(h.tokens, h.logger, func(w http.ResponseWriter, err error) {
			handleServiceError(w, err, h.logger)
		}))
		r.Get("/", h.GetSession)
		r.Get("/view", h.View)
		r.Post("/upload", h.Upload)
		r.Post("/query", h.Query)
	})
}

// Page renders the chat window for the caller's session, opening a new
// session (and setting its cookie) when the cookie is missing or stale.
func (h *ChatHandler) Page(w http.ResponseWriter, r *http.Request) {
	state, ok := h.currentSession(w, r)
	if !ok {
		var err error
		state, err = h.openSession(w)
		if err != nil {
			handleServiceError(w, err, h.logger)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.Page(w, h.view(state)); err != nil {
		h.logger.Error("render page", zap.Error(err))
	}
}

// CreateSession opens a session for API clients.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	state := h.svc.NewSession()
	token, err := h.tokens.Issue(state.ID)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, CreateSessionResponse{SessionID: state.ID, Token: token})
}

// GetSession returns the session state.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.Session(session.IDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// View returns the rendered message list.
func (h *ChatHandler) View(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.Session(session.IDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.Messages(w, h.view(state)); err != nil {
		h.logger.Error("render messages", zap.Error(err))
	}
}

// Upload indexes the multipart "file" field in the caller's session.
func (h *ChatHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "POST /v1/session/upload")
	defer span.End()

	sessionID := session.IDFromContext(ctx)
	span.SetAttributes(attribute.String("session.id", sessionID))

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		handleServiceError(w, &maindomain.ErrValidation{Field: "file", Message: "multipart field 'file' is required"}, h.logger)
		return
	}
	defer file.Close()

	state, err := h.svc.UploadFile(ctx, sessionID, header.Filename, file)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Query asks a question in the caller's session.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "POST /v1/session/query")
	defer span.End()

	sessionID := session.IDFromContext(ctx)
	span.SetAttributes(attribute.String("session.id", sessionID))

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, &maindomain.ErrValidation{Field: "body", Message: `expected {"query": "your question"}`}, h.logger)
		return
	}

	state, err := h.svc.SubmitQuery(ctx, sessionID, req.Query, req.Limit)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ============================================================
// Helpers
// ============================================================

// currentSession resolves the cookie session, renewing an aging cookie.
func (h *ChatHandler) currentSession(w http.ResponseWriter, r *http.Request) (domain.SessionState, bool) {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return domain.SessionState{}, false
	}
	claims, err := h.tokens.Verify(c.Value)
	if err != nil {
		return domain.SessionState{}, false
	}
	state, err := h.svc.Session(claims.SessionID)
	if err != nil {
		return domain.SessionState{}, false
	}
	if h.tokens.NeedsRefresh(claims) {
		if token, err := h.tokens.Issue(state.ID); err == nil {
			h.tokens.SetCookie(w, token)
		}
	}
	return state, true
}

func (h *ChatHandler) openSession(w http.ResponseWriter) (domain.SessionState, error) {
	state := h.svc.NewSession()
	token, err := h.tokens.Issue(state.ID)
	if err != nil {
		return domain.SessionState{}, err
	}
	h.tokens.SetCookie(w, token)
	return state, nil
}

func (h *ChatHandler) view(state domain.SessionState) render.View {
	return render.Build(state, render.Options{UploadSupported: h.svc.SupportsUpload()})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleServiceError maps domain errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *maindomain.ErrValidation
	var busy *maindomain.ErrBusy
	var notFound *maindomain.ErrNotFound
	var unauthorized *maindomain.ErrUnauthorized
	var unsupported *maindomain.ErrUnsupported
	var circuitOpen *maindomain.ErrCircuitOpen
	var external *maindomain.ErrExternalService

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &busy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &unauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &unsupported):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(external.Err))
		writeError(w, http.StatusBadGateway, "external service unavailable: "+external.Service)
	default:
		logger.Error("unexpected error in chat handler", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
