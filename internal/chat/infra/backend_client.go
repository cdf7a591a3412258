package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/technicia/chat-bfa/internal/chat/domain"
	"github.com/technicia/chat-bfa/internal/config"
	maindomain "github.com/technicia/chat-bfa/internal/domain"
	"github.com/technicia/chat-bfa/internal/infra/resilience"
)

var tracer = otel.Tracer("chat/infra")

const serviceName = "technicia-backend"

// maxUploadBytes bounds the document buffered for an upload.
const maxUploadBytes = 64 << 20

// ============================================================
// BackendClient — HTTP client for the TechnicIA backend
// ============================================================
//
// Index profile:
//
//	POST /api/index/file  multipart "file"        → {"status": "success"}
//	POST /api/query       {"query": "...", "limit": 5} → {"answer": "...", "sources": [...]}
//
// Chat profile:
//
//	POST /chat            {"query": "..."}        → {"response": "..."}

type BackendClient struct {
	httpClient *http.Client
	baseURL    string
	profile    config.BackendProfile
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
}

// NewBackendClient creates the client. baseURL has no trailing path.
func NewBackendClient(
	httpClient *http.Client,
	baseURL string,
	profile config.BackendProfile,
	cb *gobreaker.CircuitBreaker,
	cfg resilience.Config,
) *BackendClient {
	return &BackendClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    profile,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
	}
}

// SupportsUpload reports whether the configured profile has an indexing endpoint.
func (c *BackendClient) SupportsUpload() bool {
	return c.profile.SupportsUpload()
}

// IndexFile uploads a document as multipart form data under field "file".
func (c *BackendClient) IndexFile(ctx context.Context, filename string, content io.Reader) (*domain.IndexResult, error) {
	ctx, span := tracer.Start(ctx, "BackendClient.IndexFile")
	defer span.End()
	span.SetAttributes(attribute.String("document.name", filename))

	if !c.profile.SupportsUpload() {
		return nil, &maindomain.ErrUnsupported{Action: "upload"}
	}

	// Buffer once so the body can be rebuilt if a retry is configured.
	data, err := io.ReadAll(io.LimitReader(content, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, &maindomain.ErrValidation{Field: "file", Message: "document exceeds 64 MiB"}
	}
	span.SetAttributes(attribute.Int("document.bytes", len(data)))

	var result domain.IndexResult
	err = c.execute(ctx, func() error {
		body, contentType, err := multipartBody(filename, data)
		if err != nil {
			return resilience.Permanent(err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.profile.IndexPath, body)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("create http request: %w", err))
		}
		httpReq.Header.Set("Content-Type", contentType)
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("http call to backend: %w", err)
		}
		defer resp.Body.Close()

		if err := checkStatus(resp); err != nil {
			return err
		}

		result = domain.IndexResult{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return resilience.Permanent(fmt.Errorf("invalid JSON response: %w", err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("index.status", result.Status))
	return &result, nil
}

// Query posts the question and normalises the answer field of the profile.
func (c *BackendClient) Query(ctx context.Context, req *domain.QueryRequest) (*domain.QueryResult, error) {
	ctx, span := tracer.Start(ctx, "BackendClient.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("query.length", len(req.Query)))

	payload := *req
	if !c.profile.SendLimit {
		payload.Limit = nil
	}

	var result *domain.QueryResult
	err := c.execute(ctx, func() error {
		body, err := json.Marshal(payload)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("marshal query request: %w", err))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.profile.QueryPath, bytes.NewReader(body))
		if err != nil {
			return resilience.Permanent(fmt.Errorf("create http request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("http call to backend: %w", err)
		}
		defer resp.Body.Close()

		if err := checkStatus(resp); err != nil {
			return err
		}

		result, err = decodeQueryResult(resp.Body, c.profile.AnswerField)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("answer.sources", len(result.Sources)))
	return result, nil
}

// Health probes the backend health endpoint. Profiles without one only
// check that the backend answers HTTP at all.
func (c *BackendClient) Health(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "BackendClient.Health")
	defer span.End()

	path := c.profile.HealthPath
	if path == "" {
		path = "/"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &maindomain.ErrExternalService{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return &maindomain.ErrExternalService{
			Service: serviceName,
			Err:     fmt.Errorf("health returned status %d", resp.StatusCode),
		}
	}
	return nil
}

// execute runs one backend call through the bulkhead, the circuit breaker and
// the retry policy, and maps failures to domain errors.
func (c *BackendClient) execute(ctx context.Context, call func() error) error {
	err := c.bulkhead.Do(ctx, func() error {
		_, err := c.cb.Execute(func() (any, error) {
			return nil, resilience.RetryWithBackoff(ctx, c.cfg, call)
		})
		return err
	})
	if err == nil {
		return nil
	}

	var netErr net.Error
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &maindomain.ErrCircuitOpen{Service: serviceName}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &maindomain.ErrTimeout{Operation: serviceName}
	}
	return &maindomain.ErrExternalService{Service: serviceName, Err: err}
}

// ============================================================
// Helpers
// ============================================================

func multipartBody(filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// checkStatus turns a non-2xx response into an error carrying the backend's
// own message when it sent one ({"detail": ...} or {"error": ...}).
// 4xx errors are permanent; 5xx may be retried.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var body struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := ""
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error != "":
			msg = body.Error
		case body.Detail != nil:
			if s, ok := body.Detail.(string); ok {
				msg = s
			} else {
				msg = fmt.Sprint(body.Detail)
			}
		}
	}

	err := fmt.Errorf("HTTP error! status: %d", resp.StatusCode)
	if msg != "" {
		err = fmt.Errorf("HTTP error! status: %d: %s", resp.StatusCode, msg)
	}
	if resp.StatusCode < http.StatusInternalServerError {
		return resilience.Permanent(err)
	}
	return err
}

// decodeQueryResult reads the answer from answerField and the optional
// sources array. A missing or empty answer is an error.
func decodeQueryResult(r io.Reader, answerField string) (*domain.QueryResult, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("invalid JSON response: %w", err))
	}

	var answer string
	if v, ok := raw[answerField]; ok {
		if err := json.Unmarshal(v, &answer); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("invalid %q field: %w", answerField, err))
		}
	}
	if strings.TrimSpace(answer) == "" {
		if v, ok := raw["error"]; ok {
			var msg string
			if json.Unmarshal(v, &msg) == nil && msg != "" {
				return nil, resilience.Permanent(errors.New(msg))
			}
		}
		return nil, resilience.Permanent(fmt.Errorf("response has no %q field", answerField))
	}

	sources := []domain.Source{}
	if v, ok := raw["sources"]; ok && string(v) != "null" {
		var matches []domain.SourceMatch
		if err := json.Unmarshal(v, &matches); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("invalid sources: %w", err))
		}
		for _, m := range matches {
			sources = append(sources, domain.Source{PageNumber: m.Payload.PageNumber, Text: m.Payload.Text})
		}
	}

	return &domain.QueryResult{Answer: answer, Sources: sources}, nil
}
