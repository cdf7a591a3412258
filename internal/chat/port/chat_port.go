// Package port defines the interface the chat service uses to reach the
// TechnicIA backend. The HTTP client in chat/infra implements it; tests use
// in-memory fakes.
package port

import (
	"context"
	"io"

	chatdomain "github.com/technicia/chat-bfa/internal/chat/domain"
)

// BackendCaller indexes documents and answers queries.
type BackendCaller interface {
	// IndexFile uploads a document for indexing. A nil error means the
	// backend replied with a JSON body; callers still check IndexResult.Status.
	IndexFile(ctx context.Context, filename string, content io.Reader) (*chatdomain.IndexResult, error)

	// Query asks a question. A nil error guarantees a non-empty answer.
	Query(ctx context.Context, req *chatdomain.QueryRequest) (*chatdomain.QueryResult, error)

	// SupportsUpload reports whether the backend has an indexing endpoint.
	SupportsUpload() bool

	// Health probes the backend.
	Health(ctx context.Context) error
}
