package config

import "fmt"

// Backend profile names.
const (
	ProfileIndex = "index"
	ProfileChat  = "chat"
)

// BackendProfile describes the endpoint set and response field names of one
// flavour of the TechnicIA backend.
type BackendProfile struct {
	Name string

	// IndexPath is empty when the backend has no indexing endpoint.
	IndexPath  string
	QueryPath  string
	HealthPath string

	// AnswerField is the JSON key carrying the answer text.
	AnswerField string

	// SendLimit controls whether {"limit": n} is sent with queries.
	SendLimit bool
}

// SupportsUpload reports whether documents can be indexed through this profile.
func (p BackendProfile) SupportsUpload() bool {
	return p.IndexPath != ""
}

var profiles = map[string]BackendProfile{
	ProfileIndex: {
		Name:        ProfileIndex,
		IndexPath:   "/api/index/file",
		QueryPath:   "/api/query",
		HealthPath:  "/api/health",
		AnswerField: "answer",
		SendLimit:   true,
	},
	ProfileChat: {
		Name:        ProfileChat,
		QueryPath:   "/chat",
		HealthPath:  "/health",
		AnswerField: "response",
	},
}

// Profile resolves a backend profile by name.
func Profile(name string) (BackendProfile, error) {
	p, ok := profiles[name]
	if !ok {
		return BackendProfile{}, fmt.Errorf("unknown backend profile %q", name)
	}
	return p, nil
}
