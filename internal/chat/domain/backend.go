package domain

// ============================================================
// TechnicIA backend wire types
// ============================================================

// IndexResult is the body returned by the indexing endpoint:
//
//	{"status": "success", "metadata": {...}}
//	{"status": "error", "error": "..."}
type IndexResult struct {
	Status   string         `json:"status"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Succeeded reports whether the backend indexed the document.
func (r *IndexResult) Succeeded() bool {
	return r != nil && r.Status == "success"
}

// QueryRequest is the JSON body posted to the query endpoint.
type QueryRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit,omitempty"`
}

// QueryResult is the normalised answer of the query endpoint,
// whatever field name the backend used for the answer text.
type QueryResult struct {
	Answer  string
	Sources []Source
}

// SourceMatch is one entry of the backend "sources" array:
//
//	{"payload": {"page_number": 12, "text": "Torque: 45 Nm ..."}}
type SourceMatch struct {
	Payload struct {
		PageNumber *int   `json:"page_number,omitempty"`
		Text       string `json:"text"`
	} `json:"payload"`
}
