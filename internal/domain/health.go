package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual service.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// ChatMetrics is returned by GET /v1/metrics/chat.
type ChatMetrics struct {
	ActiveSessions  int64   `json:"activeSessions"`
	UploadsSuccess  int64   `json:"uploadsSuccess"`
	UploadsFailed   int64   `json:"uploadsFailed"`
	QueriesAnswered int64   `json:"queriesAnswered"`
	QueriesFailed   int64   `json:"queriesFailed"`
	QueryErrorRate  float64 `json:"queryErrorRate"`
	BackendErrors   int64   `json:"backendErrors"`
	Period          string  `json:"period"`
}
