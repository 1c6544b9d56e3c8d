package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// EngineMetrics is returned by GET /v1/admin/metrics/engine.
type EngineMetrics struct {
	EntriesByCategory  map[string]int64 `json:"entriesByCategory"`
	PointsByCategory   map[string]int64 `json:"pointsByCategory"`
	RejectedOperations int64            `json:"rejectedOperations"`
	LevelUpgrades      int64            `json:"levelUpgrades"`
	LevelDowngrades    int64            `json:"levelDowngrades"`
	NotifyErrors       int64            `json:"notifyErrors"`
	CacheHitRate       float64          `json:"cacheHitRate"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps paginated list results.
type ListResponse[T any] struct {
	Data     []T  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
