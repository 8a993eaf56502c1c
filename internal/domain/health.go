package domain

// ServiceHealth reports one dependency's health for /healthz.
type ServiceHealth struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"` // healthy | degraded | unhealthy
	LatencyMs     int64   `json:"latency_ms"`
	UptimePercent float64 `json:"uptime_percent"`
	LastChecked   string  `json:"last_checked"`
}

// HealthStatus is the /healthz response body.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}
