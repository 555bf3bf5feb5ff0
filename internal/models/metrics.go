package models

import "time"

// MetricsSnapshot is a lightweight summary of process activity.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	RemoteCallsTotal         uint64    `json:"remote_calls_total"`
	RemoteFailuresTotal      uint64    `json:"remote_failures_total"`
	AverageRemoteDurationMs  float64   `json:"average_remote_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
