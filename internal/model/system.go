package model

import "time"

// SystemStats is a point-in-time sample of the demo app's host and business gauges
type SystemStats struct {
	CPUUsage          float64   `json:"cpu_usage"`
	MemoryUsage       float64   `json:"memory_usage"`
	ActiveConnections int       `json:"active_connections"`
	BusinessValue     float64   `json:"business_value"`
	CollectedAt       time.Time `json:"collected_at"`
}
