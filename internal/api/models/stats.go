package models

import "time"

// ServerStatsResponse reports process runtime statistics.
type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	GoRoutines    int       `json:"goroutines"`
	MemoryAllocMB float64   `json:"memory_alloc_mb"`
	NumCPU        int       `json:"num_cpu"`
}
