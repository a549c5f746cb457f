package models

import "time"

// ProcessUsage is a resource sample of the running server process.
type ProcessUsage struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Goroutines int     `json:"goroutines"`
}

// Stats is a periodic snapshot served at /stats.
type Stats struct {
	Content     ContentCounts `json:"content"`
	Process     ProcessUsage  `json:"process"`
	CollectedAt time.Time     `json:"collected_at"`
}
