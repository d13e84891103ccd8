package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Accessories   AccessoryMetrics `json:"accessories"`
	LastPass      *PassMetrics     `json:"last_pass,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// AccessoryMetrics counts published accessories.
type AccessoryMetrics struct {
	Total    int            `json:"total"`
	Services int            `json:"services"`
	ByKind   map[string]int `json:"by_service_kind"`
}

// PassMetrics summarises the most recent pass.
type PassMetrics struct {
	PassID     string  `json:"pass_id"`
	AgeSeconds float64 `json:"age_seconds"`
	DurationMS int64   `json:"duration_ms"`
	Errors     int     `json:"errors"`
}

// handleMetrics returns runtime, accessory and pass statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Accessories: AccessoryMetrics{ByKind: make(map[string]int)},
	}

	for _, rec := range s.accessories.Records() {
		metrics.Accessories.Total++
		for _, svc := range rec.Services {
			metrics.Accessories.Services++
			metrics.Accessories.ByKind[string(svc.Kind)]++
		}
	}

	if last, ok := s.passes.LastReport(); ok {
		metrics.LastPass = &PassMetrics{
			PassID:     last.PassID,
			AgeSeconds: time.Since(last.StartedAt.Add(last.Duration)).Seconds(),
			DurationMS: last.Duration.Milliseconds(),
			Errors:     last.Errors,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
