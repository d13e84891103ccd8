package syncer

import (
	"context"
	"time"
)

// Accessory lifecycle events carried in a Report.
const (
	EventRegistered = "registered"
	EventUpdated    = "updated"
	EventRemoved    = "removed"
)

// Report summarises one sync pass.
type Report struct {
	PassID          string        `json:"pass_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration_ns"`
	Devices         int           `json:"devices"`
	Unsupported     int           `json:"unsupported"`
	Registered      int           `json:"registered"`
	Updated         int           `json:"updated"`
	ServicesAdded   int           `json:"services_added"`
	ServicesRemoved int           `json:"services_removed"`
	Removed         []string      `json:"removed"`
	Errors          int           `json:"errors"`

	// CleanupSkipped is set when an optional poll failed; removing
	// accessories on partial information would drop live ones.
	CleanupSkipped bool `json:"cleanup_skipped,omitempty"`

	Events []AccessoryEvent `json:"events,omitempty"`
}

// AccessoryEvent is a change to one accessory during a pass. Accessories
// reviewed without service changes produce no event.
type AccessoryEvent struct {
	Key   string `json:"key"`
	Event string `json:"event"`
}

// Reporter receives every completed pass report.
type Reporter interface {
	ReportPass(ctx context.Context, r Report) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Report) error

// ReportPass calls f.
func (f ReporterFunc) ReportPass(ctx context.Context, r Report) error {
	return f(ctx, r)
}
