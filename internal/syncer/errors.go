package syncer

import "errors"

var (
	// ErrPollFailed is returned when the device list could not be fetched.
	// Nothing is reconciled or removed in that pass.
	ErrPollFailed = errors.New("syncer: polling hub devices failed")

	// ErrPassRunning is returned when a pass is requested while one is running.
	ErrPassRunning = errors.New("syncer: pass already running")
)
