// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Label values for session resolution.
const (
	SourceMock     = "mock"
	SourceProvider = "provider"
	SourceNone     = "none"
)

// Label values for OTP outcomes.
const (
	StatusSuccess     = "success"
	StatusFailed      = "failed"
	StatusRateLimited = "rate_limited"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Session metrics
	IncSessionResolved(source string) // source: "mock", "provider" or "none"
	IncGuardRedirect()

	// OTP metrics
	IncOTPSent(status string)     // status: "success", "failed", "rate_limited"
	IncOTPVerified(status string) // status: "success", "failed"

	// Chat metrics
	IncMessageSent()
	ObserveChatLoadDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
