package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncSessionResolved is a no-op.
func (n *NoopRecorder) IncSessionResolved(source string) {}

// IncGuardRedirect is a no-op.
func (n *NoopRecorder) IncGuardRedirect() {}

// IncOTPSent is a no-op.
func (n *NoopRecorder) IncOTPSent(status string) {}

// IncOTPVerified is a no-op.
func (n *NoopRecorder) IncOTPVerified(status string) {}

// IncMessageSent is a no-op.
func (n *NoopRecorder) IncMessageSent() {}

// ObserveChatLoadDuration is a no-op.
func (n *NoopRecorder) ObserveChatLoadDuration(duration time.Duration) {}
