package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	SessionsMock     uint64
	SessionsProvider uint64
	SessionsNone     uint64
	GuardRedirects   uint64
	OTPSent          uint64
	OTPSendFailed    uint64
	OTPRateLimited   uint64
	OTPVerified      uint64
	OTPVerifyFailed  uint64
	MessagesSent     uint64
	ChatLoadCount    uint64
	ChatLoadTotalNs  int64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	sessionsMock     uint64
	sessionsProvider uint64
	sessionsNone     uint64
	guardRedirects   uint64
	otpSent          uint64
	otpSendFailed    uint64
	otpRateLimited   uint64
	otpVerified      uint64
	otpVerifyFailed  uint64
	messagesSent     uint64
	chatLoadCount    uint64
	chatLoadTotalNs  int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		SessionsMock:     atomic.LoadUint64(&m.sessionsMock),
		SessionsProvider: atomic.LoadUint64(&m.sessionsProvider),
		SessionsNone:     atomic.LoadUint64(&m.sessionsNone),
		GuardRedirects:   atomic.LoadUint64(&m.guardRedirects),
		OTPSent:          atomic.LoadUint64(&m.otpSent),
		OTPSendFailed:    atomic.LoadUint64(&m.otpSendFailed),
		OTPRateLimited:   atomic.LoadUint64(&m.otpRateLimited),
		OTPVerified:      atomic.LoadUint64(&m.otpVerified),
		OTPVerifyFailed:  atomic.LoadUint64(&m.otpVerifyFailed),
		MessagesSent:     atomic.LoadUint64(&m.messagesSent),
		ChatLoadCount:    atomic.LoadUint64(&m.chatLoadCount),
		ChatLoadTotalNs:  atomic.LoadInt64(&m.chatLoadTotalNs),
	}
}

// IncSessionResolved counts a resolution by source. Unknown sources are dropped.
func (m *InMemoryRecorder) IncSessionResolved(source string) {
	switch source {
	case SourceMock:
		atomic.AddUint64(&m.sessionsMock, 1)
	case SourceProvider:
		atomic.AddUint64(&m.sessionsProvider, 1)
	case SourceNone:
		atomic.AddUint64(&m.sessionsNone, 1)
	}
}

// IncGuardRedirect increments the guard redirect counter.
func (m *InMemoryRecorder) IncGuardRedirect() {
	atomic.AddUint64(&m.guardRedirects, 1)
}

// IncOTPSent counts an OTP send attempt by outcome.
func (m *InMemoryRecorder) IncOTPSent(status string) {
	switch status {
	case StatusSuccess:
		atomic.AddUint64(&m.otpSent, 1)
	case StatusFailed:
		atomic.AddUint64(&m.otpSendFailed, 1)
	case StatusRateLimited:
		atomic.AddUint64(&m.otpRateLimited, 1)
	}
}

// IncOTPVerified counts an OTP verification by outcome.
func (m *InMemoryRecorder) IncOTPVerified(status string) {
	switch status {
	case StatusSuccess:
		atomic.AddUint64(&m.otpVerified, 1)
	case StatusFailed:
		atomic.AddUint64(&m.otpVerifyFailed, 1)
	}
}

// IncMessageSent increments the sent message counter.
func (m *InMemoryRecorder) IncMessageSent() {
	atomic.AddUint64(&m.messagesSent, 1)
}

// ObserveChatLoadDuration records chat page load time.
func (m *InMemoryRecorder) ObserveChatLoadDuration(duration time.Duration) {
	atomic.AddUint64(&m.chatLoadCount, 1)
	atomic.AddInt64(&m.chatLoadTotalNs, duration.Nanoseconds())
}
