package ratelimit

import "time"

// NoopMetrics discards every observation. It stands in for Prometheus when
// rate limiting is disabled and in tests that do not assert on metrics.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (m *NoopMetrics) RecordAllowed(limiter, endpoint string)              {}
func (m *NoopMetrics) RecordDenied(limiter, endpoint string)               {}
func (m *NoopMetrics) RecordCheckDuration(limiter string, _ time.Duration) {}
func (m *NoopMetrics) SetActiveKeys(limiter string, count int)             {}
func (m *NoopMetrics) RecordEviction(limiter string, count int)            {}
