package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type checkRequestMetrics struct {
	logger         *log.Logger
	start          time.Time
	authDuration   time.Duration
	ingestDuration time.Duration
	newCount       int
	errorStage     string
}

func newCheckRequestMetrics(logger *log.Logger) *checkRequestMetrics {
	return &checkRequestMetrics{
		logger: logger,
		start:  time.Now(),
	}
}

func (m *checkRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *checkRequestMetrics) ObserveIngest(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.ingestDuration = duration
}

func (m *checkRequestMetrics) SetNewCount(count int) {
	if count < 0 {
		count = 0
	}
	m.newCount = count
}

func (m *checkRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *checkRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":     "/api/cases/:caseId/movements/check",
		"status":    status,
		"total_ms":  durationToMillis(time.Since(m.start)),
		"new_count": m.newCount,
	}

	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.ingestDuration > 0 {
		fields["ingest_ms"] = durationToMillis(m.ingestDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("movements.check.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
