package core

import (
	"time"

	"github.com/sirupsen/logrus"
)

// StageRecord tracks one pipeline stage of a run
type StageRecord struct {
	Timestamp time.Time
	Stage     string // "validate", "align", "depth", "composite", "report"
	Success   bool
	Duration  time.Duration
	Details   logrus.Fields
	Error     string
}

// stageLog collects stage records of a single run and logs each one
type stageLog struct {
	logger  logrus.FieldLogger
	records []StageRecord
}

func newStageLog(logger logrus.FieldLogger) *stageLog {
	return &stageLog{logger: logger}
}

func (s *stageLog) record(stage string, start time.Time, details logrus.Fields, err error) {
	rec := StageRecord{
		Timestamp: time.Now(),
		Stage:     stage,
		Success:   err == nil,
		Duration:  time.Since(start),
		Details:   details,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	s.records = append(s.records, rec)

	entry := s.logger.WithFields(details).WithFields(logrus.Fields{
		"stage":       stage,
		"duration_ms": rec.Duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("Stage failed")
		return
	}
	entry.Debug("Stage completed")
}

// timings returns the duration of each recorded stage
func (s *stageLog) timings() map[string]time.Duration {
	out := make(map[string]time.Duration, len(s.records))
	for _, r := range s.records {
		out[r.Stage] += r.Duration
	}
	return out
}
