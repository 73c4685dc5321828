package audit

import (
	"context"

	"github.com/rs/zerolog"
)

type Service struct {
	repo   ScanRepository
	logger zerolog.Logger
}

func NewService(repo ScanRepository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// RecordAttempt persists one lookup attempt. Recording is best effort: a
// storage failure is logged but never surfaced, so the audit path can never
// break a lookup that already has a result for the clinician.
func (s *Service) RecordAttempt(ctx context.Context, e *ScanEntry) {
	if err := s.repo.Insert(ctx, e); err != nil {
		s.logger.Error().
			Err(err).
			Str("code", e.Code).
			Str("outcome", e.Outcome).
			Msg("failed to record scan audit entry")
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*ScanEntry, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}
