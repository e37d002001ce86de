package summary

import (
	"context"

	"github.com/rs/zerolog"
)

// Service serves the summary read path and the explicit rebuild trigger.
type Service struct {
	store   Store
	updater *Updater
	logger  zerolog.Logger
}

func NewService(store Store, updater *Updater, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		updater: updater,
		logger:  logger.With().Str("component", "summary").Logger(),
	}
}

// Get returns the current summary payload. Store trouble or an absent
// summary degrades to an empty payload with cached=false; the read path
// never fails the caller.
func (s *Service) Get(ctx context.Context) *Payload {
	stored, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("summary read failed, serving degraded response")
		return degradedPayload()
	}
	if stored == nil {
		return degradedPayload()
	}

	facets, err := s.store.TopProcedures(ctx, topProcedureCount)
	if err != nil {
		s.logger.Error().Err(err).Msg("facet read failed, serving summary without facets")
		facets = nil
	}

	return BuildPayload(Normalize(stored), facets)
}

// Rebuild triggers a full bootstrap in the background. Concurrent triggers
// collapse into the in-flight run.
func (s *Service) Rebuild() {
	go func() {
		// Detached from the request: a rebuild over a large table outlives
		// the HTTP deadline.
		if err := s.updater.Bootstrap(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("triggered rebuild failed")
		}
	}()
}

func degradedPayload() *Payload {
	return &Payload{
		Data: PayloadData{
			StatusBreakdown: []StatusCount{},
			TopProcedures:   []FacetCount{},
		},
		Cached: false,
	}
}
