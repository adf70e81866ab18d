// Package events publishes match lifecycle telemetry.
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bloom/pkg/kafka"
	"github.com/Ramsey-B/bloom/pkg/models"
	"github.com/Ramsey-B/bloom/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes match telemetry. Emission is best effort; downstream
// consumers feed analytics, never the matching result itself.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitMatchesComputed emits a match.computed event summarizing one search.
// Only aggregates leave the service; candidate profiles never do.
func (e *Emitter) EmitMatchesComputed(ctx context.Context, userID string, result *models.MatchSearchResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchesComputed")
	defer span.End()

	event := &kafka.MatchEvent{
		EventType:      "match.computed",
		UserID:         userID,
		CandidateCount: result.Stats.TotalCandidates,
		MatchCount:     result.Stats.MatchesFound,
		AverageScore:   result.Stats.AverageScore,
		HighQuality:    result.Stats.HighQualityMatches,
	}

	if err := e.producer.PublishMatchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit match.computed event")
		return err
	}

	return nil
}
