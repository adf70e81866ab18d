package matching

import (
	"context"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/bloom/pkg/models"
	"github.com/Ramsey-B/bloom/pkg/profile"
	"github.com/Ramsey-B/bloom/pkg/tracing"
)

// ProfileStore is the candidate repository adapter: read-only queries over
// the relational profile store. Implementations live in
// internal/repositories/profilestore.
type ProfileStore interface {
	// GetProfileByID returns (nil, nil) when the profile does not exist.
	GetProfileByID(ctx context.Context, id string) (models.RawProfileRecord, error)
	GetProfilesByIDs(ctx context.Context, ids []string) ([]models.RawProfileRecord, error)
	QueryProfiles(ctx context.Context, query CandidateQuery) ([]models.RawProfileRecord, error)
	// MatchedUserIDs returns the ids the user already has a confirmed match
	// with, supporting the excludeMatched option.
	MatchedUserIDs(ctx context.Context, userID string) ([]string, error)
}

// SocialGraph is the graph store adapter. The engine holds a nil SocialGraph
// when the graph feature flag is off; every graph-dependent step is then a
// no-op returning empty collections.
type SocialGraph interface {
	FriendsOfFriends(ctx context.Context, userID string, limit int, excludeIDs []string) ([]models.SocialHint, error)
	MutualFriends(ctx context.Context, userIDA, userIDB string) ([]string, error)
}

// MatchEmitter publishes best-effort match telemetry. May be nil.
type MatchEmitter interface {
	EmitMatchesComputed(ctx context.Context, userID string, result *models.MatchSearchResult) error
}

// CandidateQuery narrows the filtered candidate scan.
type CandidateQuery struct {
	ExcludeID    string // the requesting user, never their own candidate
	ExcludeIDs   []string
	AgeRange     *models.AgeRange
	Genders      []string
	VerifiedOnly bool
	HasPhotos    bool
	Interests    []string
	Limit        int
	Offset       int
}

// EngineConfig contains configuration for the match engine
type EngineConfig struct {
	DefaultLimit             int           // results returned when the caller sets none (default: 20)
	MaxLimit                 int           // upper bound on requested limit (default: 100)
	MinScore                 float64       // minimum fused score to keep a candidate (default: 30)
	HighQualityScore         float64       // threshold for the high-quality stat (default: 70)
	SocialBonusPerConnection float64       // fused-score points per mutual connection (default: 3)
	SocialBonusCap           float64       // ceiling on the social bonus (default: 15)
	GraphCandidateLimit      int           // max ids requested from the graph store (default: 100)
	ScanOverfetchFactor      int           // filtered-scan fetch multiplier over limit (default: 5)
	AdapterTimeout           time.Duration // per-adapter-call deadline (default: 3s)
}

// DefaultEngineConfig returns default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:             20,
		MaxLimit:                 100,
		MinScore:                 30,
		HighQualityScore:         70,
		SocialBonusPerConnection: 3,
		SocialBonusCap:           15,
		GraphCandidateLimit:      100,
		ScanOverfetchFactor:      5,
		AdapterTimeout:           3 * time.Second,
	}
}

// Engine coordinates the hydration pipeline: graph hints decide which ids
// matter, the profile store says what those ids look like, and the two are
// fused in memory. One instance per process; stateless per call and safe for
// concurrent use.
type Engine struct {
	logger     ectologger.Logger
	profiles   ProfileStore
	graph      SocialGraph
	emitter    MatchEmitter
	normalizer *profile.Normalizer
	scorer     *Scorer
	validate   *validator.Validate
	cfg        EngineConfig
}

// NewEngine creates a new match engine. graph and emitter may be nil.
func NewEngine(logger ectologger.Logger, profiles ProfileStore, graph SocialGraph, emitter MatchEmitter, cfg EngineConfig) *Engine {
	return &Engine{
		logger:     logger,
		profiles:   profiles,
		graph:      graph,
		emitter:    emitter,
		normalizer: profile.NewNormalizer(),
		scorer:     NewScorer(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		cfg:        cfg,
	}
}

// FindMatches runs the full matching pipeline for a user and returns a
// ranked, sanitized result. Store failures degrade to partial or empty
// results; the only errors surfaced are invalid caller options.
func (e *Engine) FindMatches(ctx context.Context, userID string, opts models.MatchOptions) (*models.MatchSearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.FindMatches")
	defer span.End()

	if err := e.validateOptions(userID, &opts); err != nil {
		return nil, err
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{"user_id": userID})

	self, ok := e.resolveSelf(ctx, log, userID)
	if !ok {
		// cannot score against nothing; expected during incomplete
		// registration, not an error
		return emptyResult(), nil
	}

	excludeIDs := e.matchedIDs(ctx, log, userID, opts.ExcludeMatched)
	hints := e.graphHints(ctx, log, userID, excludeIDs)

	result := e.scoreCandidates(ctx, log, self, hints, excludeIDs, opts)

	e.emit(ctx, log, userID, result)
	return result, nil
}

// CalculateCompatibility scores a single pair directly, with no candidate
// scan. Returns (nil, nil) when either profile is unavailable.
func (e *Engine) CalculateCompatibility(ctx context.Context, userID, otherUserID string, matchingContext models.MatchingContext) (*models.MatchScore, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.CalculateCompatibility")
	defer span.End()

	if userID == "" || otherUserID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "both user ids are required")
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"user_id":       userID,
		"other_user_id": otherUserID,
	})

	self, ok := e.resolveSelf(ctx, log, userID)
	if !ok {
		return nil, nil
	}
	other, ok := e.resolveSelf(ctx, log, otherUserID)
	if !ok {
		return nil, nil
	}

	score := e.scorer.Score(self, other, matchingContext)

	if e.graph != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
		mutuals, err := e.graph.MutualFriends(callCtx, userID, otherUserID)
		cancel()
		if err != nil {
			log.WithError(err).Warn("Mutual friends lookup failed; continuing without social score")
		} else {
			score.MutualFriends = mutuals
			score.MutualFriendsCount = len(mutuals)
			score.SocialScore = e.socialBonus(len(mutuals))
			if score.TotalScore > 0 {
				score.TotalScore += score.SocialScore
			}
		}
	}

	sanitized := other.Sanitized()
	score.Profile = &sanitized

	return &score, nil
}

// RecommendedUsers is the graph-first variant: candidates come from the
// social graph when it has anything to say, otherwise this falls back to the
// regular filtered-scan pipeline.
func (e *Engine) RecommendedUsers(ctx context.Context, userID string, limit int, opts models.MatchOptions) (*models.MatchSearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.RecommendedUsers")
	defer span.End()

	if limit > 0 {
		opts.Limit = limit
	}

	if err := e.validateOptions(userID, &opts); err != nil {
		return nil, err
	}

	if e.graph == nil {
		return e.FindMatches(ctx, userID, opts)
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{"user_id": userID})

	self, ok := e.resolveSelf(ctx, log, userID)
	if !ok {
		return emptyResult(), nil
	}

	excludeIDs := e.matchedIDs(ctx, log, userID, opts.ExcludeMatched)
	hints := e.graphHints(ctx, log, userID, excludeIDs)
	if len(hints) == 0 {
		log.Debug("Graph returned no recommendations; falling back to filtered scan")
		return e.FindMatches(ctx, userID, opts)
	}

	result := e.scoreCandidates(ctx, log, self, hints, excludeIDs, opts)

	e.emit(ctx, log, userID, result)
	return result, nil
}

// resolveSelf fetches and normalizes one profile. ok is false when the
// profile is missing, the store call failed, or the record has no identity.
func (e *Engine) resolveSelf(ctx context.Context, log ectologger.Logger, userID string) (*models.UserProfile, bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()

	raw, err := e.profiles.GetProfileByID(callCtx, userID)
	if err != nil {
		log.WithError(err).Warn("Profile store lookup failed")
		return nil, false
	}
	if raw == nil {
		log.Debug("Profile not found")
		return nil, false
	}

	p, err := e.normalizer.Normalize(raw)
	if err != nil {
		log.WithError(err).Warn("Profile record could not be normalized")
		return nil, false
	}

	return p, true
}

// matchedIDs returns the already-matched ids to exclude, best effort.
func (e *Engine) matchedIDs(ctx context.Context, log ectologger.Logger, userID string, excludeMatched bool) []string {
	if !excludeMatched {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()

	ids, err := e.profiles.MatchedUserIDs(callCtx, userID)
	if err != nil {
		log.WithError(err).Warn("Matched-ids lookup failed; continuing without exclusion")
		return nil
	}
	return ids
}

// graphHints asks the social graph for adjacent candidate ids. Any failure
// degrades to the non-graph path; graph enrichment is never a hard
// dependency.
func (e *Engine) graphHints(ctx context.Context, log ectologger.Logger, userID string, excludeIDs []string) []models.SocialHint {
	if e.graph == nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()

	hints, err := e.graph.FriendsOfFriends(callCtx, userID, e.cfg.GraphCandidateLimit, excludeIDs)
	if err != nil {
		log.WithError(err).Warn("Social graph unavailable; degrading to filtered scan")
		return nil
	}

	log.WithFields(map[string]any{"hint_count": len(hints)}).Debug("Collected graph hints")
	return hints
}

// scoreCandidates runs hydration, scoring, fusion, filtering, ordering,
// truncation, sanitization, and stats.
func (e *Engine) scoreCandidates(
	ctx context.Context,
	log ectologger.Logger,
	self *models.UserProfile,
	hints []models.SocialHint,
	excludeIDs []string,
	opts models.MatchOptions,
) *models.MatchSearchResult {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.scoreCandidates")
	defer span.End()

	// a per-request distance filter overrides the profile preference
	if opts.Filters.MaxDistanceKm > 0 {
		selfCopy := *self
		selfCopy.Preferences.MaxDistanceKm = opts.Filters.MaxDistanceKm
		self = &selfCopy
	}

	rawCandidates := e.hydrate(ctx, log, self.ID, hints, excludeIDs, opts)

	hintsByID := make(map[string]int, len(hints))
	for _, hint := range hints {
		hintsByID[hint.UserID] = hint.MutualCount
	}

	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	scored := make([]models.MatchScore, 0, len(rawCandidates))
	profilesByID := make(map[string]*models.UserProfile, len(rawCandidates))

	for _, raw := range rawCandidates {
		candidate, err := e.normalizer.Normalize(raw)
		if err != nil {
			// a record with no identity cannot abort the search
			log.WithError(err).Debug("Dropping unnormalizable candidate record")
			continue
		}
		if candidate.ID == self.ID {
			continue
		}
		if _, ok := excluded[candidate.ID]; ok {
			continue
		}

		score := e.scorer.Score(self, candidate, opts.Context)

		// social score fusion: zero mutual connections means a bonus of
		// exactly 0, never a penalty
		if count, ok := hintsByID[candidate.ID]; ok && count > 0 {
			score.MutualFriendsCount = count
			score.SocialScore = e.socialBonus(count)
			if score.TotalScore > 0 {
				score.TotalScore += score.SocialScore
			}
		}

		profilesByID[candidate.ID] = candidate
		scored = append(scored, score)
	}

	totalCandidates := len(scored)

	minScore := e.cfg.MinScore
	if opts.Filters.MinScore != nil {
		minScore = *opts.Filters.MinScore
	}

	survivors := scored[:0]
	for _, score := range scored {
		if score.TotalScore >= minScore {
			survivors = append(survivors, score)
		}
	}

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].TotalScore != survivors[j].TotalScore {
			return survivors[i].TotalScore > survivors[j].TotalScore
		}
		return survivors[i].UserID < survivors[j].UserID
	})

	stats := models.MatchStats{
		TotalCandidates: totalCandidates,
		MatchesFound:    len(survivors),
	}
	var scoreSum float64
	for _, score := range survivors {
		scoreSum += score.TotalScore
		if score.TotalScore >= e.cfg.HighQualityScore {
			stats.HighQualityMatches++
		}
	}
	if len(survivors) > 0 {
		stats.AverageScore = int(math.Round(scoreSum / float64(len(survivors))))
	}

	total := len(survivors)
	if len(survivors) > opts.Limit {
		survivors = survivors[:opts.Limit]
	}

	// privacy boundary: every result that leaves the engine is sanitized,
	// on the graph path and the fallback path alike
	for i := range survivors {
		if candidate, ok := profilesByID[survivors[i].UserID]; ok {
			sanitized := candidate.Sanitized()
			survivors[i].Profile = &sanitized
		}
	}

	log.WithFields(map[string]any{
		"candidate_count": totalCandidates,
		"match_count":     total,
	}).Debug("Scored candidates")

	return &models.MatchSearchResult{
		Matches: survivors,
		Total:   total,
		Stats:   stats,
	}
}

// hydrate fetches full candidate rows: by graph-hinted ids when hints exist,
// by filtered scan otherwise. Neither store is asked to do the other's job.
func (e *Engine) hydrate(
	ctx context.Context,
	log ectologger.Logger,
	selfID string,
	hints []models.SocialHint,
	excludeIDs []string,
	opts models.MatchOptions,
) []models.RawProfileRecord {
	if len(hints) > 0 {
		ids := make([]string, 0, len(hints))
		for _, hint := range hints {
			ids = append(ids, hint.UserID)
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
		rows, err := e.profiles.GetProfilesByIDs(callCtx, ids)
		cancel()
		if err == nil {
			return rows
		}
		log.WithError(err).Warn("Hydration by ids failed; degrading to filtered scan")
	}

	scanLimit := opts.Limit * e.cfg.ScanOverfetchFactor
	if scanLimit < opts.Limit {
		scanLimit = opts.Limit
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()

	rows, err := e.profiles.QueryProfiles(callCtx, CandidateQuery{
		ExcludeID:    selfID,
		ExcludeIDs:   excludeIDs,
		AgeRange:     opts.Filters.AgeRange,
		Genders:      opts.Filters.Genders,
		VerifiedOnly: opts.Filters.VerifiedOnly,
		HasPhotos:    opts.Filters.HasPhotos,
		Interests:    opts.Filters.Interests,
		Limit:        scanLimit,
		Offset:       opts.Offset,
	})
	if err != nil {
		log.WithError(err).Warn("Candidate scan failed; returning no candidates")
		return nil
	}

	return rows
}

// socialBonus converts a mutual-connection count into fused-score points:
// a fixed increment per connection, capped.
func (e *Engine) socialBonus(mutualCount int) float64 {
	if mutualCount <= 0 {
		return 0
	}
	bonus := float64(mutualCount) * e.cfg.SocialBonusPerConnection
	if bonus > e.cfg.SocialBonusCap {
		return e.cfg.SocialBonusCap
	}
	return bonus
}

// validateOptions rejects invalid caller options before any I/O and applies
// the documented defaults.
func (e *Engine) validateOptions(userID string, opts *models.MatchOptions) error {
	if userID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	if err := e.validate.Struct(opts); err != nil {
		return httperror.WrapError(http.StatusBadRequest, err)
	}

	if opts.Filters.AgeRange != nil && opts.Filters.AgeRange.Min > opts.Filters.AgeRange.Max {
		return httperror.NewHTTPError(http.StatusBadRequest, "age range min must not exceed max")
	}

	if opts.Limit <= 0 {
		opts.Limit = e.cfg.DefaultLimit
	}
	if opts.Limit > e.cfg.MaxLimit {
		opts.Limit = e.cfg.MaxLimit
	}

	return nil
}

func (e *Engine) emit(ctx context.Context, log ectologger.Logger, userID string, result *models.MatchSearchResult) {
	if e.emitter == nil {
		return
	}
	if err := e.emitter.EmitMatchesComputed(ctx, userID, result); err != nil {
		log.WithError(err).Warn("Failed to emit match telemetry")
	}
}

func emptyResult() *models.MatchSearchResult {
	return &models.MatchSearchResult{Matches: []models.MatchScore{}}
}
