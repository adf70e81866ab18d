package models

// MatchingContext biases the scoring weights toward what the user says they
// are looking for. The bias table lives in pkg/matching and is deterministic.
type MatchingContext string

const (
	ContextNone       MatchingContext = ""
	ContextCasual     MatchingContext = "casual"
	ContextSerious    MatchingContext = "serious"
	ContextFriendship MatchingContext = "friendship"
)

// ScoreBreakdown holds the per-factor sub-scores, each 0-100, for
// explainability.
type ScoreBreakdown struct {
	Personality  float64 `json:"personality"`
	Interests    float64 `json:"interests"`
	Location     float64 `json:"location"`
	Activity     float64 `json:"activity"`
	Verification float64 `json:"verification"`
}

// MatchScore is the engine's per-candidate output.
type MatchScore struct {
	UserID     string         `json:"user_id"`
	TotalScore float64        `json:"total_score"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	Profile    *UserProfile   `json:"profile,omitempty"`

	// Populated only when the social graph adapter was consulted.
	SocialScore        float64  `json:"social_score,omitempty"`
	MutualFriends      []string `json:"mutual_friends,omitempty"`
	MutualFriendsCount int      `json:"mutual_friends_count,omitempty"`
}

// MatchStats aggregates a search result.
type MatchStats struct {
	TotalCandidates    int `json:"total_candidates"`
	MatchesFound       int `json:"matches_found"`
	AverageScore       int `json:"average_score"`
	HighQualityMatches int `json:"high_quality_matches"` // fused score >= 70
}

// MatchSearchResult is the top-level response of a matching call. Matches are
// ordered by fused score descending, ties broken by candidate id ascending.
type MatchSearchResult struct {
	Matches []MatchScore `json:"matches"`
	Total   int          `json:"total"`
	Stats   MatchStats   `json:"stats"`
}

// MatchFilters narrows the candidate scan when no graph hints are available.
type MatchFilters struct {
	AgeRange      *AgeRange `json:"age_range,omitempty"`
	Genders       []string  `json:"genders,omitempty" validate:"omitempty,dive,required"`
	MaxDistanceKm float64   `json:"max_distance_km,omitempty" validate:"omitempty,min=0"`
	MinScore      *float64  `json:"min_score,omitempty" validate:"omitempty,min=0,max=100"`
	VerifiedOnly  bool      `json:"verified_only,omitempty"`
	HasPhotos     bool      `json:"has_photos,omitempty"`
	Interests     []string  `json:"interests,omitempty"`
}

// MatchOptions configures a matching call. The zero value is valid; the
// engine applies documented defaults (limit 20, min score 30).
type MatchOptions struct {
	Limit          int             `json:"limit" validate:"omitempty,min=1,max=100"`
	Offset         int             `json:"offset" validate:"omitempty,min=0"`
	Filters        MatchFilters    `json:"filters"`
	Context        MatchingContext `json:"context" validate:"omitempty,oneof=casual serious friendship"`
	ExcludeMatched bool            `json:"exclude_matched"`
}

// SocialHint is one graph-derived candidate suggestion: a socially adjacent
// user id plus the number of mutual connections on the shortest path set.
type SocialHint struct {
	UserID      string `json:"user_id"`
	MutualCount int    `json:"mutual_count"`
}
