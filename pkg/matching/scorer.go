// Package matching implements the compatibility scoring and match
// orchestration for bloom. Scoring is pure: a function of the two profiles
// and the matching context, no I/O.
package matching

import (
	"math"
	"time"

	"github.com/Ramsey-B/bloom/pkg/models"
	"github.com/Ramsey-B/bloom/pkg/normalizers"
)

// Verification flag weights. Sums to 100 when every flag is set.
const (
	weightVerified       = 30
	weightPhotoVerified  = 25
	weightIDVerified     = 20
	weightPhoneVerified  = 15
	weightCoupleVerified = 10
)

// neutralScore is used when a factor has no data to score on either side
// (e.g. neither profile has coordinates or a city).
const neutralScore = 50.0

// Scorer computes pairwise compatibility scores. Stateless and safe for
// concurrent use.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score evaluates a candidate against self. The result is intentionally
// asymmetric: only self's preferences and importance weights are consulted,
// so Score(a, b) and Score(b, a) can differ.
//
// Hard filters (age range, gender preference, deal-breakers) are evaluated
// before any weighting; a single violation yields TotalScore 0.
func (s *Scorer) Score(self, candidate *models.UserProfile, matchingContext models.MatchingContext) models.MatchScore {
	score := models.MatchScore{UserID: candidate.ID}

	if s.violatesHardFilter(self, candidate) {
		return score
	}

	weights := ResolveWeights(self.Preferences.Importance, matchingContext)

	score.Breakdown = models.ScoreBreakdown{
		Personality:  s.PersonalitySimilarity(self.Personality, candidate.Personality),
		Interests:    s.InterestOverlap(self.Interests, candidate.Interests),
		Location:     s.LocationScore(self, candidate),
		Activity:     s.ActivityScore(candidate.Activity),
		Verification: s.VerificationScore(candidate.Verification),
	}

	score.TotalScore = clampScore(
		score.Breakdown.Personality*weights.Personality +
			score.Breakdown.Interests*weights.Interests +
			score.Breakdown.Location*weights.Location +
			score.Breakdown.Activity*weights.Activity +
			score.Breakdown.Verification*weights.Verification)

	return score
}

// violatesHardFilter checks the conditions that exclude a candidate outright.
func (s *Scorer) violatesHardFilter(self, candidate *models.UserProfile) bool {
	prefs := self.Preferences

	if candidate.Age < prefs.AgeRange.Min || candidate.Age > prefs.AgeRange.Max {
		return true
	}

	// an empty preference list is defensive only; the normalizer guarantees
	// a non-empty list
	if len(prefs.GenderPreference) > 0 && !containsTag(prefs.GenderPreference, candidate.Gender) {
		return true
	}

	for _, dealBreaker := range prefs.DealBreakers {
		if containsTag(candidate.Interests, dealBreaker) {
			return true
		}
	}

	return false
}

// PersonalitySimilarity scores trait alignment as the inverse of the
// normalized mean absolute difference across the seven traits.
func (s *Scorer) PersonalitySimilarity(a, b models.Personality) float64 {
	pairs := [][2]int{
		{a.Openness, b.Openness},
		{a.Conscientiousness, b.Conscientiousness},
		{a.Extraversion, b.Extraversion},
		{a.Agreeableness, b.Agreeableness},
		{a.Neuroticism, b.Neuroticism},
		{a.Adventurousness, b.Adventurousness},
		{a.Discretion, b.Discretion},
	}

	var totalDiff float64
	for _, pair := range pairs {
		totalDiff += math.Abs(float64(pair[0] - pair[1]))
	}

	meanDiff := totalDiff / float64(len(pairs))
	return clampScore(100 - meanDiff)
}

// InterestOverlap scores shared interests as the Jaccard ratio of the two
// tag sets, scaled to 0-100. Tags are compared in canonical form.
func (s *Scorer) InterestOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[normalizers.NormalizeTag(tag)] = struct{}{}
	}

	shared := 0
	seen := make(map[string]struct{}, len(b))
	for _, tag := range b {
		normalized := normalizers.NormalizeTag(tag)
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		if _, ok := set[normalized]; ok {
			shared++
		}
	}

	union := len(set) + len(seen) - shared
	if union == 0 {
		return 0
	}

	return clampScore(float64(shared) / float64(union) * 100)
}

// LocationScore scores proximity. With coordinates on both sides the score
// decays linearly with great-circle distance and hits 0 at self's max
// distance — beyond the cap this factor is a deal-breaker, not a penalty.
// Without coordinates it falls back to same-city exact match; with no
// location data at all it is neutral.
func (s *Scorer) LocationScore(self, candidate *models.UserProfile) float64 {
	maxDistance := self.Preferences.MaxDistanceKm
	if maxDistance <= 0 {
		maxDistance = 100
	}

	if self.Location.Coordinates != nil && candidate.Location.Coordinates != nil {
		distance := haversineKm(*self.Location.Coordinates, *candidate.Location.Coordinates)
		if distance >= maxDistance {
			return 0
		}
		return clampScore((1 - distance/maxDistance) * 100)
	}

	if self.Location.City != "" && candidate.Location.City != "" {
		if normalizers.NormalizeCity(self.Location.City) == normalizers.NormalizeCity(candidate.Location.City) {
			return 100
		}
		return 0
	}

	return neutralScore
}

// ActivityScore is a composite of last-active recency, response rate, and
// profile completeness (40/30/30).
func (s *Scorer) ActivityScore(activity models.Activity) float64 {
	recency := recencyScore(activity.LastActive)
	composite := recency*0.4 + float64(activity.ResponseRate)*0.3 + float64(activity.ProfileCompleteness)*0.3
	return clampScore(composite)
}

func recencyScore(lastActive time.Time) float64 {
	if lastActive.IsZero() {
		return 0
	}

	elapsed := time.Since(lastActive)
	switch {
	case elapsed <= 24*time.Hour:
		return 100
	case elapsed <= 7*24*time.Hour:
		return 80
	case elapsed <= 30*24*time.Hour:
		return 60
	case elapsed <= 90*24*time.Hour:
		return 30
	default:
		return 10
	}
}

// VerificationScore is the weighted count of the candidate's verification
// flags.
func (s *Scorer) VerificationScore(v models.Verification) float64 {
	score := 0.0
	if v.Verified {
		score += weightVerified
	}
	if v.PhotoVerified {
		score += weightPhotoVerified
	}
	if v.IDVerified {
		score += weightIDVerified
	}
	if v.PhoneVerified {
		score += weightPhoneVerified
	}
	if v.CoupleVerified {
		score += weightCoupleVerified
	}
	return clampScore(score)
}

// haversineKm is the great-circle distance between two points in kilometers.
func haversineKm(a, b models.Coordinates) float64 {
	const earthRadiusKm = 6371

	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func containsTag(tags []string, tag string) bool {
	normalized := normalizers.NormalizeTag(tag)
	for _, t := range tags {
		if normalizers.NormalizeTag(t) == normalized {
			return true
		}
	}
	return false
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
