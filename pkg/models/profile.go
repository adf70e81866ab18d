// Package models contains the domain types shared across bloom
package models

import "time"

// RawProfileRecord is a profile row exactly as the profile store returns it.
// Fields may be missing, null, or mistyped (interests can arrive as a JSON
// array, a JSON-encoded string, or a comma-separated string). Only the
// profile normalizer is allowed to interpret this shape; it never leaks past
// pkg/profile.
type RawProfileRecord map[string]any

// Coordinates is a WGS84 point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is where a user reports being
type Location struct {
	City        string       `json:"city"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Personality holds the seven trait scores, each on a 0-100 scale.
// Missing traits default to 50 (neutral).
type Personality struct {
	Openness          int `json:"openness"`
	Conscientiousness int `json:"conscientiousness"`
	Extraversion      int `json:"extraversion"`
	Agreeableness     int `json:"agreeableness"`
	Neuroticism       int `json:"neuroticism"`
	Adventurousness   int `json:"adventurousness"`
	Discretion        int `json:"discretion"`
}

// AgeRange is an inclusive [Min, Max] age window
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ImportanceWeights is the weight vector over the five scoring factors.
// The values informally sum to 100; the scorer renormalizes regardless.
type ImportanceWeights struct {
	Personality  int `json:"personality"`
	Interests    int `json:"interests"`
	Location     int `json:"location"`
	Activity     int `json:"activity"`
	Verification int `json:"verification"`
}

// Preferences describes what a user is looking for
type Preferences struct {
	AgeRange         AgeRange          `json:"age_range"`
	GenderPreference []string          `json:"gender_preference"`
	MaxDistanceKm    float64           `json:"max_distance_km"`
	DesiredInterests []string          `json:"desired_interests,omitempty"`
	DealBreakers     []string          `json:"deal_breakers,omitempty"`
	Importance       ImportanceWeights `json:"importance"`
}

// Activity summarizes how engaged a user is
type Activity struct {
	LastActive          time.Time `json:"last_active"`
	ResponseRate        int       `json:"response_rate"`        // 0-100
	ProfileCompleteness int       `json:"profile_completeness"` // 0-100, derived by the normalizer
	PhotoCount          int       `json:"photo_count"`
	MessageCount        int       `json:"message_count"`
	MeetingCount        int       `json:"meeting_count"`
}

// Verification holds the five independent verification flags
type Verification struct {
	Verified       bool `json:"verified"`
	PhotoVerified  bool `json:"photo_verified"`
	PhoneVerified  bool `json:"phone_verified"`
	IDVerified     bool `json:"id_verified"`
	CoupleVerified bool `json:"couple_verified"`
}

// UserProfile is the canonical, fully-defaulted profile the engine scores
// against. It is produced exclusively by the profile normalizer.
type UserProfile struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Age          int          `json:"age"`
	Gender       string       `json:"gender"`
	Email        string       `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Location     Location     `json:"location"`
	Interests    []string     `json:"interests"`
	Personality  Personality  `json:"personality"`
	Preferences  Preferences  `json:"preferences"`
	Activity     Activity     `json:"activity"`
	Verification Verification `json:"verification"`
}

// Sanitized returns a copy with every contact-identifying field cleared.
// This runs on every profile that crosses the subsystem boundary.
func (p UserProfile) Sanitized() UserProfile {
	p.Email = ""
	p.Phone = ""
	return p
}

// DefaultImportance returns the weight vector used when a profile declares
// no importance preferences. Sums to 100.
func DefaultImportance() ImportanceWeights {
	return ImportanceWeights{
		Personality:  30,
		Interests:    25,
		Location:     20,
		Activity:     15,
		Verification: 10,
	}
}
