// Package profile converts raw profile-store records into canonical
// UserProfile values. It is the single translation point for the
// loosely-typed row shape; nothing past this package sees a raw record.
package profile

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/Ramsey-B/bloom/pkg/extractor"
	"github.com/Ramsey-B/bloom/pkg/models"
	"github.com/Ramsey-B/bloom/pkg/normalizers"
)

// ErrNoIdentity is returned when a record carries neither an "id" nor a
// "userId" field. This is the only unrecoverable normalization failure;
// every other malformed field degrades to a documented default.
var ErrNoIdentity = errors.New("profile record has no id or userId")

// Defaults applied when a record omits the corresponding field.
const (
	DefaultTraitScore    = 50
	DefaultResponseRate  = 50
	DefaultMinAge        = 18
	DefaultMaxAge        = 99
	DefaultMaxDistanceKm = 100
)

// completenessChecklist is the fixed field set profile completeness is
// computed over.
var completenessChecklist = []string{"name", "bio", "age", "gender", "city", "interests", "avatar", "coordinates"}

// Normalizer converts raw profile records into canonical profiles
type Normalizer struct {
	extract *extractor.Extractor
}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{extract: extractor.New()}
}

// Normalize converts a raw record into a canonical UserProfile. Missing or
// mistyped fields resolve to defaults rather than failing the record;
// availability over strictness is deliberate here. The only failure mode is
// a record with no identity at all.
func (n *Normalizer) Normalize(raw models.RawProfileRecord) (*models.UserProfile, error) {
	id := n.firstString(raw, "id", "userId", "user_id")
	if id == "" {
		return nil, ErrNoIdentity
	}

	p := &models.UserProfile{
		ID:     id,
		Name:   n.firstString(raw, "name", "displayName", "display_name"),
		Gender: normalizers.NormalizeTag(n.firstString(raw, "gender", "profileType", "profile_type")),
		Email:  n.firstString(raw, "email", "contactEmail", "contact_email", "mail"),
		Phone:  n.firstString(raw, "phone", "phoneNumber", "phone_number", "mobile", "whatsapp"),
	}

	if age := n.firstFloat(raw, "age"); age != nil && *age > 0 {
		p.Age = clampInt(int(*age), DefaultMinAge, 120)
	}

	p.Location = n.location(raw)
	p.Interests = n.interests(raw)
	p.Personality = n.personality(raw)
	p.Preferences = n.preferences(raw)
	p.Activity = n.activity(raw)
	p.Verification = n.verification(raw)

	// Completeness is derived from the checklist unless the record already
	// carries one (round-trip stability for canonical records).
	if c := n.firstFloat(raw, "activity.profile_completeness", "profileCompleteness", "profile_completeness"); c != nil {
		p.Activity.ProfileCompleteness = clampInt(int(*c), 0, 100)
	} else {
		p.Activity.ProfileCompleteness = n.completeness(raw, p)
	}

	return p, nil
}

func (n *Normalizer) location(raw models.RawProfileRecord) models.Location {
	loc := models.Location{
		City: n.firstString(raw, "location.city", "city"),
	}

	lat := n.firstFloat(raw, "location.coordinates.lat", "coordinates.lat", "lat", "latitude")
	lng := n.firstFloat(raw, "location.coordinates.lng", "coordinates.lng", "lng", "longitude")
	if lat != nil && lng != nil {
		loc.Coordinates = &models.Coordinates{Lat: *lat, Lng: *lng}
	}

	return loc
}

// interests accepts an actual list, a JSON-encoded array string, or a
// comma-separated string. Unparseable input yields an empty set, never an
// error.
func (n *Normalizer) interests(raw models.RawProfileRecord) []string {
	value, err := n.extract.Extract(map[string]any(raw), "interests")
	if err != nil || value == nil {
		return []string{}
	}
	return parseTagList(value)
}

func parseTagList(value any) []string {
	switch v := value.(type) {
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		return normalizers.NormalizeTags(tags)
	case []string:
		return normalizers.NormalizeTags(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return []string{}
		}
		if strings.HasPrefix(trimmed, "[") {
			var tags []string
			if err := json.Unmarshal([]byte(trimmed), &tags); err == nil {
				return normalizers.NormalizeTags(tags)
			}
			// fall through to comma splitting on malformed JSON
		}
		return normalizers.NormalizeTags(strings.Split(trimmed, ","))
	default:
		return []string{}
	}
}

func (n *Normalizer) personality(raw models.RawProfileRecord) models.Personality {
	return models.Personality{
		Openness:          n.trait(raw, "openness"),
		Conscientiousness: n.trait(raw, "conscientiousness"),
		Extraversion:      n.trait(raw, "extraversion"),
		Agreeableness:     n.trait(raw, "agreeableness"),
		Neuroticism:       n.trait(raw, "neuroticism"),
		Adventurousness:   n.trait(raw, "adventurousness"),
		Discretion:        n.trait(raw, "discretion"),
	}
}

func (n *Normalizer) trait(raw models.RawProfileRecord, name string) int {
	if v := n.firstFloat(raw, "personality."+name); v != nil {
		return clampInt(int(*v), 0, 100)
	}
	return DefaultTraitScore
}

func (n *Normalizer) preferences(raw models.RawProfileRecord) models.Preferences {
	prefs := models.Preferences{
		AgeRange:      models.AgeRange{Min: DefaultMinAge, Max: DefaultMaxAge},
		MaxDistanceKm: DefaultMaxDistanceKm,
		Importance:    models.DefaultImportance(),
	}

	if min := n.firstFloat(raw, "preferences.age_range.min", "preferences.ageRange.min"); min != nil {
		prefs.AgeRange.Min = clampInt(int(*min), DefaultMinAge, 120)
	}
	if max := n.firstFloat(raw, "preferences.age_range.max", "preferences.ageRange.max"); max != nil {
		prefs.AgeRange.Max = clampInt(int(*max), prefs.AgeRange.Min, 120)
	}
	if dist := n.firstFloat(raw, "preferences.max_distance_km", "preferences.maxDistance"); dist != nil && *dist > 0 {
		prefs.MaxDistanceKm = *dist
	}

	if genders := n.tagList(raw, "preferences.gender_preference", "preferences.genderPreference"); len(genders) > 0 {
		prefs.GenderPreference = genders
	} else {
		// absent means no declared restriction; keep the list non-empty with
		// the full category set
		prefs.GenderPreference = []string{"single", "pareja"}
	}

	prefs.DesiredInterests = n.tagList(raw, "preferences.desired_interests", "preferences.interests")
	prefs.DealBreakers = n.tagList(raw, "preferences.deal_breakers", "preferences.dealBreakers")

	imp := &prefs.Importance
	for _, w := range []struct {
		paths []string
		dst   *int
	}{
		{[]string{"preferences.importance.personality"}, &imp.Personality},
		{[]string{"preferences.importance.interests"}, &imp.Interests},
		{[]string{"preferences.importance.location"}, &imp.Location},
		{[]string{"preferences.importance.activity"}, &imp.Activity},
		{[]string{"preferences.importance.verification"}, &imp.Verification},
	} {
		if v := n.firstFloat(raw, w.paths...); v != nil {
			*w.dst = clampInt(int(*v), 0, 100)
		}
	}

	return prefs
}

func (n *Normalizer) activity(raw models.RawProfileRecord) models.Activity {
	act := models.Activity{
		ResponseRate: DefaultResponseRate,
	}

	if ts := n.firstString(raw, "activity.last_active", "lastActive", "last_active"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			act.LastActive = parsed
		}
	}
	if v := n.firstFloat(raw, "activity.response_rate", "responseRate", "response_rate"); v != nil {
		act.ResponseRate = clampInt(int(*v), 0, 100)
	}
	if v := n.firstFloat(raw, "activity.photo_count", "photoCount", "photo_count"); v != nil {
		act.PhotoCount = clampInt(int(*v), 0, math.MaxInt32)
	}
	if v := n.firstFloat(raw, "activity.message_count", "messageCount", "message_count"); v != nil {
		act.MessageCount = clampInt(int(*v), 0, math.MaxInt32)
	}
	if v := n.firstFloat(raw, "activity.meeting_count", "meetingCount", "meeting_count"); v != nil {
		act.MeetingCount = clampInt(int(*v), 0, math.MaxInt32)
	}

	return act
}

func (n *Normalizer) verification(raw models.RawProfileRecord) models.Verification {
	return models.Verification{
		Verified:       n.flag(raw, "verification.verified", "verified", "isVerified"),
		PhotoVerified:  n.flag(raw, "verification.photo_verified", "photoVerified", "photo_verified"),
		PhoneVerified:  n.flag(raw, "verification.phone_verified", "phoneVerified", "phone_verified"),
		IDVerified:     n.flag(raw, "verification.id_verified", "idVerified", "id_verified"),
		CoupleVerified: n.flag(raw, "verification.couple_verified", "coupleVerified", "couple_verified"),
	}
}

// completeness is the percentage of the fixed checklist that is non-empty.
func (n *Normalizer) completeness(raw models.RawProfileRecord, p *models.UserProfile) int {
	present := 0
	for _, field := range completenessChecklist {
		switch field {
		case "name":
			if p.Name != "" {
				present++
			}
		case "bio":
			if n.firstString(raw, "bio", "about") != "" {
				present++
			}
		case "age":
			if p.Age > 0 {
				present++
			}
		case "gender":
			if p.Gender != "" {
				present++
			}
		case "city":
			if p.Location.City != "" {
				present++
			}
		case "interests":
			if len(p.Interests) > 0 {
				present++
			}
		case "avatar":
			if n.firstString(raw, "avatar", "avatarUrl", "avatar_url", "photoUrl") != "" {
				present++
			}
		case "coordinates":
			if p.Location.Coordinates != nil {
				present++
			}
		}
	}

	return int(math.Round(float64(present) / float64(len(completenessChecklist)) * 100))
}

// firstString returns the first non-empty string among the given paths.
func (n *Normalizer) firstString(raw models.RawProfileRecord, paths ...string) string {
	for _, path := range paths {
		if s, err := n.extract.ExtractString(map[string]any(raw), path); err == nil && s != nil && strings.TrimSpace(*s) != "" {
			return strings.TrimSpace(*s)
		}
	}
	return ""
}

// firstFloat returns the first numeric value among the given paths.
func (n *Normalizer) firstFloat(raw models.RawProfileRecord, paths ...string) *float64 {
	for _, path := range paths {
		if f, err := n.extract.ExtractFloat(map[string]any(raw), path); err == nil && f != nil {
			return f
		}
	}
	return nil
}

func (n *Normalizer) flag(raw models.RawProfileRecord, paths ...string) bool {
	for _, path := range paths {
		if b, err := n.extract.ExtractBool(map[string]any(raw), path); err == nil && b != nil {
			return *b
		}
	}
	return false
}

func (n *Normalizer) tagList(raw models.RawProfileRecord, paths ...string) []string {
	for _, path := range paths {
		value, err := n.extract.Extract(map[string]any(raw), path)
		if err != nil || value == nil {
			continue
		}
		if tags := parseTagList(value); len(tags) > 0 {
			return tags
		}
	}
	return nil
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
