package matching

import "github.com/Ramsey-B/bloom/pkg/models"

// WeightTable is the resolved per-factor weight vector for one scoring call.
// Weights are fractions summing to 1.0. The table is resolved once per call
// from the self profile's importance preferences plus the matching context,
// never recomputed mid-scoring.
type WeightTable struct {
	Personality  float64
	Interests    float64
	Location     float64
	Activity     float64
	Verification float64
}

// contextBias is the deterministic adjustment (in percentage points) a
// matching context applies before normalization:
//
//	casual:     personality -15, location +10, activity +5
//	serious:    personality +15, interests +5, location -10, activity -10
//	friendship: personality +5, interests +10, verification -15
//
// Biased values are floored at 0 and the vector is renormalized.
var contextBias = map[models.MatchingContext]models.ImportanceWeights{
	models.ContextCasual:     {Personality: -15, Location: 10, Activity: 5},
	models.ContextSerious:    {Personality: 15, Interests: 5, Location: -10, Activity: -10},
	models.ContextFriendship: {Personality: 5, Interests: 10, Verification: -15},
}

// ResolveWeights builds the weight table for a scoring call.
func ResolveWeights(importance models.ImportanceWeights, matchingContext models.MatchingContext) WeightTable {
	if isZeroImportance(importance) {
		importance = models.DefaultImportance()
	}

	bias := contextBias[matchingContext]

	personality := floorZero(importance.Personality + bias.Personality)
	interests := floorZero(importance.Interests + bias.Interests)
	location := floorZero(importance.Location + bias.Location)
	activity := floorZero(importance.Activity + bias.Activity)
	verification := floorZero(importance.Verification + bias.Verification)

	total := personality + interests + location + activity + verification
	if total == 0 {
		// a degenerate vector falls back to the defaults, unbiased
		return ResolveWeights(models.DefaultImportance(), models.ContextNone)
	}

	return WeightTable{
		Personality:  float64(personality) / float64(total),
		Interests:    float64(interests) / float64(total),
		Location:     float64(location) / float64(total),
		Activity:     float64(activity) / float64(total),
		Verification: float64(verification) / float64(total),
	}
}

func isZeroImportance(w models.ImportanceWeights) bool {
	return w.Personality == 0 && w.Interests == 0 && w.Location == 0 && w.Activity == 0 && w.Verification == 0
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
