package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/bloom/pkg/models"
)

func weightSum(w WeightTable) float64 {
	return w.Personality + w.Interests + w.Location + w.Activity + w.Verification
}

func TestResolveWeights(t *testing.T) {
	t.Run("zero importance resolves to the defaults", func(t *testing.T) {
		weights := ResolveWeights(models.ImportanceWeights{}, models.ContextNone)

		assert.InDelta(t, 0.30, weights.Personality, 0.001)
		assert.InDelta(t, 0.25, weights.Interests, 0.001)
		assert.InDelta(t, 0.20, weights.Location, 0.001)
		assert.InDelta(t, 0.15, weights.Activity, 0.001)
		assert.InDelta(t, 0.10, weights.Verification, 0.001)
	})

	t.Run("weights always sum to 1", func(t *testing.T) {
		vectors := []models.ImportanceWeights{
			{},
			models.DefaultImportance(),
			{Personality: 7, Interests: 3},
			{Verification: 100},
		}
		contexts := []models.MatchingContext{
			models.ContextNone,
			models.ContextCasual,
			models.ContextSerious,
			models.ContextFriendship,
		}

		for _, vector := range vectors {
			for _, matchingContext := range contexts {
				weights := ResolveWeights(vector, matchingContext)
				assert.InDelta(t, 1.0, weightSum(weights), 0.0001)
			}
		}
	})

	t.Run("casual context shifts weight from personality to location", func(t *testing.T) {
		weights := ResolveWeights(models.DefaultImportance(), models.ContextCasual)

		// 15 / 25 / 30 / 20 / 10 after bias, total 110
		assert.InDelta(t, 15.0/110, weights.Personality, 0.001)
		assert.InDelta(t, 25.0/110, weights.Interests, 0.001)
		assert.InDelta(t, 30.0/110, weights.Location, 0.001)
		assert.InDelta(t, 20.0/110, weights.Activity, 0.001)
		assert.InDelta(t, 10.0/110, weights.Verification, 0.001)
	})

	t.Run("negative bias floors at zero before renormalizing", func(t *testing.T) {
		weights := ResolveWeights(models.ImportanceWeights{Personality: 10, Location: 5}, models.ContextSerious)

		// personality 25, interests 5, everything else floored to 0
		assert.InDelta(t, 25.0/30, weights.Personality, 0.001)
		assert.InDelta(t, 5.0/30, weights.Interests, 0.001)
		assert.Zero(t, weights.Location)
		assert.Zero(t, weights.Activity)
		assert.Zero(t, weights.Verification)
	})

	t.Run("degenerate vector falls back to unbiased defaults", func(t *testing.T) {
		weights := ResolveWeights(models.ImportanceWeights{Personality: -50}, models.ContextNone)

		assert.Equal(t, ResolveWeights(models.DefaultImportance(), models.ContextNone), weights)
	})

	t.Run("unknown context applies no bias", func(t *testing.T) {
		weights := ResolveWeights(models.DefaultImportance(), models.MatchingContext("speed-dating"))

		assert.Equal(t, ResolveWeights(models.DefaultImportance(), models.ContextNone), weights)
	})
}
