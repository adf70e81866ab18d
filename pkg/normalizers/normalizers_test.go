package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTag(t *testing.T) {
	assert.Equal(t, "rock climbing", NormalizeTag("  Rock   Climbing "))
	assert.Equal(t, "jazz", NormalizeTag("JAZZ"))
	assert.Equal(t, "", NormalizeTag("   "))
}

func TestNormalizeCity(t *testing.T) {
	assert.Equal(t, "st louis", NormalizeCity("St. Louis"))
	assert.Equal(t, "sansebastian", NormalizeCity("San-Sebastian"))
	assert.Equal(t, NormalizeCity("VALENCIA"), NormalizeCity("valencia"))
}

func TestNormalizeTags(t *testing.T) {
	t.Run("collapses duplicates preserving first appearance", func(t *testing.T) {
		assert.Equal(t, []string{"jazz", "hiking"}, NormalizeTags([]string{"Jazz", "hiking", " jazz "}))
	})

	t.Run("drops empty tags", func(t *testing.T) {
		assert.Equal(t, []string{"jazz"}, NormalizeTags([]string{"", "  ", "jazz"}))
	})

	t.Run("empty input yields an empty non-nil list", func(t *testing.T) {
		assert.NotNil(t, NormalizeTags(nil))
		assert.Empty(t, NormalizeTags(nil))
	})
}

func TestRegistry(t *testing.T) {
	t.Run("built-ins are registered", func(t *testing.T) {
		for _, name := range []string{"lowercase", "trim", "collapse_whitespace", "ntag", "ncity", "ngender"} {
			_, ok := Get(name)
			assert.True(t, ok, name)
		}
	})

	t.Run("apply with an unknown normalizer is the identity", func(t *testing.T) {
		assert.Equal(t, " X ", Apply(" X ", "does-not-exist"))
	})

	t.Run("apply runs the named normalizer", func(t *testing.T) {
		assert.Equal(t, "x y", Apply(" X  Y ", "ntag"))
	})
}
