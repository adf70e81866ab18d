package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Extract(t *testing.T) {
	e := New()
	data := map[string]any{
		"name": "Ana",
		"location": map[string]any{
			"city":        "Valencia",
			"coordinates": map[string]any{"lat": 39.47},
		},
		"photos": []any{"a.jpg", "b.jpg"},
	}

	t.Run("simple key", func(t *testing.T) {
		value, err := e.Extract(data, "name")
		require.NoError(t, err)
		assert.Equal(t, "Ana", value)
	})

	t.Run("nested path", func(t *testing.T) {
		value, err := e.Extract(data, "location.coordinates.lat")
		require.NoError(t, err)
		assert.Equal(t, 39.47, value)
	})

	t.Run("array index", func(t *testing.T) {
		value, err := e.Extract(data, "photos[1]")
		require.NoError(t, err)
		assert.Equal(t, "b.jpg", value)
	})

	t.Run("missing segment resolves to nil without error", func(t *testing.T) {
		value, err := e.Extract(data, "location.region.code")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("out of range index resolves to nil", func(t *testing.T) {
		value, err := e.Extract(data, "photos[9]")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("traversing a scalar is an error", func(t *testing.T) {
		_, err := e.Extract(data, "name.first")
		assert.Error(t, err)
	})

	t.Run("empty path returns the input", func(t *testing.T) {
		value, err := e.Extract(data, "")
		require.NoError(t, err)
		assert.Equal(t, data, value)
	})
}

func TestExtractor_ExtractFloat(t *testing.T) {
	e := New()

	t.Run("accepts legacy numeric spellings", func(t *testing.T) {
		for _, data := range []map[string]any{
			{"age": float64(30)},
			{"age": 30},
			{"age": int64(30)},
			{"age": " 30 "},
		} {
			value, err := e.ExtractFloat(data, "age")
			require.NoError(t, err)
			require.NotNil(t, value)
			assert.Equal(t, 30.0, *value)
		}
	})

	t.Run("non-numeric strings resolve to nil", func(t *testing.T) {
		value, err := e.ExtractFloat(map[string]any{"age": "thirty"}, "age")
		require.NoError(t, err)
		assert.Nil(t, value)
	})
}

func TestExtractor_ExtractBool(t *testing.T) {
	e := New()

	t.Run("accepts legacy boolean spellings", func(t *testing.T) {
		for _, data := range []map[string]any{
			{"verified": true},
			{"verified": "true"},
			{"verified": "1"},
			{"verified": float64(1)},
			{"verified": 1},
		} {
			value, err := e.ExtractBool(data, "verified")
			require.NoError(t, err)
			require.NotNil(t, value)
			assert.True(t, *value)
		}
	})

	t.Run("falsy spellings", func(t *testing.T) {
		for _, data := range []map[string]any{
			{"verified": false},
			{"verified": "no"},
			{"verified": float64(0)},
		} {
			value, err := e.ExtractBool(data, "verified")
			require.NoError(t, err)
			require.NotNil(t, value)
			assert.False(t, *value)
		}
	})
}

func TestExtractor_ExtractString(t *testing.T) {
	e := New()

	t.Run("stringifies scalars", func(t *testing.T) {
		tests := map[string]struct {
			data map[string]any
			want string
		}{
			"string": {map[string]any{"v": "x"}, "x"},
			"float":  {map[string]any{"v": 30.5}, "30.5"},
			"int":    {map[string]any{"v": 7}, "7"},
			"bool":   {map[string]any{"v": true}, "true"},
		}

		for name, tc := range tests {
			t.Run(name, func(t *testing.T) {
				value, err := e.ExtractString(tc.data, "v")
				require.NoError(t, err)
				require.NotNil(t, value)
				assert.Equal(t, tc.want, *value)
			})
		}
	})

	t.Run("missing value resolves to nil", func(t *testing.T) {
		value, err := e.ExtractString(map[string]any{}, "v")
		require.NoError(t, err)
		assert.Nil(t, value)
	})
}
