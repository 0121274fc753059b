package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceNumber(t *testing.T) {
	testCases := []struct {
		name     string
		input    interface{}
		expected float64
		ok       bool
	}{
		{"float", 128000.0, 128000, true},
		{"int", 42, 42, true},
		{"numeric string", "128000", 128000, true},
		{"decimal string", "0.0025", 0.0025, true},
		{"non-numeric string", "a lot", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, ok := CoerceNumber(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, f)
			}
		})
	}
}

func TestNormalizeModelFields(t *testing.T) {
	model := map[string]interface{}{
		"id":                 "test-model",
		"inputContextWindow": "128000",
		"inputTokenCost":     "0.0025",
		"outputTokenLimit":   4096.0,
		"outputTokenCost":    "not a number",
	}

	NormalizeModelFields(model)

	assert.Equal(t, 128000.0, model["inputContextWindow"])
	assert.Equal(t, 0.0025, model["inputTokenCost"])
	assert.Equal(t, 4096.0, model["outputTokenLimit"])
	// non-numeric strings are left untouched
	assert.Equal(t, "not a number", model["outputTokenCost"])
	assert.Equal(t, "test-model", model["id"])
}

func TestNormalizeCatalog(t *testing.T) {
	raw := map[string]interface{}{
		"default": "m1",
		"models": map[string]interface{}{
			"m1": map[string]interface{}{
				"id":                 "m1",
				"inputContextWindow": "8192",
			},
		},
	}

	NormalizeCatalog(raw)

	m1 := raw["models"].(map[string]interface{})["m1"].(map[string]interface{})
	assert.Equal(t, 8192.0, m1["inputContextWindow"])
}

func newTestCatalog() Catalog {
	return Catalog{
		Models: map[string]ModelDescriptor{
			"default-model":  {ID: "default-model"},
			"advanced-model": {ID: "advanced-model"},
			"cheap-model":    {ID: "cheap-model"},
			"caching-model":  {ID: "caching-model", SupportsDocumentCaching: true},
		},
		Default: "default-model",
	}
}

func TestTierFallbacks(t *testing.T) {
	t.Run("all tiers fall back to default when unset", func(t *testing.T) {
		c := newTestCatalog()

		m, ok := c.AdvancedModel()
		require.True(t, ok)
		assert.Equal(t, "default-model", m.ID)

		m, ok = c.CheapestModel()
		require.True(t, ok)
		assert.Equal(t, "default-model", m.ID)

		m, ok = c.DocumentCachingModel()
		require.True(t, ok)
		assert.Equal(t, "default-model", m.ID)
	})

	t.Run("document caching falls back to cheapest first", func(t *testing.T) {
		c := newTestCatalog()
		c.Cheapest = "cheap-model"

		m, ok := c.DocumentCachingModel()
		require.True(t, ok)
		assert.Equal(t, "cheap-model", m.ID)
	})

	t.Run("set tiers resolve directly", func(t *testing.T) {
		c := newTestCatalog()
		c.Advanced = "advanced-model"
		c.Cheapest = "cheap-model"
		c.DocumentCaching = "caching-model"

		m, _ := c.AdvancedModel()
		assert.Equal(t, "advanced-model", m.ID)
		m, _ = c.CheapestModel()
		assert.Equal(t, "cheap-model", m.ID)
		m, _ = c.DocumentCachingModel()
		assert.Equal(t, "caching-model", m.ID)
	})

	t.Run("dangling tier pointer falls back to default", func(t *testing.T) {
		c := newTestCatalog()
		c.Advanced = "no-such-model"

		m, ok := c.AdvancedModel()
		require.True(t, ok)
		assert.Equal(t, "default-model", m.ID)
	})

	t.Run("empty catalog has no models", func(t *testing.T) {
		c := Catalog{}

		_, ok := c.DefaultModel()
		assert.False(t, ok)
		_, ok = c.CheapestModel()
		assert.False(t, ok)
	})
}
