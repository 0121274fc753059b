package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Greater(t, EstimateTokens("hello world, this is a prompt"), 0)
}

func TestFitsContext(t *testing.T) {
	text := "a reasonably short prompt"

	t.Run("unknown window is assumed to fit", func(t *testing.T) {
		assert.True(t, FitsContext(ModelDescriptor{}, text))
	})

	t.Run("large window fits", func(t *testing.T) {
		m := ModelDescriptor{ContextWindow: 8192, OutputTokenLimit: 1024}
		assert.True(t, FitsContext(m, text))
	})

	t.Run("tiny window does not fit", func(t *testing.T) {
		m := ModelDescriptor{ContextWindow: 2}
		assert.False(t, FitsContext(m, text))
	})
}
