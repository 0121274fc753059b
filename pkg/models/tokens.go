package models

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func getCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warn().Err(err).Msg("could not initialize tokenizer, falling back to character estimate")
			return
		}
		codec = c
	})
	return codec
}

// EstimateTokens counts the tokens of text under the cl100k encoding. When
// the tokenizer is unavailable it falls back to a chars/4 estimate.
func EstimateTokens(text string) int {
	c := getCodec()
	if c == nil {
		return len(text) / 4
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		log.Warn().Err(err).Msg("token encoding failed, falling back to character estimate")
		return len(text) / 4
	}
	return len(ids)
}

// FitsContext reports whether text fits into the model's context window,
// leaving room for the response. Models without a known window are assumed
// to fit.
func FitsContext(m ModelDescriptor, text string) bool {
	if m.ContextWindow <= 0 {
		return true
	}
	budget := int(m.ContextWindow)
	if m.OutputTokenLimit > 0 {
		budget -= int(m.OutputTokenLimit)
	}
	return EstimateTokens(text) <= budget
}
