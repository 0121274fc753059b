package models

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ModelDescriptor describes one billable model from the upstream catalog.
// Numeric fields are zero when the upstream did not supply a usable value
// (see NormalizeModelFields).
type ModelDescriptor struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name,omitempty"`
	Provider                string  `json:"provider,omitempty"`
	ContextWindow           float64 `json:"inputContextWindow,omitempty"`
	OutputTokenLimit        float64 `json:"outputTokenLimit,omitempty"`
	InputTokenCost          float64 `json:"inputTokenCost,omitempty"`
	OutputTokenCost         float64 `json:"outputTokenCost,omitempty"`
	CachedTokenCost         float64 `json:"cachedTokenCost,omitempty"`
	SupportsImages          bool    `json:"supportsImages,omitempty"`
	SupportsDocumentCaching bool    `json:"supportsDocumentCaching,omitempty"`
}

// Catalog is the set of models visible to one caller, plus tier pointers
// into it. Tier accessors never return an undefined model as long as
// Default resolves.
type Catalog struct {
	Models          map[string]ModelDescriptor `json:"models"`
	Default         string                     `json:"default,omitempty"`
	Advanced        string                     `json:"advanced,omitempty"`
	Cheapest        string                     `json:"cheapest,omitempty"`
	DocumentCaching string                     `json:"documentCaching,omitempty"`
}

// CatalogFetcher retrieves the caller-visible model catalog. Implementations
// must route raw payloads through NormalizeCatalog (or ParseCatalog) before
// typing them, and must degrade to an empty catalog on transport or
// decoding failures; an empty catalog means "no models available", not a
// crash.
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context, accessToken string) (Catalog, error)
}

var ErrNoModelAvailable = errors.New("no model available")

// numericModelFields are the descriptor fields the upstream source is known
// to deliver as strings on occasion.
var numericModelFields = []string{
	"inputContextWindow",
	"outputTokenLimit",
	"inputTokenCost",
	"outputTokenCost",
	"cachedTokenCost",
}

// CoerceNumber converts a numeral-as-text into a float64. Values that are
// already numeric pass through; anything else reports ok=false.
func CoerceNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// NormalizeModelFields coerces numeric-looking string fields of one raw
// model entry in place. Non-numeric strings are left unmodified.
func NormalizeModelFields(model map[string]interface{}) {
	for _, field := range numericModelFields {
		v, ok := model[field]
		if !ok {
			continue
		}
		if _, isString := v.(string); !isString {
			continue
		}
		f, ok := CoerceNumber(v)
		if !ok {
			log.Debug().Str("field", field).Interface("value", v).Msg("leaving non-numeric model field untouched")
			continue
		}
		model[field] = f
	}
}

// NormalizeCatalog walks every model entry of a raw catalog payload and
// coerces its numeric fields. The payload is modified in place.
func NormalizeCatalog(raw map[string]interface{}) {
	ms, ok := raw["models"].(map[string]interface{})
	if !ok {
		return
	}
	for _, m := range ms {
		if model, ok := m.(map[string]interface{}); ok {
			NormalizeModelFields(model)
		}
	}
}

func (c Catalog) lookup(id string) (ModelDescriptor, bool) {
	if id == "" {
		return ModelDescriptor{}, false
	}
	m, ok := c.Models[id]
	return m, ok
}

// DefaultModel returns the default-tier model.
func (c Catalog) DefaultModel() (ModelDescriptor, bool) {
	return c.lookup(c.Default)
}

// AdvancedModel returns the advanced-tier model, falling back to the
// default tier.
func (c Catalog) AdvancedModel() (ModelDescriptor, bool) {
	if m, ok := c.lookup(c.Advanced); ok {
		return m, true
	}
	return c.DefaultModel()
}

// CheapestModel returns the cheapest-tier model, falling back to the
// default tier.
func (c Catalog) CheapestModel() (ModelDescriptor, bool) {
	if m, ok := c.lookup(c.Cheapest); ok {
		return m, true
	}
	return c.DefaultModel()
}

// DocumentCachingModel returns the caching-capable model, falling back to
// the cheapest tier and from there to the default tier.
func (c Catalog) DocumentCachingModel() (ModelDescriptor, bool) {
	if m, ok := c.lookup(c.DocumentCaching); ok {
		return m, true
	}
	return c.CheapestModel()
}
