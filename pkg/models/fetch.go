package models

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ParseCatalog decodes a raw catalog payload into a typed Catalog. The
// payload is routed through NormalizeCatalog first, so numeric descriptor
// fields delivered as strings still end up typed.
func ParseCatalog(data []byte) (Catalog, error) {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Catalog{}, errors.Wrap(err, "could not decode catalog payload")
	}
	NormalizeCatalog(raw)
	normalized, err := json.Marshal(raw)
	if err != nil {
		return Catalog{}, errors.Wrap(err, "could not re-encode catalog payload")
	}
	catalog := Catalog{}
	if err := json.Unmarshal(normalized, &catalog); err != nil {
		return Catalog{}, errors.Wrap(err, "could not decode catalog")
	}
	return catalog, nil
}

// FileCatalogFetcher serves the catalog from a local JSON file, ignoring
// the access token. Per the CatalogFetcher contract a missing or malformed
// file degrades to an empty catalog.
type FileCatalogFetcher struct {
	Path string
}

var _ CatalogFetcher = (*FileCatalogFetcher)(nil)

func (f *FileCatalogFetcher) FetchCatalog(_ context.Context, _ string) (Catalog, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", f.Path).Msg("could not read catalog file")
		return Catalog{}, nil
	}
	catalog, err := ParseCatalog(data)
	if err != nil {
		log.Warn().Err(err).Str("path", f.Path).Msg("could not parse catalog file")
		return Catalog{}, nil
	}
	return catalog, nil
}
