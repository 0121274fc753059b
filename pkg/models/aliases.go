package models

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// AliasInfo describes one human-friendly model alias.
type AliasInfo struct {
	ResolvesTo  string `yaml:"resolves_to" json:"resolves_to"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	Tier        string `yaml:"tier,omitempty" json:"tier,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// AliasTable is the versioned alias -> model-id mapping, loaded once at
// startup and immutable afterwards.
type AliasTable struct {
	Version string               `yaml:"version,omitempty"`
	Aliases map[string]AliasInfo `yaml:"aliases"`
}

var ErrMissingAliasesKey = errors.New("alias resource is missing the top-level aliases mapping")

// LoadAliasTable reads the alias resource from disk. A schema violation
// (missing top-level aliases mapping) is a load error.
func LoadAliasTable(path string) (*AliasTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read alias resource %s", path)
	}
	return ParseAliasTable(b)
}

func ParseAliasTable(b []byte) (*AliasTable, error) {
	table := &AliasTable{}
	if err := yaml.Unmarshal(b, table); err != nil {
		return nil, errors.Wrap(err, "could not parse alias resource")
	}
	if table.Aliases == nil {
		return nil, ErrMissingAliasesKey
	}
	return table, nil
}

// AliasResolution is the outcome of resolving one identifier. Unknown
// identifiers pass through unchanged with WasAlias=false.
type AliasResolution struct {
	ResolvedID string
	WasAlias   bool
	Info       *AliasInfo
}

// Resolver maps requested model identifiers to concrete billable models.
// It is constructed once at startup; a failed alias load leaves it in
// pass-through mode for the process lifetime, with the error retained for
// diagnostics.
type Resolver struct {
	table   *AliasTable
	loadErr error
}

func NewResolver(table *AliasTable) *Resolver {
	return &Resolver{table: table}
}

// NewResolverFromFile never fails: a load error is recorded, logged, and
// the resolver degrades to pure pass-through.
func NewResolverFromFile(path string) *Resolver {
	table, err := LoadAliasTable(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("alias resolution disabled")
		return &Resolver{loadErr: err}
	}
	return &Resolver{table: table}
}

// ResolveAlias maps an alias to its model id. Resolution never fails and is
// idempotent: resolving an already-resolved id is a pass-through.
func (r *Resolver) ResolveAlias(idOrAlias string) AliasResolution {
	if r.table == nil || idOrAlias == "" {
		return AliasResolution{ResolvedID: idOrAlias}
	}
	info, ok := r.table.Aliases[idOrAlias]
	if !ok {
		return AliasResolution{ResolvedID: idOrAlias}
	}
	infoCopy := info
	return AliasResolution{
		ResolvedID: info.ResolvesTo,
		WasAlias:   true,
		Info:       &infoCopy,
	}
}

func (r *Resolver) IsAlias(idOrAlias string) bool {
	if r.table == nil {
		return false
	}
	_, ok := r.table.Aliases[idOrAlias]
	return ok
}

// GetAllAliases returns the full table, or the recorded load error
// verbatim when loading failed at startup.
func (r *Resolver) GetAllAliases() (map[string]AliasInfo, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.table == nil {
		return map[string]AliasInfo{}, nil
	}
	return r.table.Aliases, nil
}

// ReverseIndex derives the model-id -> aliases mapping on demand.
func (r *Resolver) ReverseIndex() map[string][]string {
	ret := map[string][]string{}
	if r.table == nil {
		return ret
	}
	for alias, info := range r.table.Aliases {
		ret[info.ResolvesTo] = append(ret[info.ResolvesTo], alias)
	}
	return ret
}

// CheapestEquivalent returns the lowest-cost capable model from the
// caller's catalog, used when building background tasks so asynchronous
// work defaults to the cheapest tier unless the caller overrides it.
func (r *Resolver) CheapestEquivalent(catalog Catalog) (ModelDescriptor, error) {
	m, ok := catalog.CheapestModel()
	if !ok {
		return ModelDescriptor{}, ErrNoModelAvailable
	}
	return m, nil
}
