package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/rs/zerolog/log"
)

// Definition describes one remotely registered operation that can be spliced
// into a prompt and, unless fetched with noAdd, offered to the model as
// invokable for the current turn.
type Definition struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Method      string            `json:"method,omitempty"`
	URL         string            `json:"url,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Parameters  []Parameter       `json:"parameters,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Fetcher retrieves the operations registered under a tag. Implementations
// talk to the operation registry; this package never does any transport
// itself.
type Fetcher interface {
	GetOperationsByTag(ctx context.Context, accessToken string, tag string) ([]Definition, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, accessToken string, tag string) ([]Definition, error)

func (f FetcherFunc) GetOperationsByTag(ctx context.Context, accessToken string, tag string) ([]Definition, error) {
	return f(ctx, accessToken, tag)
}

const (
	FormatDefault = ""
	FormatJSON    = "json"
	FormatTable   = "table"
)

// Format renders a list of operations as text for prompt splicing. Unknown
// format names fall back to the default bulleted shape.
func Format(defs []Definition, format string) string {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(defs, "", "  ")
		if err != nil {
			log.Warn().Err(err).Msg("failed to marshal operations, falling back to default format")
			return formatBullets(defs)
		}
		return string(b)
	case FormatTable:
		return formatTable(defs)
	default:
		return formatBullets(defs)
	}
}

func formatBullets(defs []Definition) string {
	sb := &strings.Builder{}
	for _, d := range defs {
		_, _ = fmt.Fprintf(sb, "- %s: %s\n", strcase.ToSnake(d.Name), d.Description)
		for _, p := range d.Parameters {
			required := ""
			if p.Required {
				required = " (required)"
			}
			_, _ = fmt.Fprintf(sb, "  - %s%s: %s\n", strcase.ToSnake(p.Name), required, p.Description)
		}
	}
	return sb.String()
}

func formatTable(defs []Definition) string {
	sb := &strings.Builder{}
	sb.WriteString("| Operation | Description |\n|---|---|\n")
	for _, d := range defs {
		_, _ = fmt.Fprintf(sb, "| %s | %s |\n", strcase.ToSnake(d.Name), d.Description)
	}
	return sb.String()
}

// Merge combines operation lists, deduplicating by ID (falling back to Name
// when the ID is empty). Order of first appearance wins.
func Merge(lists ...[]Definition) []Definition {
	seen := map[string]bool{}
	ret := []Definition{}
	for _, list := range lists {
		for _, d := range list {
			key := d.ID
			if key == "" {
				key = d.Name
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			ret = append(ret, d)
		}
	}
	return ret
}
