package render

import (
	"strings"
)

// The capability-injection syntax is a small pre-processing pass over the
// raw template text, handled by a dedicated scanner before the remainder is
// delegated to text/template:
//
//	{{ops TAG[:FORMAT][ noAdd]}}
//
// TAG names a capability group, FORMAT selects an output shape, and a
// trailing noAdd means "format but do not register as invokable".

// TagRef is one parsed ops reference.
type TagRef struct {
	Tag    string
	Format string
	NoAdd  bool
	// Quoted is true when the tag argument already carries quotes, i.e. the
	// template has been rewritten before.
	Quoted bool
	Start  int
	End    int
}

// Key returns the (tag, format) cache key used for pre-formatted output.
func (t TagRef) Key() string {
	if t.Format == "" {
		return t.Tag
	}
	return t.Tag + ":" + t.Format
}

type actionBlock struct {
	start, end int // offsets of "{{" and one past "}}"
	inner      string
}

// scanActions finds every {{...}} action in the template. Quoted strings
// inside an action may contain braces, so the scanner tracks quoting.
func scanActions(text string) []actionBlock {
	blocks := []actionBlock{}
	i := 0
	for {
		start := strings.Index(text[i:], "{{")
		if start < 0 {
			break
		}
		start += i

		j := start + 2
		inQuote := byte(0)
		end := -1
		for j < len(text) {
			c := text[j]
			if inQuote != 0 {
				if c == '\\' && inQuote == '"' {
					j += 2
					continue
				}
				if c == inQuote {
					inQuote = 0
				}
			} else {
				if c == '"' || c == '`' {
					inQuote = c
				} else if c == '}' && j+1 < len(text) && text[j+1] == '}' {
					end = j + 2
					break
				}
			}
			j++
		}
		if end < 0 {
			break
		}

		inner := text[start+2 : end-2]
		// strip trim markers
		inner = strings.TrimSpace(inner)
		inner = strings.TrimPrefix(inner, "-")
		inner = strings.TrimSuffix(inner, "-")
		inner = strings.TrimSpace(inner)

		blocks = append(blocks, actionBlock{start: start, end: end, inner: inner})
		i = end
	}
	return blocks
}

// actionFields splits an action body into tokens, keeping quoted strings
// intact (with their quotes).
func actionFields(inner string) []string {
	fields := []string{}
	i := 0
	for i < len(inner) {
		c := inner[i]
		if c == ' ' || c == '\t' || c == '\n' {
			i++
			continue
		}
		if c == '"' || c == '`' {
			j := i + 1
			for j < len(inner) {
				if inner[j] == '\\' && c == '"' {
					j += 2
					continue
				}
				if inner[j] == c {
					j++
					break
				}
				j++
			}
			fields = append(fields, inner[i:j])
			i = j
			continue
		}
		j := i
		for j < len(inner) && inner[j] != ' ' && inner[j] != '\t' && inner[j] != '\n' {
			j++
		}
		fields = append(fields, inner[i:j])
		i = j
	}
	return fields
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '`') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return s, false
}

// ParseOpsTags extracts every ops reference from the template text.
func ParseOpsTags(text string) []TagRef {
	refs := []TagRef{}
	for _, b := range scanActions(text) {
		fields := actionFields(b.inner)
		if len(fields) < 2 || fields[0] != "ops" {
			continue
		}

		arg, quoted := unquote(fields[1])
		ref := TagRef{Quoted: quoted, Start: b.start, End: b.end}
		if idx := strings.Index(arg, ":"); idx >= 0 {
			ref.Tag = arg[:idx]
			ref.Format = arg[idx+1:]
		} else {
			ref.Tag = arg
		}

		for _, f := range fields[2:] {
			f, _ = unquote(f)
			if f == "noAdd" {
				ref.NoAdd = true
			}
		}

		refs = append(refs, ref)
	}
	return refs
}

// RewriteOpsTags rewrites bare ops references into quoted ones so the text
// parses as a regular template function call. Already-quoted references are
// left untouched, which makes the rewrite idempotent.
func RewriteOpsTags(text string) string {
	refs := ParseOpsTags(text)
	if len(refs) == 0 {
		return text
	}

	sb := &strings.Builder{}
	last := 0
	for _, ref := range refs {
		sb.WriteString(text[last:ref.Start])
		if ref.Quoted {
			sb.WriteString(text[ref.Start:ref.End])
		} else {
			sb.WriteString(`{{ops "` + ref.Key() + `"`)
			if ref.NoAdd {
				sb.WriteString(` "noAdd"`)
			}
			sb.WriteString(`}}`)
		}
		last = ref.End
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// template keywords and builtins that are not functions we register
var templateBuiltins = map[string]bool{
	"if": true, "else": true, "end": true, "range": true, "with": true,
	"define": true, "template": true, "block": true, "break": true,
	"continue": true, "nil": true, "true": true, "false": true,
	"not": true, "and": true, "or": true, "len": true, "index": true,
	"slice": true, "print": true, "printf": true, "println": true,
	"html": true, "js": true, "urlquery": true, "call": true,
	"eq": true, "ne": true, "lt": true, "le": true, "gt": true, "ge": true,
}

// BlankUnknownActions replaces actions that reference a function we do not
// know about with empty text, so an unrecognized tag degrades silently
// instead of failing the whole render.
func BlankUnknownActions(text string, isKnown func(name string) bool) string {
	blocks := scanActions(text)
	if len(blocks) == 0 {
		return text
	}

	sb := &strings.Builder{}
	last := 0
	for _, b := range blocks {
		keep := true
		fields := actionFields(b.inner)
		if len(fields) > 0 {
			name := fields[0]
			switch {
			case name == "" || strings.HasPrefix(name, "/*"):
				// comment
			case name[0] == '.' || name[0] == '$' || name[0] == '(' || name[0] == '"' || name[0] == '`':
				// field, variable, pipeline or literal
			case name[0] >= '0' && name[0] <= '9':
				// numeric literal
			case templateBuiltins[name]:
			case isKnown(name):
			default:
				keep = false
			}
		}

		sb.WriteString(text[last:b.start])
		if keep {
			sb.WriteString(text[b.start:b.end])
		}
		last = b.end
	}
	sb.WriteString(text[last:])
	return sb.String()
}
