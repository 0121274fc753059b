package chat

import (
	"github.com/huandu/go-clone"
)

// DataSource identifies one document/chunk a task runs against. Metadata is
// free-form (mime type, byte size, chunk offsets, ...).
type DataSource struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name,omitempty"`
	Type     string                 `json:"type,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Well-known keys in the Options bag.
const (
	OptionRequestID = "requestId"
	OptionModel     = "model"
	OptionSkipRAG   = "skipRag"
)

// Body carries one chat request. Pointer fields distinguish "unset" from
// zero so bodies can be overlaid onto defaults with last-write-wins
// semantics (see Merge).
type Body struct {
	Model       string                 `json:"model,omitempty"`
	Temperature *float64               `json:"temperature,omitempty"`
	MaxTokens   *int                   `json:"max_tokens,omitempty"`
	Stream      *bool                  `json:"stream,omitempty"`
	Messages    []Message              `json:"messages,omitempty"`
	DataSources []DataSource           `json:"dataSources,omitempty"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

func (b *Body) Clone() *Body {
	return clone.Clone(b).(*Body)
}

// LastMessageContent returns the content of the last message, or "". The
// caller's last message is what becomes the task description.
func (b *Body) LastMessageContent() string {
	if len(b.Messages) == 0 {
		return ""
	}
	return b.Messages[len(b.Messages)-1].Content
}

// Merge overlays src onto dst field by field; set fields in src win. The
// Options bags are merged shallowly, src keys winning. dst is modified in
// place and returned.
func Merge(dst *Body, src *Body) *Body {
	if src == nil {
		return dst
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Temperature != nil {
		dst.Temperature = src.Temperature
	}
	if src.MaxTokens != nil {
		dst.MaxTokens = src.MaxTokens
	}
	if src.Stream != nil {
		dst.Stream = src.Stream
	}
	if src.Messages != nil {
		dst.Messages = src.Messages
	}
	if src.DataSources != nil {
		dst.DataSources = src.DataSources
	}
	dst.Options = MergeOptions(dst.Options, src.Options)
	return dst
}

// MergeOptions does a shallow last-write-wins merge of two option bags.
func MergeOptions(dst map[string]interface{}, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
