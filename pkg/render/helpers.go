package render

import (
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/mangiafuoco/pkg/chat"
)

// TimestampLayout is the fixed machine-sortable format exposed to
// templates.
const TimestampLayout = "2006-01-02T15:04:05Z07:00"

// Helpers is the fixed set of context lookups a template may invoke. One
// method per helper; extending the template surface means adding a method
// here rather than registering string-keyed functions at render time.
type Helpers interface {
	// AllDataSources spans prior conversation turns plus the current turn.
	AllDataSources() []chat.DataSource
	// ConversationDataSources covers prior turns only.
	ConversationDataSources() []chat.DataSource
	// CurrentDataSources covers the current turn only.
	CurrentDataSources() []chat.DataSource
	AssistantName() string
	UserID() string
	Now() time.Time
	BaseURL() string
}

// StaticHelpers is a plain-struct Helpers implementation, handy for tests
// and for callers that assemble the context up front.
type StaticHelpers struct {
	Conversation []chat.DataSource
	Current      []chat.DataSource
	Assistant    string
	User         string
	URL          string
	// Clock overrides time.Now when set, for deterministic renders.
	Clock func() time.Time
}

func (s *StaticHelpers) AllDataSources() []chat.DataSource {
	ret := make([]chat.DataSource, 0, len(s.Conversation)+len(s.Current))
	ret = append(ret, s.Conversation...)
	ret = append(ret, s.Current...)
	return ret
}

func (s *StaticHelpers) ConversationDataSources() []chat.DataSource {
	return s.Conversation
}

func (s *StaticHelpers) CurrentDataSources() []chat.DataSource {
	return s.Current
}

func (s *StaticHelpers) AssistantName() string {
	return s.Assistant
}

func (s *StaticHelpers) UserID() string {
	return s.User
}

func (s *StaticHelpers) Now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *StaticHelpers) BaseURL() string {
	return s.URL
}

var _ Helpers = &StaticHelpers{}

// Dump renders an arbitrary structured value as YAML for prompt splicing.
func Dump(v interface{}) string {
	b, err := yaml.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("could not dump value")
		return ""
	}
	return string(b)
}
