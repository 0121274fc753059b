package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/mangiafuoco/pkg/ops"
)

type EventType string

const (
	// EventTypeStart is emitted once when a workflow run begins.
	EventTypeStart EventType = "start"
	// EventTypeStatus carries human-readable progress text (e.g. a reduce
	// step's status message).
	EventTypeStatus EventType = "status"
	// EventTypeResolvedOps announces the merged set of operations that were
	// resolved and registered for the current turn.
	EventTypeResolvedOps EventType = "resolved-ops"
	// EventTypeWarning surfaces degraded-but-continuing conditions such as a
	// template that could not be fully rendered.
	EventTypeWarning EventType = "warning"
	EventTypeError   EventType = "error"
	// EventTypeFinal carries the workflow's answer and is the last event on
	// the stream.
	EventTypeFinal EventType = "final"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata identifies which run and step an event belongs to.
type EventMetadata struct {
	ID    uuid.UUID `json:"message_id"`
	RunID string    `json:"run_id,omitempty"`
	Step  string    `json:"step,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.RunID != "" {
		e.Str("run_id", em.RunID)
	}
	if em.Step != "" {
		e.Str("step", em.Step)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// raw JSON is kept when the event was deserialized with NewEventFromJson
	payload []byte
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

var _ Event = &EventImpl{}

type EventStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
	}
}

type EventStatus struct {
	EventImpl
	StatusMessage string `json:"statusMessage"`
}

func NewStatusEvent(metadata EventMetadata, message string) *EventStatus {
	return &EventStatus{
		EventImpl:     EventImpl{Type_: EventTypeStatus, Metadata_: metadata},
		StatusMessage: message,
	}
}

// EventResolvedOps is the state event announcing which operations were
// resolved for this turn. StatusMessage accompanies it so UIs that only
// understand text still have something to show.
type EventResolvedOps struct {
	EventImpl
	ResolvedOps   []ops.Definition `json:"resolvedOps"`
	StatusMessage string           `json:"statusMessage,omitempty"`
}

func NewResolvedOpsEvent(metadata EventMetadata, resolved []ops.Definition) *EventResolvedOps {
	return &EventResolvedOps{
		EventImpl:     EventImpl{Type_: EventTypeResolvedOps, Metadata_: metadata},
		ResolvedOps:   resolved,
		StatusMessage: fmt.Sprintf("Resolved %d operations", len(resolved)),
	}
}

type EventWarning struct {
	EventImpl
	StatusMessage string `json:"statusMessage"`
}

func NewWarningEvent(metadata EventMetadata, message string) *EventWarning {
	return &EventWarning{
		EventImpl:     EventImpl{Type_: EventTypeWarning, Metadata_: metadata},
		StatusMessage: message,
	}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:      text,
	}
}

// NewEventFromJson decodes a serialized event back into its concrete type.
func NewEventFromJson(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	switch hdr.Type {
	case EventTypeStart:
		return decodeEvent[EventStart](b)
	case EventTypeStatus:
		return decodeEvent[EventStatus](b)
	case EventTypeResolvedOps:
		return decodeEvent[EventResolvedOps](b)
	case EventTypeWarning:
		return decodeEvent[EventWarning](b)
	case EventTypeError:
		return decodeEvent[EventError](b)
	case EventTypeFinal:
		return decodeEvent[EventFinal](b)
	default:
		return nil, fmt.Errorf("unknown event type %q", hdr.Type)
	}
}

func decodeEvent[T any, PT interface {
	*T
	Event
}](b []byte) (Event, error) {
	ret := PT(new(T))
	if err := json.Unmarshal(b, ret); err != nil {
		return nil, err
	}
	if impl, ok := any(ret).(interface{ setPayload([]byte) }); ok {
		impl.setPayload(b)
	}
	return ret, nil
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}
