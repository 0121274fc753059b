package events

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mangiafuoco/pkg/helpers"
)

// EventRouter wires an in-process gochannel pub/sub to watermill's message
// router so a caller can consume the progress stream of a workflow run.
type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose() EventRouterOption {
	return func(r *EventRouter) {
		r.logger = helpers.NewWatermill(log.Logger)
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}

	ret.router = router

	return ret, nil
}

func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}

func (e *EventRouter) Close() error {
	err := e.Publisher.Close()
	if err != nil {
		log.Error().Err(err).Msg("failed to close pubsub")
		// not returning just yet, the router still needs closing
	}

	err = e.router.Close()
	if err != nil {
		log.Error().Err(err).Msg("failed to close router")
	}

	return nil
}

// PrinterFunc returns a handler that writes a human-readable rendition of
// each event to w. Useful for CLI frontends.
func PrinterFunc(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("payload", string(msg.Payload)).Msg("could not parse event")
			return nil
		}

		switch ev := e.(type) {
		case *EventStart:
			_, err = fmt.Fprintln(w, "workflow started")
		case *EventStatus:
			_, err = fmt.Fprintln(w, ev.StatusMessage)
		case *EventResolvedOps:
			names := make([]string, 0, len(ev.ResolvedOps))
			for _, op := range ev.ResolvedOps {
				names = append(names, op.Name)
			}
			_, err = fmt.Fprintf(w, "resolved ops: %s\n", strings.Join(names, ", "))
		case *EventWarning:
			_, err = fmt.Fprintf(w, "warning: %s\n", ev.StatusMessage)
		case *EventError:
			_, err = fmt.Fprintf(w, "error: %s\n", ev.ErrorString)
		case *EventFinal:
			_, err = fmt.Fprintln(w, ev.Text)
		}

		return err
	}
}
