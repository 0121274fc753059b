package tasks

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mangiafuoco/pkg/helpers"
)

// ErrDispatchFailed signals that the queue publish itself could not be
// acknowledged. This is distinct from an execution failure, which happens
// later and out of process; a dispatch failure is the caller's only chance
// to know the task was never scheduled.
var ErrDispatchFailed = errors.New("task dispatch failed")

// Receipt acknowledges that a task was handed to the queue.
type Receipt struct {
	MessageID string
	Topic     string
}

// Dispatcher hands tasks to a durable queue for out-of-band execution. It
// does not retry; retry policy belongs to the caller or the
// infrastructure.
type Dispatcher struct {
	publisher message.Publisher
	topic     string
}

func NewDispatcher(publisher message.Publisher, topic string) *Dispatcher {
	return &Dispatcher{
		publisher: helpers.CorrelationPublisherDecorator{Publisher: publisher},
		topic:     topic,
	}
}

// Dispatch serializes the task and publishes it. The enqueueing request
// completes without waiting for execution; the result later lands at the
// task's ResultKey.
func (d *Dispatcher) Dispatch(ctx context.Context, task *Task) (*Receipt, error) {
	b, err := json.Marshal(task)
	if err != nil {
		return nil, errors.Wrap(ErrDispatchFailed, err.Error())
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.SetContext(ctx)

	if err := d.publisher.Publish(d.topic, msg); err != nil {
		return nil, errors.Wrap(ErrDispatchFailed, err.Error())
	}

	log.Debug().Str("topic", d.topic).Str("request_id", task.RequestID()).Msg("task dispatched")

	return &Receipt{MessageID: msg.UUID, Topic: d.topic}, nil
}
