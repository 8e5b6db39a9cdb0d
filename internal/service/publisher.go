package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/cleverdevil/dwell/internal/queue"
)

// Publisher delivers post events. Failures are returned so the caller can
// log them; they never fail the mutation that caused the event.
type Publisher interface {
	Publish(ctx context.Context, ev queue.PostEvent) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.PostEvent) error { return nil }

// AMQPPublisher publishes each event to a durable queue.
type AMQPPublisher struct {
	URL   string
	Queue string
	Log   *zap.Logger
}

func NewAMQPPublisher(url, queueName string, log *zap.Logger) *AMQPPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPPublisher{URL: url, Queue: queueName, Log: log}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.PostEvent) error {
	err := queue.Publish(ctx, p.URL, p.Queue, ev.Type, ev.PostID+":"+ev.Type, ev)
	if err != nil {
		p.Log.Warn("rabbitmq: publish failed", zap.Error(err), zap.String("type", ev.Type))
	}
	return err
}
