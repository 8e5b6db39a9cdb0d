package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DialTimeout bounds connecting to the broker when publishing.
const DialTimeout = 5 * time.Second

// Publish sends payload as a persistent JSON message to queueName on the
// default exchange, declaring the queue (durable) first. A connection is
// dialed per call; publishers here send a handful of messages per minute.
func Publish(ctx context.Context, url, queueName, msgType, messageID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(DialTimeout),
	})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // store on disk
			Type:         msgType,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// PublishReindex asks every server consuming queueName to rebuild.
func PublishReindex(ctx context.Context, url, queueName, reason string) error {
	req := ReindexRequest{Reason: reason, RequestedAt: time.Now().UTC()}
	return Publish(ctx, url, queueName, "reindex", "", req)
}
