// Package amqp publishes and consumes ledger events on a durable direct
// exchange. Events are advisory: the ledger is the source of truth, and the
// worker's periodic sweep recovers anything a lost message would have missed.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/zivstay/Homis-sub000/internal/core"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key matches the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) PublishObligationCreated(ctx context.Context, o core.DebtObligation) error {
	return c.publish(ctx, &LedgerEvent{
		Kind:         KindObligationCreated,
		ObligationID: o.ID,
		BoardID:      o.BoardID,
		DebtorID:     o.DebtorID,
		CreditorID:   o.CreditorID,
		AmountCents:  o.Original.Cents,
		Timestamp:    time.Now().UTC(),
	})
}

func (c *Client) PublishObligationSettled(ctx context.Context, o core.DebtObligation) error {
	return c.publish(ctx, &LedgerEvent{
		Kind:         KindObligationSettled,
		ObligationID: o.ID,
		BoardID:      o.BoardID,
		DebtorID:     o.DebtorID,
		CreditorID:   o.CreditorID,
		AmountCents:  o.Original.Cents,
		Timestamp:    time.Now().UTC(),
	})
}

func (c *Client) PublishPairNetted(ctx context.Context, boardID, userA, userB string, netCents int64) error {
	return c.publish(ctx, &LedgerEvent{
		Kind:       KindPairNetted,
		BoardID:    boardID,
		DebtorID:   userA,
		CreditorID: userB,
		NetCents:   netCents,
		Timestamp:  time.Now().UTC(),
	})
}

func (c *Client) publish(ctx context.Context, event *LedgerEvent) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	slog.DebugContext(ctx, "Published ledger event",
		"kind", event.Kind,
		"obligation_id", event.ObligationID,
		"exchange", c.exchangeName)

	return nil
}

// ConsumeEvents delivers ledger events to the handler with manual acks. A
// handler error nacks with requeue; a malformed body is dropped.
func (c *Client) ConsumeEvents(ctx context.Context, handler func(context.Context, *LedgerEvent) error) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming ledger events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			event, err := LedgerEventFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal ledger event", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, event); err != nil {
				slog.ErrorContext(ctx, "Failed to handle ledger event",
					"kind", event.Kind,
					"obligation_id", event.ObligationID,
					"error", err)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
