package queue

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type HandlerFunc func(ctx context.Context, body []byte) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the message is dead-lettered at
// once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// ConsumeWithRetry republishes failed deliveries with an x-retry-count header
// until maxRetries, then nacks them without requeue so the queue's
// dead-letter exchange takes over. It returns when ctx is done or the
// channel closes.
func (c *Client) ConsumeWithRetry(ctx context.Context, queue string, handler HandlerFunc, maxRetries int, retryDelay time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	msgs, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		var msg amqp.Delivery
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok = <-msgs:
			if !ok {
				return errors.New("consumer closed")
			}
		}

		err := handler(ctx, msg.Body)
		if err == nil {
			_ = msg.Ack(false)
			continue
		}

		retryCount := getRetryCount(msg.Headers)
		if IsPermanent(err) || retryCount >= maxRetries {
			logger.Warn("message dead-lettered",
				zap.String("queue", queue),
				zap.String("messageId", msg.MessageId),
				zap.Int("retries", retryCount),
				zap.Error(err),
			)
			_ = msg.Nack(false, false)
			continue
		}

		headers := amqp.Table{}
		for k, v := range msg.Headers {
			headers[k] = v
		}
		headers["x-retry-count"] = int32(retryCount + 1)

		logger.Info("message retry scheduled",
			zap.String("queue", queue),
			zap.String("messageId", msg.MessageId),
			zap.Int("attempt", retryCount+1),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			_ = msg.Nack(false, true)
			return ctx.Err()
		case <-time.After(retryDelay):
		}

		if err := c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.MessageId,
			Body:         msg.Body,
			Headers:      headers,
			Timestamp:    time.Now(),
		}); err != nil {
			_ = msg.Nack(false, true)
			continue
		}
		_ = msg.Ack(false)
	}
}

func getRetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	if v, ok := headers["x-retry-count"]; ok {
		switch t := v.(type) {
		case int32:
			return int(t)
		case int64:
			return int(t)
		case int:
			return t
		}
	}
	return 0
}
