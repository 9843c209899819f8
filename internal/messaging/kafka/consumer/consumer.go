package consumer

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 500 * time.Millisecond
)

// MessageReader is the part of *kafkago.Reader a consumer loop needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// MessageHandler processes one message. Returning an error wrapped with
// Permanent commits the message without retrying.
type MessageHandler interface {
	Handle(ctx context.Context, msg kafkago.Message) error
}

type HandlerFunc func(ctx context.Context, msg kafkago.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg kafkago.Message) error {
	return f(ctx, msg)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying (bad payload, unknown ids).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type Options struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Run fetches messages until ctx ends. Transient handler errors are retried
// with linear backoff; after the last attempt the message is committed and
// logged so one bad record cannot stall the partition.
func Run(ctx context.Context, name string, reader MessageReader, handler MessageHandler, logger *zap.Logger, opts Options) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	log := logger.Named("kafka.consumer." + name)
	log.Info("consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped")
				return
			}
			log.Error("fetch message failed", zap.Error(err))
			continue
		}

		if !handleWithRetry(ctx, handler, msg, log, opts) && ctx.Err() != nil {
			log.Info("consumer stopped")
			return
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message failed",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

// handleWithRetry reports whether the handler eventually succeeded.
func handleWithRetry(ctx context.Context, handler MessageHandler, msg kafkago.Message, log *zap.Logger, opts Options) bool {
	for attempt := 1; ; attempt++ {
		err := handler.Handle(ctx, msg)
		if err == nil {
			return true
		}

		fields := []zap.Field{
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		}
		if IsPermanent(err) {
			log.Warn("message rejected, skipping", fields...)
			return false
		}
		if attempt >= opts.MaxAttempts {
			log.Error("message failed after retries, skipping", fields...)
			return false
		}
		log.Warn("message failed, retrying", fields...)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * opts.Backoff):
		}
	}
}
