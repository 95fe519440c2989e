package nats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/auditwise/docqa/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const (
	ingestedSuffix = ".documents.ingested"
	updatedSuffix  = ".documents.updated"
)

// Queue publishes and consumes document lifecycle events. Ingested
// events are load-balanced across workers; updated events are
// broadcast so every API instance invalidates its own retrieval cache.
type Queue struct {
	conn            *nats.Conn
	ingestedSubject string
	updatedSubject  string
	executor        *resilience.Executor
}

func New(url, subjectPrefix string) (*Queue, error) {
	return NewWithOptions(url, subjectPrefix, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subjectPrefix string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("docqa"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:            conn,
		ingestedSubject: subjectPrefix + ingestedSuffix,
		updatedSubject:  subjectPrefix + updatedSuffix,
		executor:        options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.ingestedSubject, documentID)
}

func (q *Queue) PublishDocumentUpdated(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.updatedSubject, documentID)
}

func (q *Queue) publish(ctx context.Context, subject, documentID string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, []byte(documentID)); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeDocumentIngested joins the worker queue group; each event
// is processed by exactly one worker. Blocks until ctx is cancelled.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.ingestedSubject, "workers", q.messageHandler(ctx, handler))
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	return q.runSubscription(ctx, sub)
}

// SubscribeDocumentUpdated delivers every update to every subscriber.
// Blocks until ctx is cancelled.
func (q *Queue) SubscribeDocumentUpdated(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.Subscribe(q.updatedSubject, q.messageHandler(ctx, handler))
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	return q.runSubscription(ctx, sub)
}

func (q *Queue) messageHandler(ctx context.Context, handler func(context.Context, string) error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			log.Printf("event handler error for doc=%s: %v", string(msg.Data), err)
		}
	}
}

func (q *Queue) runSubscription(ctx context.Context, sub *nats.Subscription) error {
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
