package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/achinchen/articles-assistant/internal/infrastructure/resilience"
)

const (
	DefaultSubject  = "articles.content.updated"
	subscriberGroup = "cache-invalidators"
)

// ContentEvents carries "article content changed" notifications between the
// ingestion side and the cache invalidation worker.
type ContentEvents struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	now      func() time.Time
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

type contentUpdated struct {
	ArticleID string    `json:"article_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

func Connect(url, subject string, options Options) (*ContentEvents, error) {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
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
		nats.Name("articles-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	executor := options.ResilienceExecutor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &ContentEvents{
		conn:     conn,
		subject:  subject,
		executor: executor,
		now:      time.Now,
	}, nil
}

func (e *ContentEvents) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
}

func (e *ContentEvents) PublishContentUpdated(ctx context.Context, articleID string) error {
	payload, err := encodeContentUpdated(articleID, e.now().UTC())
	if err != nil {
		return err
	}
	err = e.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		if err := e.conn.Publish(e.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
	return wrapTemporaryIfNeeded(err)
}

// SubscribeContentUpdated blocks until ctx is done, then drains the subscription.
// Handler errors are logged; the message is not redelivered.
func (e *ContentEvents) SubscribeContentUpdated(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := e.conn.QueueSubscribe(e.subject, subscriberGroup, func(msg *nats.Msg) {
		dispatchContentUpdated(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := e.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("content_events_subscribed", "subject", e.subject, "group", subscriberGroup)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := e.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func dispatchContentUpdated(ctx context.Context, data []byte, handler func(context.Context, string) error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	articleID, err := decodeContentUpdated(data)
	if err != nil {
		slog.Warn("content_event_malformed", "error", err)
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, articleID); err != nil {
		slog.Error("content_event_handler_failed", "article_id", articleID, "error", err)
	}
}

func encodeContentUpdated(articleID string, at time.Time) ([]byte, error) {
	data, err := json.Marshal(contentUpdated{ArticleID: articleID, UpdatedAt: at})
	if err != nil {
		return nil, fmt.Errorf("marshal content event: %w", err)
	}
	return data, nil
}

// decodeContentUpdated accepts the JSON envelope or a bare article id.
func decodeContentUpdated(data []byte) (string, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", fmt.Errorf("empty content event")
	}
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}
	var event contentUpdated
	if err := json.Unmarshal(data, &event); err != nil {
		return "", fmt.Errorf("decode content event: %w", err)
	}
	return event.ArticleID, nil
}
