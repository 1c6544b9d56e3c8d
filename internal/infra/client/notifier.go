// Package client holds outbound HTTP integrations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/resilience"
	"github.com/BnaryBlade/loyalty-hive-core/internal/port"
)

var tracer = otel.Tracer("client")

// EventLevelChanged is the event type sent in the X-Loyalty-Event header.
const EventLevelChanged = "loyalty.level_changed"

// WebhookNotifier posts level-change events to a configured URL.
type WebhookNotifier struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
}

var _ port.LevelChangePublisher = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a notifier guarded by retry, circuit breaker
// and a bulkhead of cfg.MaxConcurrency in-flight deliveries.
func NewWebhookNotifier(httpClient *http.Client, url string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: httpClient,
		url:        url,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
	}
}

// PublishLevelChange delivers evt. 4xx answers are not retried.
func (n *WebhookNotifier) PublishLevelChange(ctx context.Context, evt domain.LevelChangeEvent) error {
	ctx, span := tracer.Start(ctx, "WebhookNotifier.PublishLevelChange")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", evt.AccountID),
		attribute.String("level.from", evt.From.ID),
		attribute.String("level.to", evt.To.ID),
	)

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode level change: %w", err)
	}

	if err := n.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrExternalService{Service: "notifier", Err: err}
	}
	defer n.bulkhead.Release()

	_, err = n.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, n.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Loyalty-Event", EventLevelChanged)
			req.Header.Set("X-Loyalty-Delivery", evt.EntryID)

			resp, err := n.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return nil
			case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
				return resilience.Permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode))
			default:
				return fmt.Errorf("webhook returned status %d", resp.StatusCode)
			}
		})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "notifier", Err: err}
	}
	return nil
}

// NopPublisher discards events. Used when no webhook is configured.
type NopPublisher struct{}

func (NopPublisher) PublishLevelChange(context.Context, domain.LevelChangeEvent) error { return nil }
