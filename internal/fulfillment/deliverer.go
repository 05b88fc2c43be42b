package fulfillment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cassiomorais/billingbridge/internal/infrastructure/observability"
	pkgRetry "github.com/cassiomorais/billingbridge/pkg/retry"
)

// ErrNoEndpoint is returned for records of an app without a fulfillment URL.
var ErrNoEndpoint = errors.New("no fulfillment endpoint configured")

const HeaderFulfillmentID = "X-Fulfillment-Id"

// HTTPDeliverer POSTs records to each app's fulfillment endpoint. Server
// errors and timeouts are retried with backoff; client errors are not.
type HTTPDeliverer struct {
	client    *http.Client
	endpoints map[string]string
	retry     pkgRetry.Config
	metrics   *observability.Metrics
}

func NewHTTPDeliverer(client *http.Client, endpoints map[string]string, rc pkgRetry.Config, metrics *observability.Metrics) *HTTPDeliverer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPDeliverer{client: client, endpoints: endpoints, retry: rc, metrics: metrics}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, rec Record, payload []byte) error {
	url, ok := d.endpoints[rec.App]
	if !ok || url == "" {
		return fmt.Errorf("app %q: %w", rec.App, ErrNoEndpoint)
	}

	return pkgRetry.Do(ctx, d.retry, func() error {
		err := d.post(ctx, url, rec.ID, payload)
		d.count(rec.App, err)
		return err
	})
}

func (d *HTTPDeliverer) post(ctx context.Context, url, id string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderFulfillmentID, id)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post fulfillment: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return fmt.Errorf("fulfillment endpoint returned %d", resp.StatusCode)
	default:
		return retry.Unrecoverable(fmt.Errorf("fulfillment endpoint rejected record: %d", resp.StatusCode))
	}
}

func (d *HTTPDeliverer) count(app string, err error) {
	if d.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	d.metrics.DeliveryAttempts.WithLabelValues(app, status).Inc()
}
