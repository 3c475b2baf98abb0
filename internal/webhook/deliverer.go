// Package webhook delivers completion notifications to caller-supplied URLs.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/analysis-service/internal/config"
	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/redact"
)

// ErrDeliveryFailed is returned when every delivery attempt fails.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// Options tunes delivery.
type Options struct {
	// Timeout bounds each attempt.
	Timeout time.Duration
	// MaxAttempts is the total number of attempts.
	MaxAttempts int
	// BaseBackoff is the wait before the second attempt; it doubles after.
	BaseBackoff time.Duration
}

// OptionsFromConfig converts webhook configuration into Options.
func OptionsFromConfig(cfg config.WebhookConfig) Options {
	return Options{
		Timeout:     cfg.Timeout,
		MaxAttempts: cfg.MaxAttempts,
		BaseBackoff: cfg.BaseBackoff,
	}
}

// Deliverer POSTs JSON payloads with bounded retries.
type Deliverer struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewDeliverer creates a Deliverer. A nil client uses http.DefaultClient.
func NewDeliverer(client *http.Client, opts Options, logger *slog.Logger) *Deliverer {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Deliverer{
		client: client,
		opts:   opts,
		logger: logger.With("component", "webhook"),
		sleep:  sleepContext,
	}
}

// Deliver sends payload to target. Any 2xx response is success; every other
// outcome is retried with exponential backoff until attempts run out, at
// which point an error wrapping ErrDeliveryFailed is returned.
func (d *Deliverer) Deliver(ctx context.Context, target domain.WebhookTarget, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: failed to encode payload: %v", ErrDeliveryFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt < d.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := d.opts.BaseBackoff * time.Duration(1<<(attempt-1))
			if err := d.sleep(ctx, delay); err != nil {
				return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
			}
		}

		lastErr = d.post(ctx, target, body)
		if lastErr == nil {
			d.logger.InfoContext(ctx, "webhook delivered",
				"url", redact.URL(target.URL),
				"attempt", attempt+1)
			return nil
		}

		d.logger.WarnContext(ctx, "webhook attempt failed",
			"url", redact.URL(target.URL),
			"attempt", attempt+1,
			"max_attempts", d.opts.MaxAttempts,
			"error", redact.Error(lastErr))
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrDeliveryFailed, d.opts.MaxAttempts, lastErr)
}

func (d *Deliverer) post(ctx context.Context, target domain.WebhookTarget, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if target.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+target.Credential)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
