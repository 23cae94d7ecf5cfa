package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Yacineooak/ReatilBot-Factory/internal/circuitbreaker"
	"github.com/Yacineooak/ReatilBot-Factory/internal/logging"
	"github.com/Yacineooak/ReatilBot-Factory/internal/metrics"
	"github.com/Yacineooak/ReatilBot-Factory/internal/retry"
)

const (
	maxSendAttempts = 3
	retryBaseDelay  = 200 * time.Millisecond

	breakerThreshold = 5
	breakerOpenFor   = 30 * time.Second
)

// ErrGatewayUnavailable is returned when the circuit breaker for a channel
// is open and the gateway is not being contacted at all.
var ErrGatewayUnavailable = fmt.Errorf("notification gateway unavailable")

// HTTPSender posts messages to a notification gateway over HTTP.
// The gateway exposes POST /send for messages and POST /call for call
// scheduling; any 2xx response counts as accepted.
//
// Transient failures (network errors, 5xx) are retried with backoff.
// Non-2xx responses below 500 are treated as permanent rejections.
// A per-channel circuit breaker stops hammering a gateway that keeps
// failing; while open, sends fail fast with ErrGatewayUnavailable so
// callers can fall back to another verification method.
type HTTPSender struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewHTTPSender creates a sender for the given gateway base URL.
func NewHTTPSender(baseURL string) *HTTPSender {
	return &HTTPSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: circuitbreaker.New(breakerThreshold, breakerOpenFor),
	}
}

type sendRequest struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
}

type callRequest struct {
	Phone string `json:"phone"`
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, channel, recipient, subject, body string) (bool, error) {
	ok, err := s.post(ctx, channel, "/send", sendRequest{
		Channel:   channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	recordSend(channel, ok)
	if err != nil {
		logging.L(ctx).Warn("notification dispatch failed",
			"channel", channel,
			"error", err,
		)
	}
	return ok, err
}

// ScheduleCall implements CallScheduler.
func (s *HTTPSender) ScheduleCall(ctx context.Context, phone string) (bool, error) {
	ok, err := s.post(ctx, "phone_call", "/call", callRequest{Phone: phone})
	recordSend("phone_call", ok)
	if err != nil {
		logging.L(ctx).Warn("call scheduling failed", "error", err)
	}
	return ok, err
}

func (s *HTTPSender) post(ctx context.Context, key, path string, payload any) (bool, error) {
	if !s.breaker.Allow(key) {
		return false, ErrGatewayUnavailable
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal gateway payload: %w", err)
	}

	err = retry.Do(ctx, maxSendAttempts, retryBaseDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return retry.Permanent(fmt.Errorf("create gateway request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("gateway request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}
		// Client errors won't improve on retry.
		return retry.Permanent(fmt.Errorf("gateway returned status %d", resp.StatusCode))
	})
	if err != nil {
		s.breaker.RecordFailure(key)
		return false, err
	}
	s.breaker.RecordSuccess(key)
	return true, nil
}

func recordSend(channel string, ok bool) {
	result := "accepted"
	if !ok {
		result = "failed"
	}
	metrics.NotificationSendsTotal.WithLabelValues(channel, result).Inc()
}
