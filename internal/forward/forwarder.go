// Package forward delivers attendance events to the configured HTTP
// endpoint.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/otiza/ZkConnectSolution/internal/device"
	"github.com/otiza/ZkConnectSolution/internal/retry"
)

// Response bodies only feed log lines; cap the read so a misconfigured
// endpoint cannot balloon memory or the log.
const maxResponseBytes = 8 << 10

// payload is the exact wire shape: two fields, no more.
type payload struct {
	DeviceUserID int64  `json:"device_user_id"`
	Timestamp    string `json:"timestamp"`
}

// Result carries the endpoint's answer back to the caller for logging.
type Result struct {
	StatusCode int
	Body       string
}

// StatusError reports a non-2xx response from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint returned status %d", e.StatusCode)
}

// Options configures a Forwarder. A zero Timeout leaves the transport
// default in place. MaxAttempts below 2 disables retry.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
}

// Forwarder posts events to a single endpoint URL.
type Forwarder struct {
	endpoint    string
	client      *http.Client
	maxAttempts int
}

// New creates a Forwarder for the given endpoint.
func New(endpoint string, opts Options) *Forwarder {
	return &Forwarder{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: opts.Timeout},
		maxAttempts: opts.MaxAttempts,
	}
}

// Forward serializes the event and POSTs it to the endpoint, blocking
// until the endpoint answers or the client times out. The Result is
// non-nil whenever a response was received, including non-2xx ones, so
// the transaction log can record the status. With MaxAttempts > 1,
// transport errors and 5xx responses are retried with exponential
// backoff; 4xx responses are terminal.
func (f *Forwarder) Forward(ctx context.Context, event device.AttendanceEvent) (*Result, error) {
	if f.maxAttempts <= 1 {
		return f.post(ctx, event)
	}

	var result *Result
	err := retry.WithClassifier(ctx, retry.ForwarderDefaults(f.maxAttempts), func(ctx context.Context) error {
		res, err := f.post(ctx, event)
		result = res
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
			return err // the endpoint answered; retrying won't change it
		}
		logrus.WithError(err).WithField("device_user_id", event.DeviceUserID).
			Warn("Forwarding failed, retrying")
		return retry.Retryable(err)
	})
	return result, err
}

func (f *Forwarder) post(ctx context.Context, event device.AttendanceEvent) (*Result, error) {
	body, err := json.Marshal(payload{
		DeviceUserID: event.DeviceUserID,
		Timestamp:    event.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoint response: %w", err)
	}

	result := &Result{StatusCode: resp.StatusCode, Body: string(respBody)}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, &StatusError{StatusCode: resp.StatusCode, Body: result.Body}
	}
	return result, nil
}
