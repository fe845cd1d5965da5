// internal/uplink/client.go
package uplink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/tamzrod/gsmlink/internal/device"
	"github.com/tamzrod/gsmlink/internal/logging"
)

// DefaultURL is the reflections endpoint the vessel reports to.
const DefaultURL = "https://chmdebeer.ca/reflections/signalk"

const defaultTimeout = 30 * time.Second

// Payload is the telemetry body. GSM is omitted until a signal was sampled.
type Payload struct {
	JSON any            `json:"json"`
	GSM  *device.Signal `json:"gsm,omitempty"`
}

// Config is the remote endpoint.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client POSTs telemetry. No authentication is sent.
type Client struct {
	url  string
	http *http.Client
	log  logging.Logger
}

// New builds a Client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, log logging.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("uplink: url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Client{url: cfg.URL, http: httpClient, log: log}, nil
}

// Post sends one payload. Any transport error or non-2xx status is a failure.
func (c *Client) Post(ctx context.Context, p Payload) error {
	c.log.Debug(ctx, "Update server")

	body, err := sonic.Marshal(p)
	if err != nil {
		return fmt.Errorf("uplink: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("uplink: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uplink: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	c.log.Debug(ctx, "Server responded", logging.Int("status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("uplink: post: unexpected status %d", resp.StatusCode)
	}
	return nil
}
