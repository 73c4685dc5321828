// Package kiosk contains the thin client a scanning station uses to resolve
// codes against the API server.
package kiosk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hms/hms/internal/domain/lookup"
)

type ClientConfig struct {
	BaseURL string
	Token   string
	Tenant  string
	Timeout time.Duration
}

// Client resolves scanned codes over HTTP.
type Client struct {
	http *resty.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	if cfg.Tenant != "" {
		c.SetHeader("X-Tenant-ID", cfg.Tenant)
	}
	return &Client{http: c}
}

type errorBody struct {
	Error string `json:"error"`
}

// Resolve looks a scanned code up. The server's error classes are mapped
// back onto the lookup package sentinels so kiosk logic can branch on them.
func (c *Client) Resolve(ctx context.Context, code string) (*lookup.PatientView, error) {
	var (
		view   lookup.PatientView
		apiErr errorBody
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&view).
		SetError(&apiErr).
		Get("/api/patients/" + url.PathEscape(code))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lookup.ErrLookup, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return &view, nil
	case http.StatusBadRequest:
		return nil, lookup.ErrInvalidFormat
	case http.StatusNotFound:
		return nil, lookup.ErrNotFound
	default:
		return nil, fmt.Errorf("%w: server returned %d: %s", lookup.ErrLookup, resp.StatusCode(), apiErr.Error)
	}
}
