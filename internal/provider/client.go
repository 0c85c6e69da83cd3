// Package provider is the HTTP adapter for the external voice-call provider.
// No provider API calls happen outside this package.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"call-analytics/internal/apperr"
)

type Config struct {
	BaseURL string
	APIKey  string

	// Timeout bounds a single request; zero uses 30s.
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListCalls returns up to limit most recent calls, newest first.
// Elements that fail to decode are returned with DecodeErr set instead of failing the page.
func (c *Client) ListCalls(ctx context.Context, limit int) ([]CallEvent, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", "created_at:desc")

	var raws []json.RawMessage
	if err := c.getJSON(ctx, "/call", q, &raws); err != nil {
		return nil, err
	}

	out := make([]CallEvent, 0, len(raws))
	for _, raw := range raws {
		out = append(out, decodeCallEvent(raw))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func decodeCallEvent(raw json.RawMessage) CallEvent {
	var ev CallEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		var idOnly struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(raw, &idOnly)
		return CallEvent{ID: idOnly.ID, Raw: raw, DecodeErr: err}
	}
	ev.Raw = raw
	return ev
}

// GetCallStatistics returns provider-side totals for [start, end).
func (c *Client) GetCallStatistics(ctx context.Context, start, end time.Time) (CallStatistics, error) {
	q := url.Values{}
	q.Set("start_date", start.UTC().Format(time.RFC3339))
	q.Set("end_date", end.UTC().Format(time.RFC3339))

	var stats CallStatistics
	if err := c.getJSON(ctx, "/analytics/calls", q, &stats); err != nil {
		return CallStatistics{}, err
	}
	return stats, nil
}

// ListAssistants returns every provider assistant. Like ListCalls, an element
// that fails to decode comes back with DecodeErr set.
func (c *Client) ListAssistants(ctx context.Context) ([]Assistant, error) {
	var raws []json.RawMessage
	if err := c.getJSON(ctx, "/assistant", nil, &raws); err != nil {
		return nil, err
	}
	out := make([]Assistant, 0, len(raws))
	for _, raw := range raws {
		a, err := DecodeAssistant(raw)
		if err != nil {
			var idOnly struct {
				ID string `json:"id"`
			}
			_ = json.Unmarshal(raw, &idOnly)
			a = Assistant{ID: idOnly.ID, Config: raw, DecodeErr: err}
		}
		out = append(out, a)
	}
	return out, nil
}

// DecodeAssistant decodes a provider assistant object and keeps it as Config.
func DecodeAssistant(raw json.RawMessage) (Assistant, error) {
	var a Assistant
	if err := json.Unmarshal(raw, &a); err != nil {
		return Assistant{}, err
	}
	if a.ID == "" {
		return Assistant{}, errors.New("assistant id missing")
	}
	a.Config = raw
	return a, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return apperr.Upstream("build provider request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream("provider request "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Upstream("provider request "+path,
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Upstream("decode provider response "+path, err)
	}
	return nil
}
