package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RedeemResult is the API's answer to a scan or confirm call.
type RedeemResult struct {
	Outcome       string          `json:"outcome"`
	Message       string          `json:"message"`
	MissingFields []string        `json:"missing_fields,omitempty"`
	Record        json.RawMessage `json:"record,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// RedeemClient talks to the attendance API with a student bearer token.
type RedeemClient struct {
	base  string
	token string
	http  *http.Client
}

// NewRedeemClient builds a client for the given API base URL.
func NewRedeemClient(base, token string) *RedeemClient {
	return &RedeemClient{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Scan runs phase-one validation of a raw payload.
func (c *RedeemClient) Scan(ctx context.Context, raw string) (*RedeemResult, error) {
	return c.post(ctx, "/v1/scan", raw)
}

// Confirm commits the redemption.
func (c *RedeemClient) Confirm(ctx context.Context, raw string) (*RedeemResult, error) {
	return c.post(ctx, "/v1/scan/confirm", raw)
}

func (c *RedeemClient) post(ctx context.Context, path, raw string) (*RedeemResult, error) {
	body, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("api temporarily unavailable")
	}

	var result RedeemResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("api error: %s", result.Error)
	}
	return &result, nil
}
