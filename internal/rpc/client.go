package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/allartprotocol/token-indexer/pkg/ratelimiter"
	"github.com/allartprotocol/token-indexer/pkg/retry"
)

// Client is a generic JSON-RPC 2.0 client over HTTP.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	auth        *AuthConfig
	rateLimiter *ratelimiter.RateLimiter

	maxRetries int
	retryDelay time.Duration

	rpcID int64
	mutex sync.Mutex
}

func NewClient(baseURL string, auth *AuthConfig, timeout time.Duration, rateLimiter *ratelimiter.RateLimiter) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		auth:        auth,
		rateLimiter: rateLimiter,
		rpcID:       1,
	}
}

// WithRetry makes transport failures retry up to attempts times with a fixed
// delay in between. RPC-level errors are never retried.
func (c *Client) WithRetry(attempts int, delay time.Duration) *Client {
	c.maxRetries = attempts
	c.retryDelay = delay
	return c
}

func (c *Client) CallRPC(ctx context.Context, method string, params any) (*RPCResponse, error) {
	c.mutex.Lock()
	reqID := c.rpcID
	c.rpcID++
	c.mutex.Unlock()

	// Rate limit
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req := &RPCRequest{ID: reqID, JSONRPC: "2.0", Method: method, Params: params}

	var raw []byte
	send := func() error {
		var err error
		raw, err = c.do(ctx, req)
		return err
	}
	var err error
	if c.maxRetries > 1 {
		err = retry.Constant(send, c.retryDelay, c.maxRetries)
	} else {
		err = send()
	}
	if err != nil {
		return nil, err
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal RPC response: %w", err)
	}
	if rpcResp.Error != nil {
		return &rpcResp, rpcResp.Error
	}
	return &rpcResp, nil
}

func (c *Client) do(ctx context.Context, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	slog.Debug("HTTP request completed", "url", c.baseURL, "elapsed", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, c.baseURL, string(data))
	}
	return data, nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	if c.auth == nil {
		return
	}
	switch c.auth.Type {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.auth.Token)
	case "api_key":
		req.Header.Set("X-API-Key", c.auth.Token)
	case "basic":
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	case "custom":
		for k, v := range c.auth.Headers {
			req.Header.Set(k, v)
		}
	}
}

func (c *Client) GetURL() string { return c.baseURL }
