// Package client is a Go client for the multisig REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-multisig/internal/api"
	"github.com/Klingon-tech/klingnet-multisig/internal/spend"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// DefaultTimeout covers a cold wallet compile.
const DefaultTimeout = 5 * time.Minute

const maxResponseSize = 1 << 20

// Client calls the multisig service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: DefaultTimeout})
}

// NewWithHTTPClient creates a client that sends requests through hc.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// APIError is a failure reported by the service.
type APIError struct {
	Status    int    `json:"-"`
	Code      uint32 `json:"code"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Category, e.Status, e.Message)
}

// GenerateWallet asks for the wallet of keys, in the given slot order.
func (c *Client) GenerateWallet(ctx context.Context, keys []types.PublicKey) (*api.WalletResponse, error) {
	req := api.GenerateWalletRequest{PublicKeys: make([]string, len(keys))}
	for i, k := range keys {
		req.PublicKeys[i] = k.Hex()
	}
	var out api.WalletResponse
	if err := c.do(ctx, http.MethodPost, "/generate_wallet", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SpendFunds submits a spend.
func (c *Client) SpendFunds(ctx context.Context, req spend.Request) (*spend.Result, error) {
	var out spend.Result
	if err := c.do(ctx, http.MethodPost, "/spend_funds", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWallet fetches a stored wallet record.
func (c *Client) GetWallet(ctx context.Context, addr types.Address) (*api.WalletResponse, error) {
	var out api.WalletResponse
	if err := c.do(ctx, http.MethodGet, "/wallets/"+addr.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var wrapped struct {
			Error *APIError `json:"error"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil || wrapped.Error == nil {
			return &APIError{Status: resp.StatusCode, Category: "http", Message: strings.TrimSpace(string(data))}
		}
		wrapped.Error.Status = resp.StatusCode
		return wrapped.Error
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
