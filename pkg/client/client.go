// Package client provides the Go SDK for the waveledger HTTP API,
// including a streaming Watch over the WebSocket endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ErrOutOfRange is returned by Wave when the requested index is outside
// the ledger's current range.
var ErrOutOfRange = errors.New("wave index out of range")

// Wave is one appended ledger record.
type Wave struct {
	Index     int    `json:"index"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Client is the waveledger SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client for the server at baseURL
// (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendWave appends a wave and returns the stored record with its
// assigned index.
func (c *Client) SendWave(ctx context.Context, sender, message string) (*Wave, error) {
	body, err := json.Marshal(map[string]string{
		"sender":  sender,
		"message": message,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/waves", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var w Wave
	if err := c.do(req, http.StatusCreated, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Count returns the total number of waves.
func (c *Client) Count(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/waves/count", nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Waves returns the full history in append order.
func (c *Client) Waves(ctx context.Context) ([]Wave, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/waves", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Waves []Wave `json:"waves"`
	}
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Waves, nil
}

// Wave returns the record at the given zero-based index.
func (c *Client) Wave(ctx context.Context, index int) (*Wave, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/waves/%d", c.baseURL, index), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrOutOfRange
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var w Wave
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, fmt.Errorf("decode wave: %w", err)
	}
	return &w, nil
}

// Watch opens the live stream and returns a channel of waves appended
// after the call. The channel is closed when ctx is cancelled or the
// connection drops.
func (c *Client) Watch(ctx context.Context) (<-chan Wave, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/v1/waves/stream"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close() //nolint:errcheck
		}
		return nil, fmt.Errorf("dial wave stream: %w", err)
	}

	out := make(chan Wave)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var w Wave
			if err := conn.ReadJSON(&w); err != nil {
				return
			}
			select {
			case out <- w:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Tear the connection down when the context ends so the reader
	// goroutine unblocks.
	go func() {
		<-ctx.Done()
		conn.Close() //nolint:errcheck
	}()

	return out, nil
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
