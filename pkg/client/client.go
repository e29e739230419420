package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cuemby/poanet/pkg/api"
	"github.com/cuemby/poanet/pkg/genesis"
	"github.com/cuemby/poanet/pkg/health"
	"github.com/cuemby/poanet/pkg/manager"
	"github.com/cuemby/poanet/pkg/reconciler"
	"github.com/cuemby/poanet/pkg/types"
)

// DefaultTimeout bounds a single request. Network creation waits for the
// bootnode container, so it is generous.
const DefaultTimeout = 5 * time.Minute

// Client talks to a poanet server over its REST API. It implements the same
// surface as the in-process manager, so the CLI can drive either.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at addr, e.g.
// http://127.0.0.1:3000. A bare host:port is accepted.
func NewClient(addr string) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid server address %q", types.ErrValidation, addr)
	}

	return &Client{
		baseURL: strings.TrimSuffix(u.String(), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// APIError is a failed call. It unwraps to the errdefs kind of its status
// code, so errdefs.IsNotFound and friends work across the wire.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return errdefs.ErrNotFound
	case http.StatusConflict:
		return errdefs.ErrConflict
	case http.StatusBadRequest:
		return errdefs.ErrInvalidArgument
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return errdefs.ErrUnavailable
	default:
		return errdefs.ErrInternal
	}
}

func (c *Client) ListNetworks() ([]*types.Network, error) {
	var networks []*types.Network
	err := c.do(context.Background(), http.MethodGet, "/api/networks", nil, &networks)
	return networks, err
}

func (c *Client) GetNetwork(name string) (*types.Network, error) {
	var n types.Network
	if err := c.do(context.Background(), http.MethodGet, networkPath(name), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) CreateNetwork(ctx context.Context, req manager.CreateNetworkRequest) (*types.Network, error) {
	body := api.CreateNetworkBody{Name: req.Name, ChainID: req.ChainID, BlockTime: req.BlockTime}
	var resp api.CreateNetworkResponse
	if err := c.do(ctx, http.MethodPost, "/api/networks", body, &resp); err != nil {
		return nil, err
	}
	return resp.Network, nil
}

func (c *Client) StartNetwork(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, networkPath(name, "start"), nil, nil)
}

func (c *Client) StopNetwork(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, networkPath(name, "stop"), nil, nil)
}

func (c *Client) RemoveNetwork(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, networkPath(name), nil, nil)
}

func (c *Client) NetworkStatus(ctx context.Context, name string) (*types.NetworkStatus, error) {
	var status types.NetworkStatus
	if err := c.do(ctx, http.MethodGet, networkPath(name, "status"), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) Genesis(name string) (*genesis.Document, error) {
	var doc genesis.Document
	if err := c.do(context.Background(), http.MethodGet, networkPath(name, "genesis"), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) AddNode(ctx context.Context, req manager.AddNodeRequest) (*types.Node, error) {
	body := api.AddNodeBody{
		Name:           req.Node,
		Password:       req.Password,
		Role:           string(req.Role),
		InitialBalance: req.InitialBalance,
	}
	var resp api.AddNodeResponse
	if err := c.do(ctx, http.MethodPost, networkPath(req.Network, "nodes"), body, &resp); err != nil {
		return nil, err
	}
	return resp.Node, nil
}

func (c *Client) RemoveNode(ctx context.Context, network, node string) error {
	return c.do(ctx, http.MethodDelete, networkPath(network, "nodes", node), nil, nil)
}

func (c *Client) StartNode(ctx context.Context, network, node string) error {
	return c.do(ctx, http.MethodPost, networkPath(network, "nodes", node, "start"), nil, nil)
}

func (c *Client) StopNode(ctx context.Context, network, node string) error {
	return c.do(ctx, http.MethodPost, networkPath(network, "nodes", node, "stop"), nil, nil)
}

func (c *Client) NodeLogs(ctx context.Context, network, node string) (string, error) {
	var resp api.LogsResponse
	if err := c.do(ctx, http.MethodGet, networkPath(network, "nodes", node, "logs"), nil, &resp); err != nil {
		return "", err
	}
	return resp.Logs, nil
}

// NodeHealth returns the probe report. An unhealthy node is answered with
// 503 and the report, which is decoded rather than returned as an error.
func (c *Client) NodeHealth(ctx context.Context, network, node string) (*health.NodeReport, error) {
	var report health.NodeReport
	err := c.do(ctx, http.MethodGet, networkPath(network, "nodes", node, "health"), nil, &report)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable && report.Node != "" {
		return &report, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Check runs a drift check on the server
func (c *Client) Check(ctx context.Context) ([]*reconciler.Drift, error) {
	var drifts []*reconciler.Drift
	err := c.do(ctx, http.MethodGet, "/api/drift", nil, &drifts)
	return drifts, err
}

func networkPath(network string, rest ...string) string {
	parts := []string{"/api/networks", url.PathEscape(network)}
	for _, p := range rest {
		parts = append(parts, url.PathEscape(p))
	}
	return strings.Join(parts, "/")
}

// do sends in as JSON and decodes the response into out. On a non-2xx
// status the body is still decoded into out when possible, and an *APIError
// carrying the server's error message is returned.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", errdefs.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		if out != nil {
			_ = json.Unmarshal(data, out)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
