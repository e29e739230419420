package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cuemby/poanet/pkg/genesis"
	"github.com/cuemby/poanet/pkg/health"
	"github.com/cuemby/poanet/pkg/manager"
	"github.com/cuemby/poanet/pkg/metrics"
	"github.com/cuemby/poanet/pkg/reconciler"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeManager keeps networks in memory and returns err from every call when set
type fakeManager struct {
	mu       sync.Mutex
	networks map[string]*types.Network
	logs     string
	err      error
	calls    []string
}

func newFakeManager() *fakeManager {
	return &fakeManager{networks: map[string]*types.Network{
		"testnet": {
			Name:    "testnet",
			ChainID: 1337,
			Nodes:   []*types.Node{{Name: "bootnode", Port: 30303, Role: types.NodeRoleBootnode}},
		},
	}}
}

func (f *fakeManager) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeManager) lookup(name string) (*types.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.networks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNetworkNotFound, name)
	}
	return n, nil
}

func (f *fakeManager) ListNetworks() ([]*types.Network, error) {
	if err := f.record("ListNetworks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Network, 0, len(f.networks))
	for _, n := range f.networks {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeManager) GetNetwork(name string) (*types.Network, error) {
	if err := f.record("GetNetwork " + name); err != nil {
		return nil, err
	}
	return f.lookup(name)
}

func (f *fakeManager) CreateNetwork(ctx context.Context, req manager.CreateNetworkRequest) (*types.Network, error) {
	if err := f.record("CreateNetwork " + req.Name); err != nil {
		return nil, err
	}
	n := &types.Network{Name: req.Name, ChainID: req.ChainID, BlockTime: req.BlockTime, BootnodeEnode: "enode://abc@10.0.0.2:30303"}
	f.mu.Lock()
	f.networks[req.Name] = n
	f.mu.Unlock()
	return n, nil
}

func (f *fakeManager) StartNetwork(ctx context.Context, name string) error {
	return f.record("StartNetwork " + name)
}

func (f *fakeManager) StopNetwork(ctx context.Context, name string) error {
	return f.record("StopNetwork " + name)
}

func (f *fakeManager) RemoveNetwork(ctx context.Context, name string) error {
	return f.record("RemoveNetwork " + name)
}

func (f *fakeManager) NetworkStatus(ctx context.Context, name string) (*types.NetworkStatus, error) {
	if err := f.record("NetworkStatus " + name); err != nil {
		return nil, err
	}
	if _, err := f.lookup(name); err != nil {
		return nil, err
	}
	return &types.NetworkStatus{Network: name, RunningServices: []string{"bootnode"}}, nil
}

func (f *fakeManager) Genesis(name string) (*genesis.Document, error) {
	if err := f.record("Genesis " + name); err != nil {
		return nil, err
	}
	n, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	return genesis.FromNetwork(n)
}

func (f *fakeManager) AddNode(ctx context.Context, req manager.AddNodeRequest) (*types.Node, error) {
	if err := f.record(fmt.Sprintf("AddNode %s %s %s %s", req.Network, req.Node, req.Role, req.InitialBalance)); err != nil {
		return nil, err
	}
	return &types.Node{Name: req.Node, Port: 30304, Address: "0x1234567890123456789012345678901234567890", Role: req.Role}, nil
}

func (f *fakeManager) RemoveNode(ctx context.Context, network, node string) error {
	return f.record("RemoveNode " + network + " " + node)
}

func (f *fakeManager) StartNode(ctx context.Context, network, node string) error {
	return f.record("StartNode " + network + " " + node)
}

func (f *fakeManager) StopNode(ctx context.Context, network, node string) error {
	return f.record("StopNode " + network + " " + node)
}

func (f *fakeManager) NodeLogs(ctx context.Context, network, node string) (string, error) {
	if err := f.record("NodeLogs " + network + " " + node); err != nil {
		return "", err
	}
	return f.logs, nil
}

func (f *fakeManager) NodeHealth(ctx context.Context, network, node string) (*health.NodeReport, error) {
	if err := f.record("NodeHealth " + network + " " + node); err != nil {
		return nil, err
	}
	return health.Probe(ctx, network, node, "running", nil), nil
}

type fakeDrift struct {
	drifts []*reconciler.Drift
}

func (f fakeDrift) Check(ctx context.Context) ([]*reconciler.Drift, error) {
	return f.drifts, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		status   int
		call     string
		contains string
	}{
		{"list networks", http.MethodGet, "/api/networks", "", http.StatusOK, "ListNetworks", `"networkName":"testnet"`},
		{"create network", http.MethodPost, "/api/networks", `{"networkName":"devnet","chainId":42,"blockTime":5}`, http.StatusCreated, "CreateNetwork devnet", `"message":"Network devnet configured and activated successfully."`},
		{"get network", http.MethodGet, "/api/networks/testnet", "", http.StatusOK, "GetNetwork testnet", `"chainId":1337`},
		{"remove network", http.MethodDelete, "/api/networks/testnet", "", http.StatusOK, "RemoveNetwork testnet", `"message":"Network testnet removed successfully."`},
		{"start network", http.MethodPost, "/api/networks/testnet/start", "", http.StatusOK, "StartNetwork testnet", `started successfully`},
		{"stop network", http.MethodPost, "/api/networks/testnet/stop", "", http.StatusOK, "StopNetwork testnet", `stopped successfully`},
		{"network status", http.MethodGet, "/api/networks/testnet/status", "", http.StatusOK, "NetworkStatus testnet", `"runningServices":["bootnode"]`},
		{"genesis", http.MethodGet, "/api/networks/testnet/genesis", "", http.StatusOK, "Genesis testnet", `"extraData":"0x`},
		{"add node", http.MethodPost, "/api/networks/testnet/nodes", `{"nodeName":"signer1","password":"pw","nodeType":"signer","initialBalance":"100"}`, http.StatusCreated, "AddNode testnet signer1 signer 100", `"nodeName":"signer1"`},
		{"remove node", http.MethodDelete, "/api/networks/testnet/nodes/signer1", "", http.StatusOK, "RemoveNode testnet signer1", `removed successfully from network testnet`},
		{"start node", http.MethodPost, "/api/networks/testnet/nodes/signer1/start", "", http.StatusOK, "StartNode testnet signer1", `started successfully in network testnet`},
		{"stop node", http.MethodPost, "/api/networks/testnet/nodes/signer1/stop", "", http.StatusOK, "StopNode testnet signer1", `stopped successfully in network testnet`},
		{"node health", http.MethodGet, "/api/networks/testnet/nodes/signer1/health", "", http.StatusOK, "NodeHealth testnet signer1", `"healthy":true`},
		{"node logs", http.MethodGet, "/api/networks/testnet/nodes/signer1/logs", "", http.StatusOK, "NodeLogs testnet signer1", `"logs":"imported block"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := newFakeManager()
			mgr.logs = "imported block"
			s := NewServer(mgr, nil)

			w := do(t, s.Handler(), tt.method, tt.path, tt.body)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), tt.contains)
			assert.Equal(t, []string{tt.call}, mgr.calls)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"network not found", fmt.Errorf("%w: x", types.ErrNetworkNotFound), http.StatusNotFound},
		{"node not found", types.ErrNodeNotFound, http.StatusNotFound},
		{"network exists", types.ErrNetworkExists, http.StatusConflict},
		{"node exists", types.ErrNodeExists, http.StatusConflict},
		{"validation", types.ErrValidation, http.StatusBadRequest},
		{"inconsistent", types.ErrInconsistentState, http.StatusConflict},
		{"timeout", types.ErrContainerTimeout, http.StatusBadGateway},
		{"container op", types.ErrContainerOperation, http.StatusBadGateway},
		{"status query", types.ErrStatusQuery, http.StatusBadGateway},
		{"provisioning wrapping not found", fmt.Errorf("%w: locate keyfile: %w", types.ErrNodeProvisioning, types.ErrKeyfileNotFound), http.StatusBadGateway},
		{"persistence", types.ErrPersistence, http.StatusInternalServerError},
		{"corrupt roster", types.ErrCorruptRoster, http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusCode(tt.err))

			mgr := newFakeManager()
			mgr.err = tt.err
			w := do(t, NewServer(mgr, nil).Handler(), http.MethodPost, "/api/networks/testnet/start", "")

			assert.Equal(t, tt.status, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.err.Error(), resp.Error)
		})
	}
}

func TestNotFoundNetwork(t *testing.T) {
	w := do(t, NewServer(newFakeManager(), nil).Handler(), http.MethodGet, "/api/networks/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"network not found: ghost"`)
}

func TestBadBodies(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/api/networks", `{"networkName":`},
		{"unknown field", "/api/networks", `{"networkName":"x","chainId":1,"consensus":"pow"}`},
		{"wrong type", "/api/networks/testnet/nodes", `{"nodeName":42}`},
		{"empty body", "/api/networks/testnet/nodes", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := newFakeManager()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			NewServer(mgr, nil).Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, mgr.calls)
		})
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := NewServer(newFakeManager(), nil).Handler()

	w := do(t, h, http.MethodGet, "/api/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	w = do(t, h, http.MethodPut, "/api/networks/testnet", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "method PUT not allowed")

	w = do(t, h, http.MethodGet, "/api/networks/testnet/nodes/signer1/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, h, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDriftRoute(t *testing.T) {
	mgr := newFakeManager()

	w := do(t, NewServer(mgr, nil).Handler(), http.MethodGet, "/api/drift", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	drift := fakeDrift{drifts: []*reconciler.Drift{{
		Network:           "testnet",
		MissingInManifest: []string{"orphan"},
		MissingInRoster:   []string{},
	}}}
	w = do(t, NewServer(mgr, drift).Handler(), http.MethodGet, "/api/drift", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"missingInManifest":["orphan"]`)
}

func TestHealthEndpoints(t *testing.T) {
	mgr := newFakeManager()
	h := NewServer(mgr, nil).Handler()

	metrics.UpdateComponent(metrics.ComponentRuntime, true, "")
	metrics.UpdateComponent(metrics.ComponentAPI, true, "")

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)

	mgr.err = types.ErrCorruptRoster
	w = do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	metrics.UpdateComponent(metrics.ComponentRoster, true, "")

	w = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "poanet_api_requests_total")
}

func TestShutdownWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer(newFakeManager(), nil).Shutdown(context.Background()))
}
