package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/containerd/errdefs"
	"github.com/cuemby/poanet/pkg/manager"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// MessageResponse is the envelope of a successful mutating call
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the envelope of a failed call
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateNetworkBody is the JSON body of POST /api/networks
type CreateNetworkBody struct {
	Name      string `json:"networkName"`
	ChainID   int64  `json:"chainId"`
	BlockTime uint64 `json:"blockTime"`
}

// AddNodeBody is the JSON body of POST /api/networks/{network}/nodes
type AddNodeBody struct {
	Name           string `json:"nodeName"`
	Password       string `json:"password"`
	Role           string `json:"nodeType"`
	InitialBalance string `json:"initialBalance,omitempty"`
}

// CreateNetworkResponse is returned by network creation
type CreateNetworkResponse struct {
	Message string         `json:"message"`
	Network *types.Network `json:"network"`
}

// AddNodeResponse is returned by node creation
type AddNodeResponse struct {
	Message string      `json:"message"`
	Node    *types.Node `json:"node"`
}

// LogsResponse carries the logs of a node container
type LogsResponse struct {
	Network string `json:"networkName"`
	Node    string `json:"nodeName"`
	Logs    string `json:"logs"`
}

func (s *Server) listNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := s.manager.ListNetworks()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, networks)
}

func (s *Server) createNetwork(w http.ResponseWriter, r *http.Request) {
	var body CreateNetworkBody
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	network, err := s.manager.CreateNetwork(r.Context(), manager.CreateNetworkRequest{
		Name:      body.Name,
		ChainID:   body.ChainID,
		BlockTime: body.BlockTime,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateNetworkResponse{
		Message: fmt.Sprintf("Network %s configured and activated successfully.", network.Name),
		Network: network,
	})
}

func (s *Server) getNetwork(w http.ResponseWriter, r *http.Request) {
	network, err := s.manager.GetNetwork(mux.Vars(r)["network"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, network)
}

func (s *Server) removeNetwork(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["network"]
	if err := s.manager.RemoveNetwork(r.Context(), name); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Network %s removed successfully.", name)
}

func (s *Server) startNetwork(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["network"]
	if err := s.manager.StartNetwork(r.Context(), name); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Network %s started successfully.", name)
}

func (s *Server) stopNetwork(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["network"]
	if err := s.manager.StopNetwork(r.Context(), name); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Network %s stopped successfully.", name)
}

func (s *Server) networkStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.manager.NetworkStatus(r.Context(), mux.Vars(r)["network"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) genesis(w http.ResponseWriter, r *http.Request) {
	doc, err := s.manager.Genesis(mux.Vars(r)["network"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) addNode(w http.ResponseWriter, r *http.Request) {
	network := mux.Vars(r)["network"]

	var body AddNodeBody
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	node, err := s.manager.AddNode(r.Context(), manager.AddNodeRequest{
		Network:        network,
		Node:           body.Name,
		Password:       body.Password,
		Role:           types.NodeRole(body.Role),
		InitialBalance: body.InitialBalance,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddNodeResponse{
		Message: fmt.Sprintf("Node %s added and started successfully in network %s.", node.Name, network),
		Node:    node,
	})
}

func (s *Server) removeNode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.manager.RemoveNode(r.Context(), vars["network"], vars["node"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Node %s removed successfully from network %s.", vars["node"], vars["network"])
}

func (s *Server) startNode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.manager.StartNode(r.Context(), vars["network"], vars["node"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Node %s started successfully in network %s.", vars["node"], vars["network"])
}

func (s *Server) stopNode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.manager.StopNode(r.Context(), vars["network"], vars["node"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Node %s stopped successfully in network %s.", vars["node"], vars["network"])
}

func (s *Server) nodeLogs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	logs, err := s.manager.NodeLogs(r.Context(), vars["network"], vars["node"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LogsResponse{Network: vars["network"], Node: vars["node"], Logs: logs})
}

func (s *Server) nodeHealth(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	report, err := s.manager.NodeHealth(r.Context(), vars["network"], vars["node"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	code := http.StatusOK
	if !report.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func (s *Server) checkDrift(w http.ResponseWriter, r *http.Request) {
	drifts, err := s.drift.Check(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drifts)
}

// StatusCode maps an error to its HTTP status. Unavailable is checked first:
// provisioning failures wrap the kind of their cause as well, and the
// provisioning kind is the one that describes the request.
func StatusCode(err error) int {
	switch {
	case errdefs.IsUnavailable(err):
		return http.StatusBadGateway
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsAlreadyExists(err):
		return http.StatusConflict
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsFailedPrecondition(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	event := s.logger.Warn()
	if code >= http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", code).Msg("Request failed")
	writeError(w, code, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body exceeds %d bytes", types.ErrValidation, maxErr.Limit)
		}
		return fmt.Errorf("%w: invalid request body: %w", types.ErrValidation, err)
	}
	return nil
}

func writeMessage(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf(format, args...)})
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
