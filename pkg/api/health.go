package api

import (
	"net/http"

	"github.com/cuemby/poanet/pkg/metrics"
)

// readyHandler probes the roster before reporting readiness, so a roster
// that became unreadable since the last collection flips /ready at once.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.manager.ListNetworks(); err != nil {
		metrics.UpdateComponent(metrics.ComponentRoster, false, err.Error())
	} else {
		metrics.UpdateComponent(metrics.ComponentRoster, true, "")
	}
	metrics.ReadyHandler()(w, r)
}
