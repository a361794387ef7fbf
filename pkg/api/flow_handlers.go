package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/flowdeck/pkg/httputil"
	"github.com/platinummonkey/flowdeck/pkg/lifecycle"
	"github.com/platinummonkey/flowdeck/pkg/middleware"
	"github.com/platinummonkey/flowdeck/pkg/storage"
)

type createFlowRequest struct {
	Name     string          `json:"name"`
	Document json.RawMessage `json:"document,omitempty"`
}

// listFlows returns every flow in the project the principal may see.
func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "principal required")
		return
	}

	publicID, ok := httputil.ParsePathStringOrError(w, r, "public_id")
	if !ok {
		return
	}

	visible, err := s.access.ListVisibleFlows(r.Context(), userID, publicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "project not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"flows": visible,
	})
}

func (s *Server) createFlow(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "principal required")
		return
	}

	publicID, ok := httputil.ParsePathStringOrError(w, r, "public_id")
	if !ok {
		return
	}

	var req createFlowRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	flow, err := s.coordinator.CreateFlow(r.Context(), userID, publicID, req.Name, string(req.Document))
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrPermissionDenied):
			httputil.WriteForbidden(w, "flow creation not permitted")
		case errors.Is(err, storage.ErrNotFound):
			httputil.WriteNotFoundError(w, "project not found")
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteCreated(w, flow)
}

// flowPermission resolves the principal's effective grant for a flow.
func (s *Server) flowPermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "principal required")
		return
	}

	flowID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	grant, err := s.access.ResolveFlowPermission(r.Context(), userID, flowID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "flow not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"grant": grant,
	})
}

// updateFlowDocument shallow-merges the request body into the flow's
// document: keys present in the body override, absent keys survive.
func (s *Server) updateFlowDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "principal required")
		return
	}

	flowID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var partial map[string]json.RawMessage
	if !httputil.ParseJSONOrError(w, r, &partial) {
		return
	}
	body, err := json.Marshal(partial)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid document")
		return
	}

	outcome, err := s.coordinator.UpdateFlowDocument(r.Context(), userID, flowID, string(body))
	switch outcome {
	case lifecycle.OutcomeOK:
		httputil.WriteSuccess(w, map[string]interface{}{
			"updated": true,
		})
	case lifecycle.OutcomeNotFound:
		httputil.WriteNotFoundError(w, "flow not found")
	case lifecycle.OutcomeDenied:
		httputil.WriteForbidden(w, "flow update not permitted")
	default:
		if err != nil {
			httputil.WriteInternalError(w, err)
		} else {
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "storage failure")
		}
	}
}

func (s *Server) deleteFlow(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "principal required")
		return
	}

	flowID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	outcome, err := s.coordinator.DeleteFlow(r.Context(), userID, flowID)
	s.writeDeleteOutcome(w, outcome, err, "flow")
}
