package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/flowdeck/pkg/httputil"
	"github.com/platinummonkey/flowdeck/pkg/lifecycle"
	"github.com/platinummonkey/flowdeck/pkg/middleware"
	"github.com/platinummonkey/flowdeck/pkg/storage"
)

type createProjectRequest struct {
	Name string `json:"name"`
}

// listProjects returns every project the principal may see, user-granted
// projects first.
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "principal required")
		return
	}

	visible, err := s.access.ListVisibleProjects(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "unknown user")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"projects": visible,
	})
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "principal required")
		return
	}

	var req createProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	project, err := s.coordinator.CreateProject(r.Context(), userID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrPermissionDenied):
			httputil.WriteForbidden(w, "project creation not permitted")
		case errors.Is(err, storage.ErrNotFound):
			httputil.WriteNotFoundError(w, "unknown user")
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteCreated(w, project)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "principal required")
		return
	}

	publicID, ok := httputil.ParsePathStringOrError(w, r, "public_id")
	if !ok {
		return
	}

	outcome, err := s.coordinator.DeleteProject(r.Context(), userID, publicID)
	s.writeDeleteOutcome(w, outcome, err, "project")
}

// projectPermission resolves the principal's effective grant for a
// project. A grant of null means no access signal exists for this user.
func (s *Server) projectPermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "principal required")
		return
	}

	publicID, ok := httputil.ParsePathStringOrError(w, r, "public_id")
	if !ok {
		return
	}

	grant, err := s.access.ResolveProjectPermission(r.Context(), userID, publicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "project not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"grant": grant,
	})
}

// writeDeleteOutcome maps a lifecycle delete outcome onto the HTTP
// response contract shared by project and flow deletion. Storage
// failures are logged server-side; clients only see a generic message.
func (s *Server) writeDeleteOutcome(w http.ResponseWriter, outcome lifecycle.Outcome, err error, kind string) {
	switch outcome {
	case lifecycle.OutcomeOK:
		httputil.WriteSuccess(w, map[string]interface{}{
			"deleted": true,
		})
	case lifecycle.OutcomeNotFound:
		httputil.WriteNotFoundError(w, kind+" not found")
	case lifecycle.OutcomeDenied:
		httputil.WriteJSON(w, http.StatusForbidden, map[string]interface{}{
			"deleted": false,
			"error":   kind + " deletion not permitted",
		})
	default:
		s.logger.WithError(err).WithField("kind", kind).Error("delete failed")
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"deleted": false,
			"error":   kind + " deletion failed",
		})
	}
}
