package middleware

import (
	"net/http"
	"strconv"

	"github.com/platinummonkey/flowdeck/pkg/observability"
)

// PrincipalHeader carries the numeric id of the acting user. Identity
// is established upstream (gateway or session layer); this service
// only resolves what the identified user may do.
const PrincipalHeader = "X-Flowdeck-User"

// PrincipalMiddleware extracts the acting user from the request header
// and attaches it to the context. Requests without a parseable
// principal are rejected before reaching any handler.
type PrincipalMiddleware struct {
	optional bool
}

// NewPrincipalMiddleware creates a new principal middleware. When
// optional is true, requests without the header pass through without a
// principal in context.
func NewPrincipalMiddleware(optional bool) *PrincipalMiddleware {
	return &PrincipalMiddleware{optional: optional}
}

// Handler wraps an HTTP handler with principal extraction
func (m *PrincipalMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(PrincipalHeader)
		if raw == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorizedResponse(w, "missing "+PrincipalHeader+" header")
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			m.unauthorizedResponse(w, "invalid "+PrincipalHeader+" header")
			return
		}

		ctx := observability.WithPrincipalID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *PrincipalMiddleware) unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// GetPrincipal extracts the acting user's id from the request. The
// second return is false when no principal was attached.
func GetPrincipal(r *http.Request) (int64, bool) {
	return observability.GetPrincipalID(r.Context())
}
