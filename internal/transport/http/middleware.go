package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"fleet-monitor/compliance/internal/auth"
	"fleet-monitor/compliance/internal/logger"
)

type Role string

const (
	RoleFleet      Role = "FLEET"
	RoleSupervisor Role = "SUPERVISOR"
	RoleOwner      Role = "OWNER"
)

// Principal is the caller as described by the role headers. For FLEET
// callers FleetID comes from the API key when the key carries one.
type Principal struct {
	Role      Role
	VehicleID string
	FleetID   string
}

type principalKey struct{}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type AuthMiddleware struct {
	auth *auth.Authenticator
}

func NewAuthMiddleware(a *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

// Require admits callers whose X-Role is one of roles. FLEET callers must
// also present a valid X-API-Key.
func (m *AuthMiddleware) Require(roles ...Role) mux.MiddlewareFunc {
	allowed := make(map[Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := Role(strings.ToUpper(strings.TrimSpace(r.Header.Get("X-Role"))))
			if role == "" {
				respondError(w, http.StatusUnauthorized, "missing X-Role header")
				return
			}
			switch role {
			case RoleFleet, RoleSupervisor, RoleOwner:
			default:
				respondError(w, http.StatusUnauthorized, "unknown role")
				return
			}
			if !allowed[role] {
				respondError(w, http.StatusForbidden, "role not permitted")
				return
			}

			p := Principal{
				Role:      role,
				VehicleID: r.Header.Get("X-Vehicle-ID"),
				FleetID:   r.Header.Get("X-Fleet-ID"),
			}

			if role == RoleFleet {
				apiKey := r.Header.Get("X-API-Key")
				if apiKey == "" {
					respondError(w, http.StatusUnauthorized, "missing X-API-Key header")
					return
				}
				fleetID, ok := m.auth.Resolve(r.Context(), apiKey)
				if !ok {
					respondError(w, http.StatusUnauthorized, "invalid API key")
					return
				}
				if fleetID != "" {
					p.FleetID = fleetID
				}
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http_request", r.Method+" "+r.URL.Path,
			"status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}
