// Package httpapi adapts gateway verdicts to HTTP: status codes, rate-limit
// headers and identity plumbing for route handlers.
package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Khaledaun/orion-console/internal/auth"
	"github.com/Khaledaun/orion-console/internal/gateway"
	"github.com/Khaledaun/orion-console/internal/obs"
)

// PlainHandler is a route that only needs the authorization gate; the
// resolved identity is still available via auth.IdentityFromContext.
type PlainHandler func(http.ResponseWriter, *http.Request)

// RoleAwareHandler receives the resolved identity directly. The handler kind
// is chosen at registration time, never inferred at call time.
type RoleAwareHandler func(http.ResponseWriter, *http.Request, auth.Identity)

// API is the HTTP layer over the gateway.
type API struct {
	mux *http.ServeMux
	gw  *gateway.Gateway
}

func New(gw *gateway.Gateway) *API {
	a := &API{mux: http.NewServeMux(), gw: gw}
	a.mux.HandleFunc("/healthz", a.healthz)
	a.mux.Handle("/metrics", obs.Handler())
	return a
}

// Handle registers a plain protected route.
func (a *API) Handle(pattern string, requirement gateway.Requirement, h PlainHandler) {
	a.mux.HandleFunc(pattern, a.protect(requirement, func(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
		h(w, r)
	}))
}

// HandleIdentity registers a role-aware protected route.
func (a *API) HandleIdentity(pattern string, requirement gateway.Requirement, h RoleAwareHandler) {
	a.mux.HandleFunc(pattern, a.protect(requirement, h))
}

// Handler returns the composed server handler.
func (a *API) Handler() http.Handler {
	return obs.Instrument(Logging(a.mux))
}

func (a *API) protect(requirement gateway.Requirement, next RoleAwareHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := gateway.Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			Header:   r.Header,
			Cookies:  r.Cookies(),
			RemoteIP: clientIP(r),
		}
		res, err := a.gw.Authorize(r.Context(), req, requirement)
		setRateLimitHeaders(w, res)
		if err != nil {
			respondAuthError(w, err, res)
			return
		}
		ctx := auth.ContextWithIdentity(r.Context(), res.Identity)
		next(w, r.WithContext(ctx), res.Identity)
	}
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func setRateLimitHeaders(w http.ResponseWriter, res gateway.AuthResult) {
	if res.RateLimit.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.RateLimit.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.RateLimit.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.RateLimit.ResetAt.Unix(), 10))
}

func respondAuthError(w http.ResponseWriter, err error, res gateway.AuthResult) {
	switch {
	case errors.Is(err, gateway.ErrRateLimited):
		retry := int(time.Until(res.RateLimit.ResetAt).Seconds())
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, auth.ErrForbidden):
		w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, auth.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondError(w, http.StatusUnauthorized, "unauthorized")
	default:
		respondError(w, http.StatusInternalServerError, "authorization error")
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Logging emits method, path, status and duration as a JSON line.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		obs.LogEvent(map[string]any{
			"ts":          time.Now().UTC().Format(time.RFC3339Nano),
			"level":       "info",
			"msg":         "request",
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.code,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For support (first IP)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
