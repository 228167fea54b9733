package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/alphabot-ai/gripeboard/internal/auth"
	"github.com/alphabot-ai/gripeboard/internal/config"
	"github.com/alphabot-ai/gripeboard/internal/moderation"
	"github.com/alphabot-ai/gripeboard/internal/ratelimit"
	"github.com/alphabot-ai/gripeboard/internal/store"
	"go.uber.org/zap"
)

// Handler holds dependencies for API handlers
type Handler struct {
	store    store.Store
	auth     *auth.Service
	gate     *moderation.Gate
	rescorer *moderation.Rescorer
	limiter  ratelimit.Limiter
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(s store.Store, authSvc *auth.Service, gate *moderation.Gate, limiter ratelimit.Limiter, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    s,
		auth:     authSvc,
		gate:     gate,
		rescorer: moderation.NewRescorer(gate, cfg.Moderation.RescoreWorkers, logger),
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Response helpers

type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeRateLimited(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:      "rate limit exceeded",
		RetryAfter: retryAfter,
	})
}

// errorStatus maps moderation and auth errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, moderation.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, moderation.ErrMissingField),
		errors.Is(err, moderation.ErrInvalidReason),
		errors.Is(err, moderation.ErrInvalidTimeWasted),
		errors.Is(err, moderation.ErrDuplicateAction):
		return http.StatusBadRequest
	case errors.Is(err, moderation.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeActionError writes err for a moderation action. Storage failures get a
// generic per-action message; duplicates name the action.
func writeActionError(w http.ResponseWriter, err error, action string) {
	status := errorStatus(err)
	switch {
	case status == http.StatusInternalServerError:
		writeError(w, status, "Failed to "+action+". Please try again.")
	case errors.Is(err, moderation.ErrDuplicateAction):
		writeError(w, status, "Already "+pastTense(action)+" this submission")
	case errors.Is(err, moderation.ErrNotFound):
		writeError(w, status, "Submission not found")
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, status, "User not found")
	case errors.Is(err, moderation.ErrUnauthenticated):
		writeError(w, status, "Must be signed in to "+action)
	default:
		writeError(w, status, err.Error())
	}
}

func pastTense(action string) string {
	switch action {
	case "flag":
		return "flagged"
	default:
		return action + "d"
	}
}

// Request helpers

func (h *Handler) getClientIP(r *http.Request) string {
	// Check X-Forwarded-For first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	// Check X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to RemoteAddr
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func (h *Handler) getToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// checkRateLimit keys on the hashed client IP plus the caller identity when
// one is known and reports what is left in X-RateLimit-Remaining. Limiter
// errors fail open.
func (h *Handler) checkRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int) (bool, int) {
	key := action + ":" + auth.HashIP(h.getClientIP(r))
	if identity := GetIdentityFromContext(r.Context()); identity != "" {
		key += ":" + identity
	}

	ctx := r.Context()
	allowed, err := h.limiter.Allow(ctx, key, limit, h.cfg.RateLimitWindow)
	if err != nil {
		h.logger.Warn("rate limiter unavailable", zap.String("action", action), zap.Error(err))
		return true, 0
	}
	if remaining, err := h.limiter.Remaining(ctx, key, limit); err == nil {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	}
	if allowed {
		return true, 0
	}

	retryAfter, err := h.limiter.RetryAfter(ctx, key)
	if err != nil {
		retryAfter = h.cfg.RateLimitWindow
	}
	return false, int(retryAfter.Seconds())
}

func (h *Handler) isAdmin(r *http.Request) bool {
	secret := r.Header.Get("X-Admin-Secret")
	return h.cfg.AdminSecret != "" && secret == h.cfg.AdminSecret
}

// minutes accepts a JSON number or a numeric string, truncating fractions.
type minutes int

func (m *minutes) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.New("timeWasted must be a number")
	}
	if math.IsNaN(f) || f >= math.MaxInt32 || f <= math.MinInt32 {
		return errors.New("timeWasted is out of range")
	}
	*m = minutes(int(f))
	return nil
}
