// Package api exposes the admission gateway's HTTP surface: the decision
// endpoint, window inspection, and the tier/override management API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"admission/internal/limiter"
	"admission/internal/models"
	"admission/internal/tiers"
)

// Handlers contains HTTP handlers for the admission API.
type Handlers struct {
	store    tiers.Store
	registry *limiter.Registry
}

// NewHandlers creates a new handlers instance.
func NewHandlers(store tiers.Store, registry *limiter.Registry) *Handlers {
	return &Handlers{
		store:    store,
		registry: registry,
	}
}

// Decide handles admission decision requests.
// POST /api/v1/decisions
//
// A denial is a successful decision: the response is 200 with allowed=false.
// Error envelopes are reserved for malformed requests and internal faults.
func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	var req models.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	at := time.Now().UTC()
	if req.Timestamp != nil {
		at = req.Timestamp.UTC()
	}

	tier, l, err := h.registry.Resolve(req.Identity)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	allowed, info, err := l.Allow(req.Identity, at)
	if err != nil {
		if errors.Is(err, limiter.ErrInvalidTimestamp) {
			h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
			return
		}
		slog.Error("Admission decision failed", "identity", req.Identity, "tier", tier, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Admission decision failed")
		return
	}

	resp := models.DecisionResponse{
		Allowed:         allowed,
		Identity:        req.Identity,
		Tier:            tier,
		MinuteLimit:     info.MinuteLimit,
		MinuteRemaining: info.MinuteRemaining,
		HourLimit:       info.HourLimit,
		HourRemaining:   info.HourRemaining,
		ResetAt:         info.ResetAt,
	}
	if !allowed {
		resp.RetryAfterSeconds = int(math.Ceil(info.RetryAfter.Seconds()))
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

// GetWindow handles window inspection requests.
// GET /api/v1/identities/{identity}/window
func (h *Handlers) GetWindow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identity := vars["identity"]

	tier, l, err := h.registry.Resolve(identity)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	window, ok := l.Window(identity)
	if !ok {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
			fmt.Sprintf("No open window for identity %s", identity))
		return
	}

	buckets := make([]models.BucketCount, 0, len(window.Buckets))
	for key, count := range window.Buckets {
		buckets = append(buckets, models.BucketCount{
			MinuteStart: time.UnixMilli(key).UTC(),
			Count:       count,
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].MinuteStart.Before(buckets[j].MinuteStart) })

	h.writeJSONResponse(w, http.StatusOK, models.WindowResponse{
		Identity:  identity,
		Tier:      tier,
		HourStart: window.HourStart,
		HourCount: window.HourCount,
		Buckets:   buckets,
	})
}

// ListTiers handles tier catalog list requests.
// GET /api/v1/tiers
func (h *Handlers) ListTiers(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.Tiers(r.Context())
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	resp := models.ListTiersResponse{
		Tiers:      make([]models.TierResponse, 0, len(all)),
		TotalCount: len(all),
	}
	for _, t := range all {
		var tr models.TierResponse
		tr.FromTier(t)
		resp.Tiers = append(resp.Tiers, tr)
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// GetTier handles single tier lookups.
// GET /api/v1/tiers/{name}
func (h *Handlers) GetTier(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	t, err := h.store.GetTier(r.Context(), name)
	if err != nil {
		if errors.Is(err, tiers.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
				fmt.Sprintf("Tier %s not found", name))
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	var tr models.TierResponse
	tr.FromTier(t)
	h.writeJSONResponse(w, http.StatusOK, tr)
}

// CreateTier handles tier creation.
// POST /api/v1/tiers
func (h *Handlers) CreateTier(w http.ResponseWriter, r *http.Request) {
	var req models.SaveTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	h.saveTier(w, r, req.Name, req, http.StatusCreated)
}

// UpdateTier handles tier upserts addressed by name.
// PUT /api/v1/tiers/{name}
func (h *Handlers) UpdateTier(w http.ResponseWriter, r *http.Request) {
	var req models.SaveTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	h.saveTier(w, r, mux.Vars(r)["name"], req, http.StatusOK)
}

// saveTier persists a tier and swaps its limiter in the registry. Replacing a
// tier resets the accumulated windows of identities assigned to it.
func (h *Handlers) saveTier(w http.ResponseWriter, r *http.Request, name string, req models.SaveTierRequest, okStatus int) {
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	tier := models.Tier{
		Name:         name,
		MaxPerMinute: req.MaxPerMinute,
		MaxPerHour:   req.MaxPerHour,
	}
	tier.Normalize()
	if err := tier.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	if existing, err := h.store.GetTier(r.Context(), tier.Name); err == nil {
		tier.CreatedAt = existing.CreatedAt
	}
	tier.UpdatedAt = time.Now().UTC()
	if tier.CreatedAt.IsZero() {
		tier.CreatedAt = tier.UpdatedAt
	}

	if err := h.store.SaveTier(r.Context(), &tier); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	if err := h.registry.SetTier(tier); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	var tr models.TierResponse
	tr.FromTier(&tier)
	h.writeJSONResponse(w, okStatus, tr)
}

// DeleteTier handles tier removal. The default tier and tiers still referenced
// by overrides cannot be removed.
// DELETE /api/v1/tiers/{name}
func (h *Handlers) DeleteTier(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if name == h.registry.DefaultTier() {
		h.writeErrorResponse(w, http.StatusConflict, models.ErrorCodeConflict,
			fmt.Sprintf("Cannot delete default tier %s", name))
		return
	}

	if err := h.store.DeleteTier(r.Context(), name); err != nil {
		switch {
		case errors.Is(err, tiers.ErrNotFound):
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
				fmt.Sprintf("Tier %s not found", name))
		case errors.Is(err, tiers.ErrTierInUse):
			h.writeErrorResponse(w, http.StatusConflict, models.ErrorCodeConflict,
				fmt.Sprintf("Tier %s is still referenced by overrides", name))
		default:
			h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		}
		return
	}

	if err := h.registry.RemoveTier(name); err != nil {
		slog.Warn("Tier removed from store but not registry", "tier", name, "error", err)
	}

	h.writeJSONResponse(w, http.StatusOK, models.DeleteResponse{
		Name:    name,
		Message: "Tier deleted",
	})
}

// ListOverrides handles override list requests.
// GET /api/v1/overrides
func (h *Handlers) ListOverrides(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.Overrides(r.Context())
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	resp := models.ListOverridesResponse{
		Overrides:  make([]models.OverrideResponse, 0, len(all)),
		TotalCount: len(all),
	}
	for _, o := range all {
		resp.Overrides = append(resp.Overrides, models.OverrideResponse{
			Identity:  o.Identity,
			Tier:      o.Tier,
			CreatedAt: o.CreatedAt,
		})
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// GetOverride handles single override lookups.
// GET /api/v1/overrides/{identity}
func (h *Handlers) GetOverride(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]

	o, err := h.store.GetOverride(r.Context(), identity)
	if err != nil {
		if errors.Is(err, tiers.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
				fmt.Sprintf("No override for identity %s", identity))
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.OverrideResponse{
		Identity:  o.Identity,
		Tier:      o.Tier,
		CreatedAt: o.CreatedAt,
	})
}

// SaveOverride assigns an identity to a tier.
// PUT /api/v1/overrides/{identity}
func (h *Handlers) SaveOverride(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]

	var req models.SaveOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	override := models.Override{
		Identity:  identity,
		Tier:      req.Tier,
		CreatedAt: time.Now().UTC(),
	}
	if err := override.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	if err := h.store.SaveOverride(r.Context(), &override); err != nil {
		if errors.Is(err, tiers.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
				fmt.Sprintf("Tier %s not found", req.Tier))
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	if err := h.registry.SetOverride(identity, req.Tier); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.OverrideResponse{
		Identity:  override.Identity,
		Tier:      override.Tier,
		CreatedAt: override.CreatedAt,
	})
}

// DeleteOverride returns an identity to the default tier.
// DELETE /api/v1/overrides/{identity}
func (h *Handlers) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]

	if err := h.store.DeleteOverride(r.Context(), identity); err != nil {
		if errors.Is(err, tiers.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
				fmt.Sprintf("No override for identity %s", identity))
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	h.registry.RemoveOverride(identity)

	h.writeJSONResponse(w, http.StatusOK, models.DeleteResponse{
		Name:    identity,
		Message: "Override deleted",
	})
}

// HealthCheck handles health check requests.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)

	if err := h.store.Ping(r.Context()); err != nil {
		response.Status = models.StatusDegraded
		response.AddComponent("tier_store", models.StatusUnhealthy, err.Error())
	} else {
		response.AddComponent("tier_store", models.StatusHealthy, "Tier catalog is reachable")
	}

	if len(h.registry.Tiers()) == 0 {
		response.Status = models.StatusUnhealthy
		response.AddComponent("limiters", models.StatusUnhealthy, "No tiers registered")
	} else {
		response.AddComponent("limiters", models.StatusHealthy, "Limiters are operational")
	}

	status := http.StatusOK
	if response.Status == models.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, status, response)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more to send.
		slog.Error("Error encoding JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}
