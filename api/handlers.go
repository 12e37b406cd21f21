/*
handlers.go - HTTP API handlers for the booking engine

PURPOSE:
  Exposes the reservation core via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Resources:
    GET    /api/resources?owner=         List an owner's resources
    POST   /api/resources                Create resource + generated slots
    GET    /api/resources/{id}           Get resource details
    PUT    /api/resources/{id}           Edit descriptive fields
    PUT    /api/resources/{id}/active    Activate/deactivate
    DELETE /api/resources/{id}           Delete resource (cascades)
    GET    /api/resources/{id}/slots     List slots (?open=true filters)
    GET    /api/resources/{id}/stats     Fill rate and remaining capacity

  Bookings:
    POST   /api/bookings                 Claim a slot unit
    POST   /api/bookings/{id}/cancel     Release a claim
    POST   /api/bookings/{id}/complete   Mark attendance

  Actors:
    GET    /api/actors/{id}/bookings     Booking history (?status= filters)
    GET    /api/actors/{id}/stats        Hours, points, counts

  Reports:
    GET    /api/leaderboard              Ranked actors (?by=points|hours)

  Admin:
    POST   /api/admin/reconcile          Repair drifted slot counters

  Scenarios (scenarios.go):
    GET    /api/scenarios                List demo scenarios
    GET    /api/scenarios/current        Most recently loaded scenario
    POST   /api/scenarios/load           Load demo data

IDENTITY:
  The acting identity arrives pre-validated in the X-Actor-ID header
  (or request body for book/create). There is no authentication layer
  here; an upstream gateway is expected to supply trusted identities.

ERROR HANDLING:
  Domain errors map onto HTTP statuses:
  - 400: Validation errors, invalid input
  - 403: Actor not allowed to act on the target
  - 404: Resource/slot/booking not found
  - 409: Slot full, duplicate booking, bad status transition
  - 410: Resource deactivated
  - 429: Rate limit exceeded (see ratelimit.go)
  - 503: Persistent contention, with Retry-After
  - 500: Storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - booking/errors.go: The error taxonomy translated here
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/volunteerhub/booking-engine/booking"
	"github.com/volunteerhub/booking-engine/reporting"
)

// actorHeader carries the pre-validated acting identity.
const actorHeader = "X-Actor-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *booking.Service
	Reporter *reporting.Reporter

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over the booking service and reporter.
func NewHandler(svc *booking.Service, rep *reporting.Reporter) *Handler {
	return &Handler{Service: svc, Reporter: rep}
}

// =============================================================================
// RESOURCE HANDLERS
// =============================================================================

// CreateResource creates a resource and generates its slots.
func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OwnerID == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "owner_id and title are required", nil)
		return
	}
	if req.SlotCapacity <= 0 {
		writeError(w, http.StatusBadRequest, "slot_capacity must be positive", nil)
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}
	if endDate.Before(startDate) {
		writeError(w, http.StatusBadRequest, "end_date before start_date", nil)
		return
	}

	res, slots, err := h.Service.CreateResource(r.Context(), booking.Resource{
		OwnerID:      booking.ActorID(req.OwnerID),
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		Category:     req.Category,
		StartDate:    startDate,
		EndDate:      endDate,
		SlotCapacity: req.SlotCapacity,
	})
	if err != nil {
		writeDomainError(w, "Failed to create resource", err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Resource ResourceDTO `json:"resource"`
		Slots    []SlotDTO   `json:"slots"`
	}{toResourceDTO(res), toSlotDTOs(slots)})
}

// ListResources returns the resources owned by ?owner=.
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner query parameter is required", nil)
		return
	}

	resources, err := h.Service.ListResources(r.Context(), booking.ActorID(owner))
	if err != nil {
		writeDomainError(w, "Failed to list resources", err)
		return
	}

	dtos := make([]ResourceDTO, len(resources))
	for i := range resources {
		dtos[i] = toResourceDTO(&resources[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetResource returns a single resource.
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id := booking.ResourceID(chi.URLParam(r, "id"))

	res, err := h.Service.GetResource(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get resource", err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceDTO(res))
}

// UpdateResource edits a resource's descriptive fields. Owner only.
func (h *Handler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	id := booking.ResourceID(chi.URLParam(r, "id"))
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req UpdateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Service.UpdateResource(r.Context(), id, actor, booking.ResourceUpdate{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Category:    req.Category,
	})
	if err != nil {
		writeDomainError(w, "Failed to update resource", err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceDTO(res))
}

// SetResourceActive toggles the active flag. Owner or admin only.
func (h *Handler) SetResourceActive(w http.ResponseWriter, r *http.Request) {
	id := booking.ResourceID(chi.URLParam(r, "id"))
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Service.SetResourceActive(r.Context(), id, actor, req.Active); err != nil {
		writeDomainError(w, "Failed to update resource", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteResource removes a resource and everything under it.
func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	id := booking.ResourceID(chi.URLParam(r, "id"))
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteResource(r.Context(), id, actor); err != nil {
		writeDomainError(w, "Failed to delete resource", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSlots returns a resource's slots; ?open=true keeps only bookable
// ones.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	id := booking.ResourceID(chi.URLParam(r, "id"))
	onlyOpen := r.URL.Query().Get("open") == "true"

	slots, err := h.Service.ListSlots(r.Context(), id, onlyOpen)
	if err != nil {
		writeDomainError(w, "Failed to list slots", err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotDTOs(slots))
}

// GetResourceStats returns fill rate and remaining capacity.
func (h *Handler) GetResourceStats(w http.ResponseWriter, r *http.Request) {
	id := booking.ResourceID(chi.URLParam(r, "id"))

	stats, err := h.Reporter.ResourceStats(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to compute resource stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// Book claims one unit of capacity in a slot.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ResourceID == "" || req.SlotID == "" || req.ClaimantID == "" {
		writeError(w, http.StatusBadRequest, "resource_id, slot_id and claimant_id are required", nil)
		return
	}

	b, err := h.Service.Book(r.Context(),
		booking.ResourceID(req.ResourceID),
		booking.SlotID(req.SlotID),
		booking.ActorID(req.ClaimantID))
	if err != nil {
		writeDomainError(w, "Failed to book slot", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(b))
}

// CancelBooking releases a claim. Claimant or resource owner only.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id := booking.BookingID(chi.URLParam(r, "id"))
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	b, err := h.Service.Cancel(r.Context(), id, actor)
	if err != nil {
		writeDomainError(w, "Failed to cancel booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// CompleteBooking marks attendance. Resource owner only.
func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	id := booking.BookingID(chi.URLParam(r, "id"))
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	b, err := h.Service.Complete(r.Context(), id, actor)
	if err != nil {
		writeDomainError(w, "Failed to complete booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// =============================================================================
// ACTOR HANDLERS
// =============================================================================

// ListActorBookings returns a claimant's booking history.
func (h *Handler) ListActorBookings(w http.ResponseWriter, r *http.Request) {
	actor := booking.ActorID(chi.URLParam(r, "id"))

	var status *booking.BookingStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := booking.BookingStatus(s)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid status filter", nil)
			return
		}
		status = &st
	}

	bookings, err := h.Service.ListBookings(r.Context(), actor, status)
	if err != nil {
		writeDomainError(w, "Failed to list bookings", err)
		return
	}

	dtos := make([]BookingDTO, len(bookings))
	for i := range bookings {
		dtos[i] = toBookingDTO(&bookings[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetActorStats returns hours, points and booking counts for one actor.
func (h *Handler) GetActorStats(w http.ResponseWriter, r *http.Request) {
	actor := booking.ActorID(chi.URLParam(r, "id"))

	stats, err := h.Reporter.ActorStats(r.Context(), actor)
	if err != nil {
		writeDomainError(w, "Failed to compute actor stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetLeaderboard returns ranked actors; ?by=hours switches metrics.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	var (
		board []reporting.LeaderboardEntry
		err   error
	)
	switch by := r.URL.Query().Get("by"); by {
	case "", "points":
		board, err = h.Reporter.Leaderboard(r.Context())
	case "hours":
		board, err = h.Reporter.HoursLeaderboard(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "by must be points or hours", nil)
		return
	}
	if err != nil {
		writeDomainError(w, "Failed to compute leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Reconcile recomputes slot counters from the booking ledger.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	repairs, err := h.Service.Reconcile(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to reconcile slots", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{Repairs: toRepairDTOs(repairs)})
}

// =============================================================================
// HELPERS
// =============================================================================

func requireActor(w http.ResponseWriter, r *http.Request) (booking.ActorID, bool) {
	actor := r.Header.Get(actorHeader)
	if actor == "" {
		writeError(w, http.StatusBadRequest, actorHeader+" header is required", nil)
		return "", false
	}
	return booking.ActorID(actor), true
}

// writeDomainError translates the error taxonomy into HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotFull),
		errors.Is(err, booking.ErrDuplicateBooking),
		errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, booking.ErrSlotClosed):
		writeError(w, http.StatusGone, message, err)
	case errors.Is(err, booking.ErrContention):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, message, err)
	case booking.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
