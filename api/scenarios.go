/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates resources, slots,
	and bookings that demonstrate specific behaviors.

AVAILABLE SCENARIOS:

	community-day:     One resource with a handful of confirmed bookings
	busy-weekend:      Two resources, one slot booked to capacity (closed)
	volunteer-history: Completed and cancelled bookings so the
	                   leaderboard and actor stats have data

HOW SCENARIOS WORK:
 1. Create resources via the service (slots are generated)
 2. Book slots for the demo volunteers
 3. Optionally cancel or complete some bookings

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-weekend"}

NOTE:

	Scenarios add data on top of whatever the store holds; they do not
	reset it. The demo claimants (vol-demo-*) must be bookable under the
	configured authorizer, which holds for the default fixed-role setup.
	Only use in development/demo environments.

SEE ALSO:
  - server.go: scenario routes
  - booking/service.go: the operations each loader drives
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/volunteerhub/booking-engine/booking"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "community-day",
		Name:        "Community Day",
		Description: "One event with a few confirmed bookings",
	},
	{
		ID:          "busy-weekend",
		Name:        "Busy Weekend",
		Description: "Two events, one slot booked to capacity and closed",
	},
	{
		ID:          "volunteer-history",
		Name:        "Volunteer History",
		Description: "Completed and cancelled bookings for leaderboard demos",
	},
}

const demoOwner = booking.ActorID("org-demo")

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario populates the store with one of the pre-built scenarios.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "community-day":
		err = h.loadCommunityDay(ctx)
	case "busy-weekend":
		err = h.loadBusyWeekend(ctx)
	case "volunteer-history":
		err = h.loadVolunteerHistory(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) createDemoResource(ctx context.Context, title string, dayOffset, capacity int) (*booking.Resource, []booking.Slot, error) {
	day := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, dayOffset)
	return h.Service.CreateResource(ctx, booking.Resource{
		OwnerID:      demoOwner,
		Title:        title,
		Description:  "Demo data",
		Location:     "Community Center",
		Category:     "demo",
		StartDate:    day,
		EndDate:      day,
		SlotCapacity: capacity,
	})
}

func (h *Handler) loadCommunityDay(ctx context.Context) error {
	res, slots, err := h.createDemoResource(ctx, "Community Day", 7, 4)
	if err != nil {
		return err
	}

	for i := 0; i < 3 && i < len(slots); i++ {
		claimant := booking.ActorID(fmt.Sprintf("vol-demo-%d", i+1))
		if _, err := h.Service.Book(ctx, res.ID, slots[i].ID, claimant); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadBusyWeekend(ctx context.Context) error {
	satRes, satSlots, err := h.createDemoResource(ctx, "Park Cleanup (Saturday)", 5, 2)
	if err != nil {
		return err
	}
	if _, _, err := h.createDemoResource(ctx, "Food Drive (Sunday)", 6, 3); err != nil {
		return err
	}

	if len(satSlots) == 0 {
		return nil
	}
	// Fill the first Saturday slot so it shows up closed.
	full := satSlots[0]
	for i := 0; i < full.Capacity; i++ {
		claimant := booking.ActorID(fmt.Sprintf("vol-demo-%d", i+1))
		if _, err := h.Service.Book(ctx, satRes.ID, full.ID, claimant); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadVolunteerHistory(ctx context.Context) error {
	res, slots, err := h.createDemoResource(ctx, "Shelter Shifts", 1, 3)
	if err != nil {
		return err
	}
	if len(slots) < 2 {
		return nil
	}

	first, err := h.Service.Book(ctx, res.ID, slots[0].ID, "vol-demo-1")
	if err != nil {
		return err
	}
	if _, err := h.Service.Complete(ctx, first.ID, demoOwner); err != nil {
		return err
	}

	second, err := h.Service.Book(ctx, res.ID, slots[1].ID, "vol-demo-2")
	if err != nil {
		return err
	}
	if _, err := h.Service.Cancel(ctx, second.ID, "vol-demo-2"); err != nil {
		return err
	}

	third, err := h.Service.Book(ctx, res.ID, slots[1].ID, "vol-demo-3")
	if err != nil {
		return err
	}
	if _, err := h.Service.Complete(ctx, third.ID, demoOwner); err != nil {
		return err
	}
	return nil
}
