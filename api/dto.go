/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/volunteerhub/booking-engine/booking"
)

// =============================================================================
// RESOURCE TYPES
// =============================================================================

// ResourceDTO represents a bookable resource in API responses.
type ResourceDTO struct {
	ID           string `json:"id"`
	OwnerID      string `json:"owner_id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Location     string `json:"location,omitempty"`
	Category     string `json:"category,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	SlotCapacity int    `json:"slot_capacity"`
	Active       bool   `json:"active"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// CreateResourceRequest is the request to create a resource, slots
// included.
type CreateResourceRequest struct {
	OwnerID      string `json:"owner_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	Category     string `json:"category"`
	StartDate    string `json:"start_date"` // YYYY-MM-DD
	EndDate      string `json:"end_date"`   // YYYY-MM-DD
	SlotCapacity int    `json:"slot_capacity"`
}

// UpdateResourceRequest edits the descriptive fields of a resource.
// Omitted fields are left unchanged.
type UpdateResourceRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// SetActiveRequest toggles a resource's active flag.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// =============================================================================
// SLOT AND BOOKING TYPES
// =============================================================================

// SlotDTO represents a time slot in API responses.
type SlotDTO struct {
	ID            string `json:"id"`
	ResourceID    string `json:"resource_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Capacity      int    `json:"capacity"`
	ReservedCount int    `json:"reserved_count"`
	Remaining     int    `json:"remaining"`
	Open          bool   `json:"open"`
}

// BookingDTO represents a booking in API responses.
type BookingDTO struct {
	ID         string `json:"id"`
	SlotID     string `json:"slot_id"`
	ResourceID string `json:"resource_id"`
	ClaimantID string `json:"claimant_id"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// BookRequest claims one unit of capacity in a slot.
type BookRequest struct {
	ResourceID string `json:"resource_id"`
	SlotID     string `json:"slot_id"`
	ClaimantID string `json:"claimant_id"`
}

// =============================================================================
// ADMIN AND ERROR TYPES
// =============================================================================

// RepairDTO describes one reserved_count correction.
type RepairDTO struct {
	SlotID  string `json:"slot_id"`
	Stored  int    `json:"stored"`
	Derived int    `json:"derived"`
}

// ReconcileResponse summarizes a reconcile pass.
type ReconcileResponse struct {
	Repairs []RepairDTO `json:"repairs"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toResourceDTO(res *booking.Resource) ResourceDTO {
	return ResourceDTO{
		ID:           string(res.ID),
		OwnerID:      string(res.OwnerID),
		Title:        res.Title,
		Description:  res.Description,
		Location:     res.Location,
		Category:     res.Category,
		StartDate:    res.StartDate.Format("2006-01-02"),
		EndDate:      res.EndDate.Format("2006-01-02"),
		SlotCapacity: res.SlotCapacity,
		Active:       res.Active,
		CreatedAt:    res.CreatedAt.Format(time.RFC3339),
	}
}

func toSlotDTO(slot booking.Slot) SlotDTO {
	return SlotDTO{
		ID:            string(slot.ID),
		ResourceID:    string(slot.ResourceID),
		StartTime:     slot.StartTime.Format(time.RFC3339),
		EndTime:       slot.EndTime.Format(time.RFC3339),
		Capacity:      slot.Capacity,
		ReservedCount: slot.ReservedCount,
		Remaining:     slot.Remaining(),
		Open:          slot.Open,
	}
}

func toSlotDTOs(slots []booking.Slot) []SlotDTO {
	dtos := make([]SlotDTO, len(slots))
	for i, slot := range slots {
		dtos[i] = toSlotDTO(slot)
	}
	return dtos
}

func toBookingDTO(b *booking.Booking) BookingDTO {
	return BookingDTO{
		ID:         string(b.ID),
		SlotID:     string(b.SlotID),
		ResourceID: string(b.ResourceID),
		ClaimantID: string(b.ClaimantID),
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
	}
}

func toRepairDTOs(repairs []booking.Repair) []RepairDTO {
	dtos := make([]RepairDTO, len(repairs))
	for i, r := range repairs {
		dtos[i] = RepairDTO{SlotID: string(r.SlotID), Stored: r.Stored, Derived: r.Derived}
	}
	return dtos
}
