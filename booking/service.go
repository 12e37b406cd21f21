/*
service.go - Reservation service: orchestration over the capacity guard

PURPOSE:
  Thin layer the API talks to. Validates eligibility through the
  authorization collaborator, delegates the atomic work to the guard,
  and fires notifications after commit. It holds no lock or transaction
  beyond what the guard opens.

OPERATIONS:
  Book, Cancel, Complete, ListBookings, ListSlots
  CreateResource (with slot generation), SetResourceActive,
  DeleteResource (store-level cascade), Reconcile

IDEMPOTENCY:
  Retried Book calls are safe: a resend by a claimant who already holds
  the slot is rejected with DuplicateBooking and changes nothing.
*/
package booking

import (
	"context"
	"fmt"
	"time"
)

// Service orchestrates guard and ledger into the external API.
type Service struct {
	store    TxStore
	guard    *Guard
	auth     Authorizer
	notifier Notifier
	layout   SlotLayout
	clock    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier wires the notification collaborator.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithSlotLayout overrides how CreateResource carves slots.
func WithSlotLayout(l SlotLayout) Option {
	return func(s *Service) { s.layout = l }
}

// WithClock overrides the time source (tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithGuard substitutes a pre-configured guard (custom retry policy).
func WithGuard(g *Guard) Option {
	return func(s *Service) { s.guard = g }
}

// NewService creates the reservation service. The authorizer is
// mandatory; pass AllowAll{} to disable eligibility checks.
func NewService(store TxStore, auth Authorizer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		auth:   auth,
		layout: DefaultSlotLayout(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.guard == nil {
		s.guard = NewGuard(store, WithGuardClock(s.clock))
	}
	return s
}

// =============================================================================
// BOOKING OPERATIONS
// =============================================================================

// Book claims one unit of the slot's capacity for the claimant.
func (s *Service) Book(ctx context.Context, resourceID ResourceID, slotID SlotID, claimant ActorID) (*Booking, error) {
	res, err := s.store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	eligible, err := s.auth.IsEligibleToBook(ctx, claimant, *res)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, &ForbiddenError{ActorID: claimant, ResourceID: resourceID, Reason: "authorization declined"}
	}

	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.ResourceID != resourceID {
		return nil, fmt.Errorf("slot %s does not belong to resource %s: %w", slotID, resourceID, ErrNotFound)
	}

	b, err := s.guard.TryReserve(ctx, slotID, claimant)
	if err != nil {
		return nil, err
	}

	dispatch(ctx, s.notifier, Event{
		Kind:       EventBooked,
		BookingID:  b.ID,
		SlotID:     b.SlotID,
		ResourceID: b.ResourceID,
		ClaimantID: b.ClaimantID,
		At:         s.clock(),
	})
	return b, nil
}

// Cancel releases a booking. The caller must be the claimant or the
// resource owner.
func (s *Service) Cancel(ctx context.Context, bookingID BookingID, caller ActorID) (*Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMutation(ctx, b, caller); err != nil {
		return nil, err
	}

	cancelled, reopened, err := s.guard.Cancel(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	dispatch(ctx, s.notifier, Event{
		Kind:       EventCancelled,
		BookingID:  cancelled.ID,
		SlotID:     cancelled.SlotID,
		ResourceID: cancelled.ResourceID,
		ClaimantID: cancelled.ClaimantID,
		At:         s.clock(),
	})
	if reopened {
		dispatch(ctx, s.notifier, Event{
			Kind:       EventSlotReopened,
			SlotID:     cancelled.SlotID,
			ResourceID: cancelled.ResourceID,
			At:         s.clock(),
		})
	}
	return cancelled, nil
}

// Complete marks a booking completed. Only the resource owner may do it.
func (s *Service) Complete(ctx context.Context, bookingID BookingID, caller ActorID) (*Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	res, err := s.store.GetResource(ctx, b.ResourceID)
	if err != nil {
		return nil, err
	}
	if res.OwnerID != caller {
		return nil, &ForbiddenError{ActorID: caller, ResourceID: res.ID, Reason: "only the resource owner may complete bookings"}
	}

	completed, err := s.guard.Complete(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	dispatch(ctx, s.notifier, Event{
		Kind:       EventCompleted,
		BookingID:  completed.ID,
		SlotID:     completed.SlotID,
		ResourceID: completed.ResourceID,
		ClaimantID: completed.ClaimantID,
		At:         s.clock(),
	})
	return completed, nil
}

// ListBookings returns the claimant's bookings, optionally filtered.
func (s *Service) ListBookings(ctx context.Context, claimant ActorID, status *BookingStatus) ([]Booking, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", *status, ErrNotFound)
	}
	return s.store.ListBookings(ctx, claimant, status)
}

// ListSlots returns the resource's slots, optionally only open ones.
func (s *Service) ListSlots(ctx context.Context, resourceID ResourceID, onlyOpen bool) ([]Slot, error) {
	if _, err := s.store.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}
	return s.store.ListSlots(ctx, resourceID, onlyOpen)
}

// authorizeMutation allows the booking's claimant or the resource owner.
func (s *Service) authorizeMutation(ctx context.Context, b *Booking, caller ActorID) error {
	if b.ClaimantID == caller {
		return nil
	}
	res, err := s.store.GetResource(ctx, b.ResourceID)
	if err != nil {
		return err
	}
	if res.OwnerID != caller {
		return &ForbiddenError{ActorID: caller, ResourceID: b.ResourceID, Reason: "not the claimant or resource owner"}
	}
	return nil
}

// =============================================================================
// RESOURCE MANAGEMENT
// =============================================================================

// CreateResource stores the resource and generates its slots in one
// transaction. Missing IDs and timestamps are filled in.
func (s *Service) CreateResource(ctx context.Context, res Resource) (*Resource, []Slot, error) {
	if res.ID == "" {
		res.ID = NewResourceID()
	}
	if res.OwnerID == "" {
		return nil, nil, fmt.Errorf("resource owner required: %w", ErrForbidden)
	}
	now := s.clock()
	res.CreatedAt = now
	res.UpdatedAt = now
	res.Active = true

	slots, err := s.layout.Generate(res)
	if err != nil {
		return nil, nil, err
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveResource(ctx, res); err != nil {
			return err
		}
		for _, slot := range slots {
			if err := tx.SaveSlot(ctx, slot); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &res, slots, nil
}

// ResourceUpdate carries the editable resource fields. Dates and
// capacity are fixed once slots exist; nil (and for Title, empty)
// fields are left unchanged.
type ResourceUpdate struct {
	Title       *string
	Description *string
	Location    *string
	Category    *string
}

// UpdateResource edits the descriptive fields of a resource. Owner only.
func (s *Service) UpdateResource(ctx context.Context, resourceID ResourceID, caller ActorID, upd ResourceUpdate) (*Resource, error) {
	if err := s.authorizeOwner(ctx, resourceID, caller); err != nil {
		return nil, err
	}
	res, err := s.store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil && *upd.Title != "" {
		res.Title = *upd.Title
	}
	if upd.Description != nil {
		res.Description = *upd.Description
	}
	if upd.Location != nil {
		res.Location = *upd.Location
	}
	if upd.Category != nil {
		res.Category = *upd.Category
	}
	res.UpdatedAt = s.clock()

	if err := s.store.SaveResource(ctx, *res); err != nil {
		return nil, err
	}
	return res, nil
}

// SetResourceActive toggles bookability. Deactivating makes every
// subsequent Book against its slots fail with SlotClosed regardless of
// remaining capacity.
func (s *Service) SetResourceActive(ctx context.Context, resourceID ResourceID, caller ActorID, active bool) error {
	if err := s.authorizeOwner(ctx, resourceID, caller); err != nil {
		return err
	}
	return s.store.SetResourceActive(ctx, resourceID, active)
}

// DeleteResource removes the resource; the store cascades the delete to
// slots and bookings atomically.
func (s *Service) DeleteResource(ctx context.Context, resourceID ResourceID, caller ActorID) error {
	if err := s.authorizeOwner(ctx, resourceID, caller); err != nil {
		return err
	}
	return s.store.DeleteResource(ctx, resourceID)
}

// GetResource is a pass-through point lookup.
func (s *Service) GetResource(ctx context.Context, resourceID ResourceID) (*Resource, error) {
	return s.store.GetResource(ctx, resourceID)
}

// ListResources returns resources owned by the actor.
func (s *Service) ListResources(ctx context.Context, owner ActorID) ([]Resource, error) {
	return s.store.ListResourcesByOwner(ctx, owner)
}

// Reconcile repairs cached slot counters from the booking set.
func (s *Service) Reconcile(ctx context.Context) ([]Repair, error) {
	return s.guard.Reconcile(ctx)
}

func (s *Service) authorizeOwner(ctx context.Context, resourceID ResourceID, caller ActorID) error {
	res, err := s.store.GetResource(ctx, resourceID)
	if err != nil {
		return err
	}
	if res.OwnerID != caller {
		return &ForbiddenError{ActorID: caller, ResourceID: resourceID, Reason: "not the resource owner"}
	}
	return nil
}
