// Package store provides booking.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/volunteerhub/booking-engine/booking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps behind one mutex. WithTx simulates
// transactions with a snapshot and rollback-on-error; since the mutex is
// held for the whole boundary, transactions are fully serialized and
// version conflicts cannot occur here.
type Memory struct {
	mu        sync.RWMutex
	resources map[booking.ResourceID]booking.Resource
	slots     map[booking.SlotID]booking.Slot
	bookings  map[booking.BookingID]booking.Booking
}

func NewMemory() *Memory {
	return &Memory{
		resources: make(map[booking.ResourceID]booking.Resource),
		slots:     make(map[booking.SlotID]booking.Slot),
		bookings:  make(map[booking.BookingID]booking.Booking),
	}
}

// =============================================================================
// RESOURCES
// =============================================================================

func (m *Memory) SaveResource(_ context.Context, res booking.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveResourceLocked(res)
}

func (m *Memory) saveResourceLocked(res booking.Resource) error {
	m.resources[res.ID] = res
	return nil
}

func (m *Memory) GetResource(_ context.Context, id booking.ResourceID) (*booking.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getResourceLocked(id)
}

func (m *Memory) getResourceLocked(id booking.ResourceID) (*booking.Resource, error) {
	res, ok := m.resources[id]
	if !ok {
		return nil, notFound("resource", string(id))
	}
	return &res, nil
}

func (m *Memory) ListResourcesByOwner(_ context.Context, owner booking.ActorID) ([]booking.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []booking.Resource
	for _, res := range m.resources {
		if res.OwnerID == owner {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SetResourceActive(_ context.Context, id booking.ResourceID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setResourceActiveLocked(id, active)
}

func (m *Memory) setResourceActiveLocked(id booking.ResourceID, active bool) error {
	res, ok := m.resources[id]
	if !ok {
		return notFound("resource", string(id))
	}
	res.Active = active
	m.resources[id] = res
	return nil
}

func (m *Memory) DeleteResource(_ context.Context, id booking.ResourceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteResourceLocked(id)
}

func (m *Memory) deleteResourceLocked(id booking.ResourceID) error {
	if _, ok := m.resources[id]; !ok {
		return notFound("resource", string(id))
	}
	delete(m.resources, id)
	for slotID, slot := range m.slots {
		if slot.ResourceID == id {
			delete(m.slots, slotID)
		}
	}
	for bID, b := range m.bookings {
		if b.ResourceID == id {
			delete(m.bookings, bID)
		}
	}
	return nil
}

// =============================================================================
// SLOTS
// =============================================================================

func (m *Memory) SaveSlot(_ context.Context, slot booking.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSlotLocked(slot)
}

func (m *Memory) saveSlotLocked(slot booking.Slot) error {
	if _, ok := m.resources[slot.ResourceID]; !ok {
		return notFound("resource", string(slot.ResourceID))
	}
	m.slots[slot.ID] = slot
	return nil
}

func (m *Memory) GetSlot(_ context.Context, id booking.SlotID) (*booking.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSlotLocked(id)
}

func (m *Memory) getSlotLocked(id booking.SlotID) (*booking.Slot, error) {
	slot, ok := m.slots[id]
	if !ok {
		return nil, notFound("slot", string(id))
	}
	return &slot, nil
}

func (m *Memory) ListSlots(_ context.Context, resourceID booking.ResourceID, onlyOpen bool) ([]booking.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSlotsLocked(resourceID, onlyOpen)
}

func (m *Memory) listSlotsLocked(resourceID booking.ResourceID, onlyOpen bool) ([]booking.Slot, error) {
	res, ok := m.resources[resourceID]
	if !ok {
		return nil, notFound("resource", string(resourceID))
	}
	var out []booking.Slot
	for _, slot := range m.slots {
		if slot.ResourceID != resourceID {
			continue
		}
		if onlyOpen && (!slot.Open || !res.Active) {
			continue
		}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) AdjustReserved(_ context.Context, slotID booking.SlotID, delta int, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustReservedLocked(slotID, delta, expectedVersion)
}

func (m *Memory) adjustReservedLocked(slotID booking.SlotID, delta int, expectedVersion int64) error {
	slot, ok := m.slots[slotID]
	if !ok {
		return notFound("slot", string(slotID))
	}
	if slot.Version != expectedVersion {
		return booking.ErrVersionConflict
	}
	next := slot.ReservedCount + delta
	if next < 0 || next > slot.Capacity {
		return booking.ErrVersionConflict
	}
	slot.ReservedCount = next
	slot.Version++
	slot.Open = next < slot.Capacity
	m.slots[slotID] = slot
	return nil
}

// =============================================================================
// BOOKINGS
// =============================================================================

func (m *Memory) InsertBooking(_ context.Context, b booking.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertBookingLocked(b)
}

func (m *Memory) insertBookingLocked(b booking.Booking) error {
	for _, existing := range m.bookings {
		if existing.ClaimantID == b.ClaimantID && existing.SlotID == b.SlotID && existing.Status.Counts() {
			return &booking.DuplicateBookingError{ClaimantID: b.ClaimantID, SlotID: b.SlotID}
		}
	}
	m.bookings[b.ID] = b
	return nil
}

func (m *Memory) GetBooking(_ context.Context, id booking.BookingID) (*booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBookingLocked(id)
}

func (m *Memory) getBookingLocked(id booking.BookingID) (*booking.Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, notFound("booking", string(id))
	}
	return &b, nil
}

func (m *Memory) ListBookings(_ context.Context, claimant booking.ActorID, status *booking.BookingStatus) ([]booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []booking.Booking
	for _, b := range m.bookings {
		if b.ClaimantID != claimant {
			continue
		}
		if status != nil && b.Status != *status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) HasActiveBooking(_ context.Context, claimant booking.ActorID, slotID booking.SlotID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasActiveBookingLocked(claimant, slotID)
}

func (m *Memory) hasActiveBookingLocked(claimant booking.ActorID, slotID booking.SlotID) (bool, error) {
	for _, b := range m.bookings {
		if b.ClaimantID == claimant && b.SlotID == slotID && b.Status.Counts() {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) UpdateBookingStatus(_ context.Context, id booking.BookingID, from, to booking.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBookingStatusLocked(id, from, to)
}

func (m *Memory) updateBookingStatusLocked(id booking.BookingID, from, to booking.BookingStatus) error {
	b, ok := m.bookings[id]
	if !ok {
		return notFound("booking", string(id))
	}
	if b.Status != from {
		return &booking.TransitionError{BookingID: id, From: b.Status, To: to}
	}
	b.Status = to
	m.bookings[id] = b
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn with the store mutex held for the whole boundary.
// On error the pre-transaction snapshot is restored, so no partial
// state survives a failed attempt.
func (m *Memory) WithTx(_ context.Context, fn func(booking.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	resources map[booking.ResourceID]booking.Resource
	slots     map[booking.SlotID]booking.Slot
	bookings  map[booking.BookingID]booking.Booking
}

func (m *Memory) snapshot() memorySnapshot {
	snap := memorySnapshot{
		resources: make(map[booking.ResourceID]booking.Resource, len(m.resources)),
		slots:     make(map[booking.SlotID]booking.Slot, len(m.slots)),
		bookings:  make(map[booking.BookingID]booking.Booking, len(m.bookings)),
	}
	for k, v := range m.resources {
		snap.resources[k] = v
	}
	for k, v := range m.slots {
		snap.slots[k] = v
	}
	for k, v := range m.bookings {
		snap.bookings[k] = v
	}
	return snap
}

func (m *Memory) restore(snap memorySnapshot) {
	m.resources = snap.resources
	m.slots = snap.slots
	m.bookings = snap.bookings
}

// txMemoryView runs against the parent's locked methods; the parent
// mutex is already held by WithTx.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) SaveResource(_ context.Context, res booking.Resource) error {
	return tv.parent.saveResourceLocked(res)
}

func (tv *txMemoryView) GetResource(_ context.Context, id booking.ResourceID) (*booking.Resource, error) {
	return tv.parent.getResourceLocked(id)
}

func (tv *txMemoryView) ListResourcesByOwner(_ context.Context, owner booking.ActorID) ([]booking.Resource, error) {
	var out []booking.Resource
	for _, res := range tv.parent.resources {
		if res.OwnerID == owner {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (tv *txMemoryView) SetResourceActive(_ context.Context, id booking.ResourceID, active bool) error {
	return tv.parent.setResourceActiveLocked(id, active)
}

func (tv *txMemoryView) DeleteResource(_ context.Context, id booking.ResourceID) error {
	return tv.parent.deleteResourceLocked(id)
}

func (tv *txMemoryView) SaveSlot(_ context.Context, slot booking.Slot) error {
	return tv.parent.saveSlotLocked(slot)
}

func (tv *txMemoryView) GetSlot(_ context.Context, id booking.SlotID) (*booking.Slot, error) {
	return tv.parent.getSlotLocked(id)
}

func (tv *txMemoryView) ListSlots(_ context.Context, resourceID booking.ResourceID, onlyOpen bool) ([]booking.Slot, error) {
	return tv.parent.listSlotsLocked(resourceID, onlyOpen)
}

func (tv *txMemoryView) AdjustReserved(_ context.Context, slotID booking.SlotID, delta int, expectedVersion int64) error {
	return tv.parent.adjustReservedLocked(slotID, delta, expectedVersion)
}

func (tv *txMemoryView) InsertBooking(_ context.Context, b booking.Booking) error {
	return tv.parent.insertBookingLocked(b)
}

func (tv *txMemoryView) GetBooking(_ context.Context, id booking.BookingID) (*booking.Booking, error) {
	return tv.parent.getBookingLocked(id)
}

func (tv *txMemoryView) ListBookings(_ context.Context, claimant booking.ActorID, status *booking.BookingStatus) ([]booking.Booking, error) {
	var out []booking.Booking
	for _, b := range tv.parent.bookings {
		if b.ClaimantID != claimant {
			continue
		}
		if status != nil && b.Status != *status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (tv *txMemoryView) HasActiveBooking(_ context.Context, claimant booking.ActorID, slotID booking.SlotID) (bool, error) {
	return tv.parent.hasActiveBookingLocked(claimant, slotID)
}

func (tv *txMemoryView) UpdateBookingStatus(_ context.Context, id booking.BookingID, from, to booking.BookingStatus) error {
	return tv.parent.updateBookingStatusLocked(id, from, to)
}

// =============================================================================
// RECONCILIATION AND LEDGER READS
// =============================================================================

func (m *Memory) ReconcileSlots(_ context.Context) ([]booking.Repair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[booking.SlotID]int)
	for _, b := range m.bookings {
		if b.Status.Counts() {
			counts[b.SlotID]++
		}
	}

	var repairs []booking.Repair
	for id, slot := range m.slots {
		derived := counts[id]
		if slot.ReservedCount == derived {
			continue
		}
		repairs = append(repairs, booking.Repair{SlotID: id, Stored: slot.ReservedCount, Derived: derived})
		slot.ReservedCount = derived
		slot.Version++
		slot.Open = derived < slot.Capacity
		m.slots[id] = slot
	}
	sort.Slice(repairs, func(i, j int) bool { return repairs[i].SlotID < repairs[j].SlotID })
	return repairs, nil
}

func (m *Memory) LedgerEntries(_ context.Context) ([]booking.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(func(booking.Booking) bool { return true }), nil
}

func (m *Memory) LedgerEntriesByClaimant(_ context.Context, claimant booking.ActorID) ([]booking.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(func(b booking.Booking) bool { return b.ClaimantID == claimant }), nil
}

func (m *Memory) entriesLocked(keep func(booking.Booking) bool) []booking.LedgerEntry {
	var out []booking.LedgerEntry
	for _, b := range m.bookings {
		if !keep(b) {
			continue
		}
		slot, ok := m.slots[b.SlotID]
		if !ok {
			continue
		}
		out = append(out, booking.LedgerEntry{
			BookingID:  b.ID,
			ClaimantID: b.ClaimantID,
			ResourceID: b.ResourceID,
			SlotID:     b.SlotID,
			Status:     b.Status,
			SlotStart:  slot.StartTime,
			SlotEnd:    slot.EndTime,
			BookedAt:   b.CreatedAt,
			UpdatedAt:  b.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookedAt.Before(out[j].BookedAt) })
	return out
}

func notFound(kind, id string) error {
	return &lookupError{kind: kind, id: id}
}

type lookupError struct {
	kind string
	id   string
}

func (e *lookupError) Error() string { return e.kind + " " + e.id + " not found" }
func (e *lookupError) Unwrap() error { return booking.ErrNotFound }
