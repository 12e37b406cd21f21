/*
notify.go - Notification collaborator boundary

PURPOSE:
  Successful Book/Cancel operations optionally notify an external
  collaborator (email service, websocket relay, cache invalidator).
  Dispatch is fire-and-forget: it runs after the transaction committed,
  on a context detached from the request, and a slow or failing notifier
  can never block or fail a reservation.
*/
package booking

import (
	"context"
	"log"
	"time"
)

// EventKind identifies what happened to a booking.
type EventKind string

const (
	EventBooked       EventKind = "booked"
	EventCancelled    EventKind = "cancelled"
	EventSlotReopened EventKind = "slot_reopened"
	EventCompleted    EventKind = "completed"
)

// Event is the payload delivered to notifiers.
type Event struct {
	Kind       EventKind
	BookingID  BookingID
	SlotID     SlotID
	ResourceID ResourceID
	ClaimantID ActorID
	At         time.Time
}

// Notifier receives booking events. Implementations must tolerate
// concurrent calls; delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// LogNotifier writes events to the standard logger.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, e Event) {
	log.Printf("booking event: %s booking=%s slot=%s claimant=%s", e.Kind, e.BookingID, e.SlotID, e.ClaimantID)
}

// MultiNotifier fans an event out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, e Event) {
	for _, n := range m {
		n.Notify(ctx, e)
	}
}

// dispatch delivers e asynchronously on a detached context.
func dispatch(ctx context.Context, n Notifier, e Event) {
	if n == nil {
		return
	}
	go n.Notify(context.WithoutCancel(ctx), e)
}
