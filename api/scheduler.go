/*
scheduler.go - Automated counter reconciliation scheduler

PURPOSE:
  Periodically re-derives slot reserved counters from booking rows and
  repairs any drift. Drift should never happen when all writes go through
  the transactional guard, but operator edits and restored backups do
  happen; the scheduler keeps the cached counters honest without waiting
  for someone to call the admin endpoint.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick runs the same reconcile pass as POST /api/admin/reconcile
  - Repairs are logged; a clean pass is silent

CONFIGURATION:
  - CheckInterval: How often to reconcile (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconcileScheduler(service)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Reconcile endpoint (manual reconciliation)
  - booking/guard.go: Guard.Reconcile
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/volunteerhub/booking-engine/booking"
)

// ReconcileScheduler repairs drifted slot counters on a fixed interval.
type ReconcileScheduler struct {
	Service       *booking.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconcileScheduler creates a new scheduler.
func NewReconcileScheduler(service *booking.Service) *ReconcileScheduler {
	return &ReconcileScheduler{
		Service:       service,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ReconcileScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *ReconcileScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *ReconcileScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndRepair()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndRepair()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReconcileScheduler) checkAndRepair() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repairs, err := rs.Service.Reconcile(ctx)
	if err != nil {
		log.Printf("[Scheduler] Reconcile failed: %v", err)
		return
	}

	for _, rep := range repairs {
		log.Printf("[Scheduler] Repaired slot %s: stored=%d derived=%d",
			rep.SlotID, rep.Stored, rep.Derived)
	}
	if len(repairs) > 0 {
		log.Printf("[Scheduler] Completed: %d counters repaired", len(repairs))
	}
}

// RunNow triggers an immediate pass (for testing/admin).
func (rs *ReconcileScheduler) RunNow() {
	rs.checkAndRepair()
}
