/*
Package sqlite provides a SQLite-backed implementation of the booking storage interfaces.

PURPOSE:
  Implements all persistence interfaces (Store, TxStore, ReconcileStore,
  LedgerReader) using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  booking.Store:          Resources, slots, bookings
  booking.TxStore:        Closure-scoped transactions for check-and-reserve
  booking.ReconcileStore: reserved_count repair from the booking ledger
  booking.LedgerReader:   Read-side joins for the aggregation reporter

CAPACITY ENFORCEMENT:
  reserved_count is a cached counter guarded two ways:
  - CHECK constraint keeps 0 <= reserved_count <= capacity at the row level
  - AdjustReserved does a compare-and-swap on the version column; a stale
    version leaves zero rows affected and surfaces booking.ErrVersionConflict

KEY TABLES:
  resources: Bookable resources with their scheduling window
  slots:     Capacity-bearing time slots (version column for CAS)
  bookings:  One row per claim, status-transitioned, never deleted on cancel

INDEXES:
  idx_bookings_live: partial unique index enforcing one non-cancelled
  booking per (claimant_id, slot_id). Violations surface as
  booking.ErrDuplicateBooking.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole boundary, so the check-and-reserve sequence is serialized in-process.
  In production with PostgreSQL, database-level concurrency control handles
  this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/booking.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := booking.NewService(store, authorizer)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - booking/store.go: Interface definitions
  - booking/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/volunteerhub/booking-engine/booking"
)

// Store implements the booking storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A :memory: database exists per connection; a single connection
	// keeps every caller on the same schema.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Resources (bookable things with a scheduling window)
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		slot_capacity INTEGER NOT NULL CHECK (slot_capacity > 0),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_owner
		ON resources(owner_id);

	-- Slots (capacity-bearing time windows)
	CREATE TABLE IF NOT EXISTS slots (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		reserved_count INTEGER NOT NULL DEFAULT 0
			CHECK (reserved_count >= 0 AND reserved_count <= capacity),
		version INTEGER NOT NULL DEFAULT 0,
		is_open BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_slots_resource
		ON slots(resource_id, start_time);

	-- Bookings (one row per claim; cancel flips status, never deletes)
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		slot_id TEXT NOT NULL REFERENCES slots(id) ON DELETE CASCADE,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		claimant_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'confirmed',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one live booking per claimant per slot. Cancelled rows
	-- stay behind for the ledger but do not block a re-book.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_live
		ON bookings(claimant_id, slot_id)
		WHERE status != 'cancelled';

	CREATE INDEX IF NOT EXISTS idx_bookings_claimant
		ON bookings(claimant_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_bookings_slot_status
		ON bookings(slot_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the subset of *sql.DB and *sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// RESOURCES
// =============================================================================

func (s *Store) SaveResource(ctx context.Context, res booking.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveResource(ctx, s.db, res)
}

func (s *Store) saveResource(ctx context.Context, db dbtx, res booking.Resource) error {
	query := `
		INSERT INTO resources
		(id, owner_id, title, description, location, category, start_date, end_date,
		 slot_capacity, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			location = excluded.location,
			category = excluded.category,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			slot_capacity = excluded.slot_capacity,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		res.ID, res.OwnerID, res.Title, res.Description, res.Location, res.Category,
		res.StartDate.Format(time.RFC3339), res.EndDate.Format(time.RFC3339),
		res.SlotCapacity, res.Active,
		res.CreatedAt.Format(time.RFC3339), res.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save resource: %w", err)
	}
	return nil
}

func (s *Store) GetResource(ctx context.Context, id booking.ResourceID) (*booking.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getResource(ctx, s.db, id)
}

func (s *Store) getResource(ctx context.Context, db dbtx, id booking.ResourceID) (*booking.Resource, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, description, location, category, start_date, end_date,
		       slot_capacity, active, created_at, updated_at
		FROM resources WHERE id = ?`, id)

	res, err := scanResource(row)
	if err == sql.ErrNoRows {
		return nil, notFound("resource", string(id))
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*booking.Resource, error) {
	var res booking.Resource
	var startDate, endDate, createdAt, updatedAt string

	err := row.Scan(&res.ID, &res.OwnerID, &res.Title, &res.Description, &res.Location,
		&res.Category, &startDate, &endDate, &res.SlotCapacity, &res.Active,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	res.StartDate, _ = time.Parse(time.RFC3339, startDate)
	res.EndDate, _ = time.Parse(time.RFC3339, endDate)
	res.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	res.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &res, nil
}

func (s *Store) ListResourcesByOwner(ctx context.Context, owner booking.ActorID) ([]booking.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listResourcesByOwner(ctx, s.db, owner)
}

func (s *Store) listResourcesByOwner(ctx context.Context, db dbtx, owner booking.ActorID) ([]booking.Resource, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_id, title, description, location, category, start_date, end_date,
		       slot_capacity, active, created_at, updated_at
		FROM resources WHERE owner_id = ?
		ORDER BY created_at ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var out []booking.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (s *Store) SetResourceActive(ctx context.Context, id booking.ResourceID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setResourceActive(ctx, s.db, id, active)
}

func (s *Store) setResourceActive(ctx context.Context, db dbtx, id booking.ResourceID, active bool) error {
	result, err := db.ExecContext(ctx,
		"UPDATE resources SET active = ?, updated_at = ? WHERE id = ?",
		active, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	return requireRow(result, func() error { return notFound("resource", string(id)) })
}

func (s *Store) DeleteResource(ctx context.Context, id booking.ResourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteResource(ctx, s.db, id)
}

func (s *Store) deleteResource(ctx context.Context, db dbtx, id booking.ResourceID) error {
	// Slots and bookings follow via ON DELETE CASCADE.
	result, err := db.ExecContext(ctx, "DELETE FROM resources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	return requireRow(result, func() error { return notFound("resource", string(id)) })
}

// =============================================================================
// SLOTS
// =============================================================================

func (s *Store) SaveSlot(ctx context.Context, slot booking.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSlot(ctx, s.db, slot)
}

func (s *Store) saveSlot(ctx context.Context, db dbtx, slot booking.Slot) error {
	query := `
		INSERT INTO slots
		(id, resource_id, start_time, end_time, capacity, reserved_count, version, is_open)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			capacity = excluded.capacity,
			is_open = excluded.is_open
	`

	_, err := db.ExecContext(ctx, query,
		slot.ID, slot.ResourceID,
		slot.StartTime.Format(time.RFC3339), slot.EndTime.Format(time.RFC3339),
		slot.Capacity, slot.ReservedCount, slot.Version, slot.Open,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return notFound("resource", string(slot.ResourceID))
		}
		return fmt.Errorf("failed to save slot: %w", err)
	}
	return nil
}

func (s *Store) GetSlot(ctx context.Context, id booking.SlotID) (*booking.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSlot(ctx, s.db, id)
}

func (s *Store) getSlot(ctx context.Context, db dbtx, id booking.SlotID) (*booking.Slot, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, resource_id, start_time, end_time, capacity, reserved_count, version, is_open
		FROM slots WHERE id = ?`, id)

	slot, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, notFound("slot", string(id))
	}
	if err != nil {
		return nil, err
	}
	return slot, nil
}

func scanSlot(row rowScanner) (*booking.Slot, error) {
	var slot booking.Slot
	var startTime, endTime string

	err := row.Scan(&slot.ID, &slot.ResourceID, &startTime, &endTime,
		&slot.Capacity, &slot.ReservedCount, &slot.Version, &slot.Open)
	if err != nil {
		return nil, err
	}

	slot.StartTime, _ = time.Parse(time.RFC3339, startTime)
	slot.EndTime, _ = time.Parse(time.RFC3339, endTime)
	return &slot, nil
}

func (s *Store) ListSlots(ctx context.Context, resourceID booking.ResourceID, onlyOpen bool) ([]booking.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSlots(ctx, s.db, resourceID, onlyOpen)
}

func (s *Store) listSlots(ctx context.Context, db dbtx, resourceID booking.ResourceID, onlyOpen bool) ([]booking.Slot, error) {
	if _, err := s.getResource(ctx, db, resourceID); err != nil {
		return nil, err
	}

	query := `
		SELECT s.id, s.resource_id, s.start_time, s.end_time, s.capacity,
		       s.reserved_count, s.version, s.is_open
		FROM slots s
		WHERE s.resource_id = ?
	`
	if onlyOpen {
		query += ` AND s.is_open = TRUE
			AND EXISTS (SELECT 1 FROM resources r WHERE r.id = s.resource_id AND r.active = TRUE)`
	}
	query += " ORDER BY s.start_time ASC"

	rows, err := db.QueryContext(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var out []booking.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *slot)
	}
	return out, rows.Err()
}

func (s *Store) AdjustReserved(ctx context.Context, slotID booking.SlotID, delta int, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustReserved(ctx, s.db, slotID, delta, expectedVersion)
}

// adjustReserved is the compare-and-swap at the heart of capacity
// enforcement. The WHERE clause only matches the version the caller
// read; a concurrent writer bumps the version first and this update
// touches zero rows.
func (s *Store) adjustReserved(ctx context.Context, db dbtx, slotID booking.SlotID, delta int, expectedVersion int64) error {
	query := `
		UPDATE slots
		SET reserved_count = reserved_count + ?,
		    version = version + 1,
		    is_open = (reserved_count + ? < capacity)
		WHERE id = ? AND version = ?
		  AND reserved_count + ? >= 0
		  AND reserved_count + ? <= capacity
	`

	result, err := db.ExecContext(ctx, query, delta, delta, slotID, expectedVersion, delta, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust reserved count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := s.getSlot(ctx, db, slotID); getErr != nil {
			return getErr
		}
		return booking.ErrVersionConflict
	}
	return nil
}

// =============================================================================
// BOOKINGS
// =============================================================================

func (s *Store) InsertBooking(ctx context.Context, b booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertBooking(ctx, s.db, b)
}

func (s *Store) insertBooking(ctx context.Context, db dbtx, b booking.Booking) error {
	query := `
		INSERT INTO bookings (id, slot_id, resource_id, claimant_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		b.ID, b.SlotID, b.ResourceID, b.ClaimantID, b.Status,
		b.CreatedAt.Format(time.RFC3339), b.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &booking.DuplicateBookingError{ClaimantID: b.ClaimantID, SlotID: b.SlotID}
		}
		if isForeignKeyError(err) {
			return notFound("slot", string(b.SlotID))
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBooking(ctx, s.db, id)
}

func (s *Store) getBooking(ctx context.Context, db dbtx, id booking.BookingID) (*booking.Booking, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, slot_id, resource_id, claimant_id, status, created_at, updated_at
		FROM bookings WHERE id = ?`, id)

	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, notFound("booking", string(id))
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func scanBooking(row rowScanner) (*booking.Booking, error) {
	var b booking.Booking
	var createdAt, updatedAt string

	err := row.Scan(&b.ID, &b.SlotID, &b.ResourceID, &b.ClaimantID, &b.Status,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

func (s *Store) ListBookings(ctx context.Context, claimant booking.ActorID, status *booking.BookingStatus) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBookings(ctx, s.db, claimant, status)
}

func (s *Store) listBookings(ctx context.Context, db dbtx, claimant booking.ActorID, status *booking.BookingStatus) ([]booking.Booking, error) {
	query := `
		SELECT id, slot_id, resource_id, claimant_id, status, created_at, updated_at
		FROM bookings WHERE claimant_id = ?
	`
	args := []any{claimant}
	if status != nil {
		query += " AND status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY created_at ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) HasActiveBooking(ctx context.Context, claimant booking.ActorID, slotID booking.SlotID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasActiveBooking(ctx, s.db, claimant, slotID)
}

func (s *Store) hasActiveBooking(ctx context.Context, db dbtx, claimant booking.ActorID, slotID booking.SlotID) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE claimant_id = ? AND slot_id = ? AND status != 'cancelled'",
		claimant, slotID,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id booking.BookingID, from, to booking.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateBookingStatus(ctx, s.db, id, from, to)
}

func (s *Store) updateBookingStatus(ctx context.Context, db dbtx, id booking.BookingID, from, to booking.BookingStatus) error {
	result, err := db.ExecContext(ctx,
		"UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		to, time.Now().UTC().Format(time.RFC3339), id, from)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		b, getErr := s.getBooking(ctx, db, id)
		if getErr != nil {
			return getErr
		}
		return &booking.TransitionError{BookingID: id, From: b.Status, To: to}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction, with the store write
// lock held for the whole boundary.
func (s *Store) WithTx(ctx context.Context, fn func(store booking.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every call through the open transaction. The parent
// mutex is already held by WithTx, so no method here may re-lock it.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) SaveResource(ctx context.Context, res booking.Resource) error {
	return ts.parent.saveResource(ctx, ts.tx, res)
}

func (ts *txStore) GetResource(ctx context.Context, id booking.ResourceID) (*booking.Resource, error) {
	return ts.parent.getResource(ctx, ts.tx, id)
}

func (ts *txStore) ListResourcesByOwner(ctx context.Context, owner booking.ActorID) ([]booking.Resource, error) {
	return ts.parent.listResourcesByOwner(ctx, ts.tx, owner)
}

func (ts *txStore) SetResourceActive(ctx context.Context, id booking.ResourceID, active bool) error {
	return ts.parent.setResourceActive(ctx, ts.tx, id, active)
}

func (ts *txStore) DeleteResource(ctx context.Context, id booking.ResourceID) error {
	return ts.parent.deleteResource(ctx, ts.tx, id)
}

func (ts *txStore) SaveSlot(ctx context.Context, slot booking.Slot) error {
	return ts.parent.saveSlot(ctx, ts.tx, slot)
}

func (ts *txStore) GetSlot(ctx context.Context, id booking.SlotID) (*booking.Slot, error) {
	return ts.parent.getSlot(ctx, ts.tx, id)
}

func (ts *txStore) ListSlots(ctx context.Context, resourceID booking.ResourceID, onlyOpen bool) ([]booking.Slot, error) {
	return ts.parent.listSlots(ctx, ts.tx, resourceID, onlyOpen)
}

func (ts *txStore) AdjustReserved(ctx context.Context, slotID booking.SlotID, delta int, expectedVersion int64) error {
	return ts.parent.adjustReserved(ctx, ts.tx, slotID, delta, expectedVersion)
}

func (ts *txStore) InsertBooking(ctx context.Context, b booking.Booking) error {
	return ts.parent.insertBooking(ctx, ts.tx, b)
}

func (ts *txStore) GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return ts.parent.getBooking(ctx, ts.tx, id)
}

func (ts *txStore) ListBookings(ctx context.Context, claimant booking.ActorID, status *booking.BookingStatus) ([]booking.Booking, error) {
	return ts.parent.listBookings(ctx, ts.tx, claimant, status)
}

func (ts *txStore) HasActiveBooking(ctx context.Context, claimant booking.ActorID, slotID booking.SlotID) (bool, error) {
	return ts.parent.hasActiveBooking(ctx, ts.tx, claimant, slotID)
}

func (ts *txStore) UpdateBookingStatus(ctx context.Context, id booking.BookingID, from, to booking.BookingStatus) error {
	return ts.parent.updateBookingStatus(ctx, ts.tx, id, from, to)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileSlots recomputes reserved_count from the booking rows and
// repairs any slot whose cached counter drifted.
func (s *Store) ReconcileSlots(ctx context.Context) ([]booking.Repair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	rows, err := sqlTx.QueryContext(ctx, `
		SELECT s.id, s.reserved_count,
		       (SELECT COUNT(*) FROM bookings b
		        WHERE b.slot_id = s.id AND b.status != 'cancelled') AS derived
		FROM slots s
		WHERE s.reserved_count !=
		      (SELECT COUNT(*) FROM bookings b
		       WHERE b.slot_id = s.id AND b.status != 'cancelled')
		ORDER BY s.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drifted slots: %w", err)
	}

	var repairs []booking.Repair
	for rows.Next() {
		var r booking.Repair
		if err := rows.Scan(&r.SlotID, &r.Stored, &r.Derived); err != nil {
			rows.Close()
			return nil, err
		}
		repairs = append(repairs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, r := range repairs {
		_, err := sqlTx.ExecContext(ctx, `
			UPDATE slots
			SET reserved_count = ?,
			    version = version + 1,
			    is_open = (? < capacity)
			WHERE id = ?`, r.Derived, r.Derived, r.SlotID)
		if err != nil {
			return nil, fmt.Errorf("failed to repair slot %s: %w", r.SlotID, err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, err
	}
	return repairs, nil
}

// =============================================================================
// LEDGER READS (for the aggregation reporter)
// =============================================================================

const ledgerQuery = `
	SELECT b.id, b.claimant_id, b.resource_id, b.slot_id, b.status,
	       s.start_time, s.end_time, b.created_at, b.updated_at
	FROM bookings b
	JOIN slots s ON s.id = b.slot_id
`

func (s *Store) LedgerEntries(ctx context.Context) ([]booking.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLedger(ctx, ledgerQuery+" ORDER BY b.created_at ASC")
}

func (s *Store) LedgerEntriesByClaimant(ctx context.Context, claimant booking.ActorID) ([]booking.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLedger(ctx, ledgerQuery+" WHERE b.claimant_id = ? ORDER BY b.created_at ASC", claimant)
}

func (s *Store) queryLedger(ctx context.Context, query string, args ...any) ([]booking.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []booking.LedgerEntry
	for rows.Next() {
		var e booking.LedgerEntry
		var slotStart, slotEnd, bookedAt, updatedAt string
		if err := rows.Scan(&e.BookingID, &e.ClaimantID, &e.ResourceID, &e.SlotID,
			&e.Status, &slotStart, &slotEnd, &bookedAt, &updatedAt); err != nil {
			return nil, err
		}
		e.SlotStart, _ = time.Parse(time.RFC3339, slotStart)
		e.SlotEnd, _ = time.Parse(time.RFC3339, slotEnd)
		e.BookedAt, _ = time.Parse(time.RFC3339, bookedAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func requireRow(result sql.Result, missing func() error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return missing()
	}
	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", booking.ErrNotFound, kind, id)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
