/*
Package postgres provides a PostgreSQL-backed implementation of the booking
storage interfaces using pgx.

PURPOSE:
  Same interfaces as store/sqlite, backed by a pgxpool connection pool.
  Concurrency control moves from an in-process mutex to the database:
  WithTx opens a real transaction and GetSlot inside a transaction takes a
  row-level lock (SELECT ... FOR UPDATE), so concurrent check-and-reserve
  attempts on the same slot serialize at the row.

ERROR MAPPING:
  23505 (unique_violation) on the live-booking index -> booking.ErrDuplicateBooking
  23503 (foreign_key_violation)                      -> booking.ErrNotFound
  pgx.ErrNoRows                                      -> booking.ErrNotFound

SEE ALSO:
  - booking/store.go: Interface definitions
  - store/sqlite/sqlite.go: SQLite implementation (schema mirror)
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volunteerhub/booking-engine/booking"
)

// Store implements the booking storage interfaces using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL with the given DSN and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		slot_capacity INTEGER NOT NULL CHECK (slot_capacity > 0),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_owner
		ON resources(owner_id);

	CREATE TABLE IF NOT EXISTS slots (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		reserved_count INTEGER NOT NULL DEFAULT 0
			CHECK (reserved_count >= 0 AND reserved_count <= capacity),
		version BIGINT NOT NULL DEFAULT 0,
		is_open BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_slots_resource
		ON slots(resource_id, start_time);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		slot_id TEXT NOT NULL REFERENCES slots(id) ON DELETE CASCADE,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		claimant_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'confirmed',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_live
		ON bookings(claimant_id, slot_id)
		WHERE status != 'cancelled';

	CREATE INDEX IF NOT EXISTS idx_bookings_claimant
		ON bookings(claimant_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_bookings_slot_status
		ON bookings(slot_id, status);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// querier is the subset of *pgxpool.Pool and pgx.Tx the queries need.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// =============================================================================
// RESOURCES
// =============================================================================

func (s *Store) SaveResource(ctx context.Context, res booking.Resource) error {
	return saveResource(ctx, s.pool, res)
}

func saveResource(ctx context.Context, q querier, res booking.Resource) error {
	_, err := q.Exec(ctx, `
		INSERT INTO resources
		(id, owner_id, title, description, location, category, start_date, end_date,
		 slot_capacity, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			category = EXCLUDED.category,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			slot_capacity = EXCLUDED.slot_capacity,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		res.ID, res.OwnerID, res.Title, res.Description, res.Location, res.Category,
		res.StartDate, res.EndDate, res.SlotCapacity, res.Active,
		res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save resource: %w", err)
	}
	return nil
}

func (s *Store) GetResource(ctx context.Context, id booking.ResourceID) (*booking.Resource, error) {
	return getResource(ctx, s.pool, id)
}

func getResource(ctx context.Context, q querier, id booking.ResourceID) (*booking.Resource, error) {
	var res booking.Resource
	err := q.QueryRow(ctx, `
		SELECT id, owner_id, title, description, location, category, start_date, end_date,
		       slot_capacity, active, created_at, updated_at
		FROM resources WHERE id = $1`, id,
	).Scan(&res.ID, &res.OwnerID, &res.Title, &res.Description, &res.Location,
		&res.Category, &res.StartDate, &res.EndDate, &res.SlotCapacity, &res.Active,
		&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("resource", string(id))
		}
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return &res, nil
}

func (s *Store) ListResourcesByOwner(ctx context.Context, owner booking.ActorID) ([]booking.Resource, error) {
	return listResourcesByOwner(ctx, s.pool, owner)
}

func listResourcesByOwner(ctx context.Context, q querier, owner booking.ActorID) ([]booking.Resource, error) {
	rows, err := q.Query(ctx, `
		SELECT id, owner_id, title, description, location, category, start_date, end_date,
		       slot_capacity, active, created_at, updated_at
		FROM resources WHERE owner_id = $1
		ORDER BY created_at ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []booking.Resource
	for rows.Next() {
		var res booking.Resource
		if err := rows.Scan(&res.ID, &res.OwnerID, &res.Title, &res.Description,
			&res.Location, &res.Category, &res.StartDate, &res.EndDate,
			&res.SlotCapacity, &res.Active, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (s *Store) SetResourceActive(ctx context.Context, id booking.ResourceID, active bool) error {
	return setResourceActive(ctx, s.pool, id, active)
}

func setResourceActive(ctx context.Context, q querier, id booking.ResourceID, active bool) error {
	tag, err := q.Exec(ctx,
		"UPDATE resources SET active = $1, updated_at = now() WHERE id = $2", active, id)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("resource", string(id))
	}
	return nil
}

func (s *Store) DeleteResource(ctx context.Context, id booking.ResourceID) error {
	return deleteResource(ctx, s.pool, id)
}

func deleteResource(ctx context.Context, q querier, id booking.ResourceID) error {
	tag, err := q.Exec(ctx, "DELETE FROM resources WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("resource", string(id))
	}
	return nil
}

// =============================================================================
// SLOTS
// =============================================================================

func (s *Store) SaveSlot(ctx context.Context, slot booking.Slot) error {
	return saveSlot(ctx, s.pool, slot)
}

func saveSlot(ctx context.Context, q querier, slot booking.Slot) error {
	_, err := q.Exec(ctx, `
		INSERT INTO slots
		(id, resource_id, start_time, end_time, capacity, reserved_count, version, is_open)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			capacity = EXCLUDED.capacity,
			is_open = EXCLUDED.is_open`,
		slot.ID, slot.ResourceID, slot.StartTime, slot.EndTime,
		slot.Capacity, slot.ReservedCount, slot.Version, slot.Open,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return notFound("resource", string(slot.ResourceID))
		}
		return fmt.Errorf("save slot: %w", err)
	}
	return nil
}

func (s *Store) GetSlot(ctx context.Context, id booking.SlotID) (*booking.Slot, error) {
	return getSlot(ctx, s.pool, id, false)
}

// getSlot with forUpdate takes a row-level lock; only legal inside a
// transaction.
func getSlot(ctx context.Context, q querier, id booking.SlotID, forUpdate bool) (*booking.Slot, error) {
	query := `
		SELECT id, resource_id, start_time, end_time, capacity, reserved_count, version, is_open
		FROM slots WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var slot booking.Slot
	err := q.QueryRow(ctx, query, id).Scan(&slot.ID, &slot.ResourceID,
		&slot.StartTime, &slot.EndTime, &slot.Capacity, &slot.ReservedCount,
		&slot.Version, &slot.Open)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("slot", string(id))
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return &slot, nil
}

func (s *Store) ListSlots(ctx context.Context, resourceID booking.ResourceID, onlyOpen bool) ([]booking.Slot, error) {
	return listSlots(ctx, s.pool, resourceID, onlyOpen)
}

func listSlots(ctx context.Context, q querier, resourceID booking.ResourceID, onlyOpen bool) ([]booking.Slot, error) {
	if _, err := getResource(ctx, q, resourceID); err != nil {
		return nil, err
	}

	query := `
		SELECT s.id, s.resource_id, s.start_time, s.end_time, s.capacity,
		       s.reserved_count, s.version, s.is_open
		FROM slots s
		WHERE s.resource_id = $1`
	if onlyOpen {
		query += ` AND s.is_open
			AND EXISTS (SELECT 1 FROM resources r WHERE r.id = s.resource_id AND r.active)`
	}
	query += " ORDER BY s.start_time ASC"

	rows, err := q.Query(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []booking.Slot
	for rows.Next() {
		var slot booking.Slot
		if err := rows.Scan(&slot.ID, &slot.ResourceID, &slot.StartTime, &slot.EndTime,
			&slot.Capacity, &slot.ReservedCount, &slot.Version, &slot.Open); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

func (s *Store) AdjustReserved(ctx context.Context, slotID booking.SlotID, delta int, expectedVersion int64) error {
	return adjustReserved(ctx, s.pool, slotID, delta, expectedVersion)
}

func adjustReserved(ctx context.Context, q querier, slotID booking.SlotID, delta int, expectedVersion int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE slots
		SET reserved_count = reserved_count + $1,
		    version = version + 1,
		    is_open = (reserved_count + $1 < capacity)
		WHERE id = $2 AND version = $3
		  AND reserved_count + $1 >= 0
		  AND reserved_count + $1 <= capacity`,
		delta, slotID, expectedVersion)
	if err != nil {
		return fmt.Errorf("adjust reserved count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := getSlot(ctx, q, slotID, false); getErr != nil {
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
	return insertBooking(ctx, s.pool, b)
}

func insertBooking(ctx context.Context, q querier, b booking.Booking) error {
	_, err := q.Exec(ctx, `
		INSERT INTO bookings (id, slot_id, resource_id, claimant_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.SlotID, b.ResourceID, b.ClaimantID, b.Status, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &booking.DuplicateBookingError{ClaimantID: b.ClaimantID, SlotID: b.SlotID}
		}
		if isForeignKeyViolation(err) {
			return notFound("slot", string(b.SlotID))
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return getBooking(ctx, s.pool, id)
}

func getBooking(ctx context.Context, q querier, id booking.BookingID) (*booking.Booking, error) {
	var b booking.Booking
	err := q.QueryRow(ctx, `
		SELECT id, slot_id, resource_id, claimant_id, status, created_at, updated_at
		FROM bookings WHERE id = $1`, id,
	).Scan(&b.ID, &b.SlotID, &b.ResourceID, &b.ClaimantID, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("booking", string(id))
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

func (s *Store) ListBookings(ctx context.Context, claimant booking.ActorID, status *booking.BookingStatus) ([]booking.Booking, error) {
	return listBookings(ctx, s.pool, claimant, status)
}

func listBookings(ctx context.Context, q querier, claimant booking.ActorID, status *booking.BookingStatus) ([]booking.Booking, error) {
	query := `
		SELECT id, slot_id, resource_id, claimant_id, status, created_at, updated_at
		FROM bookings WHERE claimant_id = $1`
	args := []any{claimant}
	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}
	query += " ORDER BY created_at ASC"

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		var b booking.Booking
		if err := rows.Scan(&b.ID, &b.SlotID, &b.ResourceID, &b.ClaimantID,
			&b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) HasActiveBooking(ctx context.Context, claimant booking.ActorID, slotID booking.SlotID) (bool, error) {
	return hasActiveBooking(ctx, s.pool, claimant, slotID)
}

func hasActiveBooking(ctx context.Context, q querier, claimant booking.ActorID, slotID booking.SlotID) (bool, error) {
	var count int
	err := q.QueryRow(ctx,
		"SELECT COUNT(*) FROM bookings WHERE claimant_id = $1 AND slot_id = $2 AND status != 'cancelled'",
		claimant, slotID,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id booking.BookingID, from, to booking.BookingStatus) error {
	return updateBookingStatus(ctx, s.pool, id, from, to)
}

func updateBookingStatus(ctx context.Context, q querier, id booking.BookingID, from, to booking.BookingStatus) error {
	tag, err := q.Exec(ctx,
		"UPDATE bookings SET status = $1, updated_at = now() WHERE id = $2 AND status = $3",
		to, id, from)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		b, getErr := getBooking(ctx, q, id)
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

// WithTx executes fn within a database transaction. GetSlot inside the
// transaction locks the slot row, so concurrent reservation attempts on
// the same slot queue up rather than racing the version check.
func (s *Store) WithTx(ctx context.Context, fn func(store booking.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

func (ts *txStore) SaveResource(ctx context.Context, res booking.Resource) error {
	return saveResource(ctx, ts.tx, res)
}

func (ts *txStore) GetResource(ctx context.Context, id booking.ResourceID) (*booking.Resource, error) {
	return getResource(ctx, ts.tx, id)
}

func (ts *txStore) ListResourcesByOwner(ctx context.Context, owner booking.ActorID) ([]booking.Resource, error) {
	return listResourcesByOwner(ctx, ts.tx, owner)
}

func (ts *txStore) SetResourceActive(ctx context.Context, id booking.ResourceID, active bool) error {
	return setResourceActive(ctx, ts.tx, id, active)
}

func (ts *txStore) DeleteResource(ctx context.Context, id booking.ResourceID) error {
	return deleteResource(ctx, ts.tx, id)
}

func (ts *txStore) SaveSlot(ctx context.Context, slot booking.Slot) error {
	return saveSlot(ctx, ts.tx, slot)
}

func (ts *txStore) GetSlot(ctx context.Context, id booking.SlotID) (*booking.Slot, error) {
	return getSlot(ctx, ts.tx, id, true)
}

func (ts *txStore) ListSlots(ctx context.Context, resourceID booking.ResourceID, onlyOpen bool) ([]booking.Slot, error) {
	return listSlots(ctx, ts.tx, resourceID, onlyOpen)
}

func (ts *txStore) AdjustReserved(ctx context.Context, slotID booking.SlotID, delta int, expectedVersion int64) error {
	return adjustReserved(ctx, ts.tx, slotID, delta, expectedVersion)
}

func (ts *txStore) InsertBooking(ctx context.Context, b booking.Booking) error {
	return insertBooking(ctx, ts.tx, b)
}

func (ts *txStore) GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return getBooking(ctx, ts.tx, id)
}

func (ts *txStore) ListBookings(ctx context.Context, claimant booking.ActorID, status *booking.BookingStatus) ([]booking.Booking, error) {
	return listBookings(ctx, ts.tx, claimant, status)
}

func (ts *txStore) HasActiveBooking(ctx context.Context, claimant booking.ActorID, slotID booking.SlotID) (bool, error) {
	return hasActiveBooking(ctx, ts.tx, claimant, slotID)
}

func (ts *txStore) UpdateBookingStatus(ctx context.Context, id booking.BookingID, from, to booking.BookingStatus) error {
	return updateBookingStatus(ctx, ts.tx, id, from, to)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func (s *Store) ReconcileSlots(ctx context.Context) ([]booking.Repair, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT s.id, s.reserved_count, COALESCE(live.n, 0) AS derived
		FROM slots s
		LEFT JOIN (
			SELECT slot_id, COUNT(*) AS n
			FROM bookings
			WHERE status != 'cancelled'
			GROUP BY slot_id
		) live ON live.slot_id = s.id
		WHERE s.reserved_count != COALESCE(live.n, 0)
		ORDER BY s.id ASC
		FOR UPDATE OF s`)
	if err != nil {
		return nil, fmt.Errorf("query drifted slots: %w", err)
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
		_, err := tx.Exec(ctx, `
			UPDATE slots
			SET reserved_count = $1,
			    version = version + 1,
			    is_open = ($1 < capacity)
			WHERE id = $2`, r.Derived, r.SlotID)
		if err != nil {
			return nil, fmt.Errorf("repair slot %s: %w", r.SlotID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return repairs, nil
}

// =============================================================================
// LEDGER READS
// =============================================================================

const ledgerQuery = `
	SELECT b.id, b.claimant_id, b.resource_id, b.slot_id, b.status,
	       s.start_time, s.end_time, b.created_at, b.updated_at
	FROM bookings b
	JOIN slots s ON s.id = b.slot_id
`

func (s *Store) LedgerEntries(ctx context.Context) ([]booking.LedgerEntry, error) {
	return s.queryLedger(ctx, ledgerQuery+" ORDER BY b.created_at ASC")
}

func (s *Store) LedgerEntriesByClaimant(ctx context.Context, claimant booking.ActorID) ([]booking.LedgerEntry, error) {
	return s.queryLedger(ctx, ledgerQuery+" WHERE b.claimant_id = $1 ORDER BY b.created_at ASC", claimant)
}

func (s *Store) queryLedger(ctx context.Context, query string, args ...any) ([]booking.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []booking.LedgerEntry
	for rows.Next() {
		var e booking.LedgerEntry
		if err := rows.Scan(&e.BookingID, &e.ClaimantID, &e.ResourceID, &e.SlotID,
			&e.Status, &e.SlotStart, &e.SlotEnd, &e.BookedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", booking.ErrNotFound, kind, id)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
