package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("monitor: not found")

// TransactionRecord mirrors Transaction by external id plus (user, group)
// for query authorization (spec.md §3).
type TransactionRecord struct {
	ID            int64
	TransactionID uuid.UUID
	User          string
	Group         string
	CreatedAt     time.Time
}

// SubRecord is one independently retriable slice of a transaction
// (spec.md §3 Monitor.SubRecord).
type SubRecord struct {
	ID                  int64
	SubID               uuid.UUID
	TransactionRecordID int64
	State               State
	RetryCount          int
	LastTransition      time.Time
}

// FailedFile is one append-only (path, reason) row attached to a
// SubRecord (spec.md §3 Monitor.FailedFile).
type FailedFile struct {
	ID          int64
	SubRecordID int64
	Path        string
	Reason      string
	CreatedAt   time.Time
}

// Store is the Postgres-backed monitor store, built directly on pgxpool
// with raw SQL rather than an ORM, mirroring the teacher's
// db/state_store.go method set (UpdatePhase/TransitionTo/IsTerminal
// become CreateSubRecord/TransitionState/State.IsTerminal here).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn and verifies connectivity with a ping.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect monitor store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping monitor store: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// CreateTransactionRecord inserts a TransactionRecord, created by the
// router on transaction entry (spec.md §3 Lifecycle).
func (s *Store) CreateTransactionRecord(ctx context.Context, transactionID uuid.UUID, user, group string) (*TransactionRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO transaction_records (transaction_id, "user", "group", created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, transaction_id, "user", "group", created_at`,
		transactionID, user, group)

	var tr TransactionRecord
	if err := row.Scan(&tr.ID, &tr.TransactionID, &tr.User, &tr.Group, &tr.CreatedAt); err != nil {
		return nil, fmt.Errorf("create transaction record: %w", err)
	}
	return &tr, nil
}

// GetTransactionRecord looks up a TransactionRecord by its external id.
func (s *Store) GetTransactionRecord(ctx context.Context, transactionID uuid.UUID) (*TransactionRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, transaction_id, "user", "group", created_at
		FROM transaction_records WHERE transaction_id = $1`, transactionID)

	var tr TransactionRecord
	if err := row.Scan(&tr.ID, &tr.TransactionID, &tr.User, &tr.Group, &tr.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction record: %w", err)
	}
	return &tr, nil
}

// CreateSubRecord inserts a new SubRecord in StateInitialising, created
// by the router on transaction entry or by the splitter spawning a
// sub-transaction (spec.md §3 Lifecycle).
func (s *Store) CreateSubRecord(ctx context.Context, transactionRecordID int64) (*SubRecord, error) {
	subID := uuid.New()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sub_records (sub_id, transaction_record_id, state, retry_count, last_transition)
		VALUES ($1, $2, $3, 0, now())
		RETURNING id, sub_id, transaction_record_id, state, retry_count, last_transition`,
		subID, transactionRecordID, int(StateInitialising))

	return scanSubRecord(row)
}

// GetSubRecord looks up a SubRecord by its sub-id. The state column is
// stored and read as its integer value; the REDESIGN FLAG (a) legacy
// name aliases are applied by ParseState to state names, not here.
func (s *Store) GetSubRecord(ctx context.Context, subID uuid.UUID) (*SubRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, sub_id, transaction_record_id, state, retry_count, last_transition
		FROM sub_records WHERE sub_id = $1`, subID)

	sr, err := scanSubRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sr, nil
}

func scanSubRecord(row pgx.Row) (*SubRecord, error) {
	var sr SubRecord
	var stateInt int
	if err := row.Scan(&sr.ID, &sr.SubID, &sr.TransactionRecordID, &stateInt, &sr.RetryCount, &sr.LastTransition); err != nil {
		return nil, fmt.Errorf("scan sub record: %w", err)
	}
	sr.State = State(stateInt)
	return &sr, nil
}

// TransitionState moves a SubRecord from its current state to `to`,
// rejecting the move if it violates the transition relation of
// spec.md §4.2 (rule 3: transitions are persisted before re-publishing
// downstream — callers must call this before publishing the next
// message).
func (s *Store) TransitionState(ctx context.Context, subID uuid.UUID, to State) error {
	current, err := s.GetSubRecord(ctx, subID)
	if err != nil {
		return err
	}
	if !CanTransition(current.State, to) {
		return fmt.Errorf("monitor: illegal transition %s -> %s for sub-record %s", current.State, to, subID)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sub_records SET state = $1, last_transition = now() WHERE sub_id = $2`,
		int(to), subID)
	if err != nil {
		return fmt.Errorf("transition sub record %s: %w", subID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementRetry bumps a SubRecord's retry counter, used when a
// per-file error is tallied rather than immediately failing the whole
// sub-record (spec.md §7).
func (s *Store) IncrementRetry(ctx context.Context, subID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sub_records SET retry_count = retry_count + 1 WHERE sub_id = $1`, subID)
	if err != nil {
		return fmt.Errorf("increment retry for sub record %s: %w", subID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordFailedFile appends a (path, reason) row, never updated or
// deleted (spec.md §3 Monitor.FailedFile is append-only).
func (s *Store) RecordFailedFile(ctx context.Context, subRecordID int64, path, reason string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO failed_files (sub_record_id, path, reason, created_at)
		VALUES ($1, $2, $3, now())`, subRecordID, path, reason)
	if err != nil {
		return fmt.Errorf("record failed file: %w", err)
	}
	return nil
}

// FailedFilesForSubRecord lists every FailedFile row for a SubRecord, in
// insertion order.
func (s *Store) FailedFilesForSubRecord(ctx context.Context, subRecordID int64) ([]FailedFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sub_record_id, path, reason, created_at
		FROM failed_files WHERE sub_record_id = $1 ORDER BY id`, subRecordID)
	if err != nil {
		return nil, fmt.Errorf("list failed files: %w", err)
	}
	defer rows.Close()

	var out []FailedFile
	for rows.Next() {
		var f FailedFile
		if err := rows.Scan(&f.ID, &f.SubRecordID, &f.Path, &f.Reason, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan failed file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
