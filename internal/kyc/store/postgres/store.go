// Package postgres persists KYC records in PostgreSQL. Mutations for one
// address are serialized with a transaction-scoped advisory lock; the partial
// unique index on (address) WHERE NOT superseded backs the one-current-record rule.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	identity "unikyc/internal/identity/models"
	"unikyc/internal/kyc/models"
	id "unikyc/pkg/domain"
	"unikyc/pkg/platform/sentinel"
)

const recordColumns = `id, address, name, status, created_at, updated_at, last_verified_at, expiry_date,
	total_shares, required_shares, share_digests, payload_ref,
	unlock_block_height, unlock_request_id, decrypted, decrypted_at,
	superseded, superseded_by, liveness_score, rejection_reason`

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		r              models.Record
		recordID       uuid.UUID
		address        string
		status         string
		unlockHeight   *int64
		unlockRequest  *uuid.UUID
		decrypted      bool
		decryptedAt    *time.Time
		supersededBy   *uuid.UUID
		lastVerifiedAt *time.Time
		expiryDate     *time.Time
	)
	err := row.Scan(&recordID, &address, &r.Identifier.Name, &status, &r.CreatedAt, &r.UpdatedAt,
		&lastVerifiedAt, &expiryDate,
		&r.Scheme.TotalShares, &r.Scheme.RequiredShares, &r.Scheme.ShareDigests, &r.EncryptedPayloadRef,
		&unlockHeight, &unlockRequest, &decrypted, &decryptedAt,
		&r.Superseded, &supersededBy, &r.LivenessScore, &r.RejectionReason)
	if err != nil {
		return nil, classify(err)
	}
	r.ID = id.RecordID(recordID)
	r.Identifier = identity.CanonicalIdentifier{Address: id.Address(address), Name: r.Identifier.Name}
	r.Status = models.Status(status)
	r.LastVerifiedAt = utc(lastVerifiedAt)
	r.ExpiryDate = utc(expiryDate)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	if unlockRequest != nil {
		lock := &models.TimeLock{
			RequestID:   id.UnlockRequestID(*unlockRequest),
			Decrypted:   decrypted,
			DecryptedAt: utc(decryptedAt),
		}
		if unlockHeight != nil {
			lock.UnlockBlockHeight = uint64(*unlockHeight)
		}
		r.TimeLock = lock
	}
	if supersededBy != nil {
		next := id.RecordID(*supersededBy)
		r.SupersededBy = &next
	}
	return &r, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *Store) Current(ctx context.Context, addr id.Address) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM kyc_records WHERE address = $1 AND NOT superseded`, string(addr))
	return scanRecord(row)
}

func (s *Store) FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM kyc_records WHERE id = $1`, uuid.UUID(recordID))
	return scanRecord(row)
}

func (s *Store) FindByUnlockRequest(ctx context.Context, requestID id.UnlockRequestID) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM kyc_records WHERE unlock_request_id = $1`, uuid.UUID(requestID))
	return scanRecord(row)
}

func (s *Store) ListByAddress(ctx context.Context, addr id.Address) ([]*models.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+recordColumns+` FROM kyc_records WHERE address = $1 ORDER BY created_at DESC, seq DESC`, string(addr))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// CreateSuperseding inserts rec as the current record and retires
// expectedCurrent in one transaction. Returns sentinel.ErrConflict when the
// current record is not expectedCurrent.
func (s *Store) CreateSuperseding(ctx context.Context, rec *models.Record, expectedCurrent *id.RecordID) error {
	return s.inTx(ctx, rec.Identifier.Address, func(tx pgx.Tx) error {
		var currentID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM kyc_records WHERE address = $1 AND NOT superseded FOR UPDATE`,
			string(rec.Identifier.Address)).Scan(&currentID)
		hasCurrent := true
		if errors.Is(err, pgx.ErrNoRows) {
			hasCurrent = false
		} else if err != nil {
			return classify(err)
		}

		switch {
		case expectedCurrent == nil && hasCurrent:
			return sentinel.ErrConflict
		case expectedCurrent != nil && (!hasCurrent || id.RecordID(currentID) != *expectedCurrent):
			return sentinel.ErrConflict
		}

		if hasCurrent {
			prior, err := scanRecord(tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM kyc_records WHERE id = $1`, currentID))
			if err != nil {
				return err
			}
			prior.ApplySupersede(rec.ID, rec.CreatedAt)
			if err := update(ctx, tx, prior); err != nil {
				return err
			}
		}
		return insert(ctx, tx, rec)
	})
}

// Execute loads a record under lock, validates, mutates and writes it back.
func (s *Store) Execute(ctx context.Context, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	var address string
	err := s.pool.QueryRow(ctx, `SELECT address FROM kyc_records WHERE id = $1`, uuid.UUID(recordID)).Scan(&address)
	if err != nil {
		return nil, classify(err)
	}

	var result *models.Record
	err = s.inTx(ctx, id.Address(address), func(tx pgx.Tx) error {
		r, err := scanRecord(tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM kyc_records WHERE id = $1 FOR UPDATE`, uuid.UUID(recordID)))
		if err != nil {
			return err
		}
		if err := validate(r); err != nil {
			return err
		}
		mutate(r)
		if err := update(ctx, tx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) inTx(ctx context.Context, addr id.Address, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(addr)); err != nil {
		return classify(err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func insert(ctx context.Context, tx pgx.Tx, r *models.Record) error {
	unlockHeight, unlockRequest, decrypted, decryptedAt := timeLockColumns(r)
	_, err := tx.Exec(ctx, `
		INSERT INTO kyc_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		uuid.UUID(r.ID), string(r.Identifier.Address), r.Identifier.Name, string(r.Status), r.CreatedAt, r.UpdatedAt,
		r.LastVerifiedAt, r.ExpiryDate,
		r.Scheme.TotalShares, r.Scheme.RequiredShares, r.Scheme.ShareDigests, r.EncryptedPayloadRef,
		unlockHeight, unlockRequest, decrypted, decryptedAt,
		r.Superseded, supersededColumn(r), r.LivenessScore, r.RejectionReason,
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

func update(ctx context.Context, tx pgx.Tx, r *models.Record) error {
	_, _, decrypted, decryptedAt := timeLockColumns(r)
	_, err := tx.Exec(ctx, `
		UPDATE kyc_records SET
			status = $2, updated_at = $3, last_verified_at = $4, expiry_date = $5,
			decrypted = $6, decrypted_at = $7, superseded = $8, superseded_by = $9, rejection_reason = $10
		WHERE id = $1`,
		uuid.UUID(r.ID), string(r.Status), r.UpdatedAt, r.LastVerifiedAt, r.ExpiryDate,
		decrypted, decryptedAt, r.Superseded, supersededColumn(r), r.RejectionReason,
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

func timeLockColumns(r *models.Record) (height *int64, request *uuid.UUID, decrypted bool, decryptedAt *time.Time) {
	if r.TimeLock == nil {
		return nil, nil, false, nil
	}
	h := int64(r.TimeLock.UnlockBlockHeight)
	req := uuid.UUID(r.TimeLock.RequestID)
	return &h, &req, r.TimeLock.Decrypted, r.TimeLock.DecryptedAt
}

func supersededColumn(r *models.Record) *uuid.UUID {
	if r.SupersededBy == nil {
		return nil
	}
	u := uuid.UUID(*r.SupersededBy)
	return &u
}

// classify maps driver errors onto sentinel errors.
func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%s: %w", pgErr.Message, sentinel.ErrConflict)
		}
		return fmt.Errorf("postgres: %w", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("postgres: %w: %w", sentinel.ErrUnavailable, err)
}
