package signup

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions stores the server side session records
type Sessions interface {
	Create(ctx context.Context, record *SessionRecord) error
	GetActive(ctx context.Context, id uuid.UUID, now time.Time) (*SessionRecord, error)
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
}

// SessionRepository implements Sessions using Bun.
type SessionRepository struct {
	db *bun.DB
}

// NewSessionRepository creates a new repository.
func NewSessionRepository(db *bun.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts the record, assigning an ID when missing
func (r *SessionRepository) Create(ctx context.Context, record *SessionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := r.db.NewInsert().
		Model(record).
		Exec(ctx)
	return err
}

// GetActive returns the session if it is neither revoked nor expired at now
func (r *SessionRepository) GetActive(ctx context.Context, id uuid.UUID, now time.Time) (*SessionRecord, error) {
	record := &SessionRecord{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}

	if !record.Live(now) {
		return nil, ErrSessionRevoked
	}

	return record, nil
}

// Revoke marks the session as revoked. Revoking twice is a no-op.
func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*SessionRecord)(nil)).
		Set("revoked_at = ?", at).
		Where("id = ?", id).
		Where("revoked_at IS NULL").
		Exec(ctx)
	return err
}
