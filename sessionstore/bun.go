package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	auth "github.com/goliatone/go-auth-frontend"
	"github.com/uptrace/bun"
)

// SessionModel is the Bun model for stored sessions.
type SessionModel struct {
	bun.BaseModel `bun:"table:auth_sessions"`

	ID        string     `bun:"id,pk"`
	Payload   string     `bun:"payload,notnull"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// BunBackend stores sessions in the auth_sessions table.
type BunBackend struct {
	db  bun.IDB
	ttl time.Duration
	now func() time.Time
}

var _ auth.SessionBackend = (*BunBackend)(nil)

func NewBunBackend(db bun.IDB, ttl time.Duration) *BunBackend {
	return &BunBackend{db: db, ttl: ttl, now: time.Now}
}

// CreateSchema creates the auth_sessions table when missing.
func (b *BunBackend) CreateSchema(ctx context.Context) error {
	_, err := b.db.NewCreateTable().
		Model((*SessionModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create auth_sessions: %w", err)
	}
	return nil
}

func (b *BunBackend) Load(ctx context.Context, id string) (auth.SessionState, bool, error) {
	var model SessionModel
	err := b.db.NewSelect().
		Model(&model).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.SessionState{}, false, nil
	}
	if err != nil {
		return auth.SessionState{}, false, fmt.Errorf("select session: %w", err)
	}

	if model.ExpiresAt != nil && !b.now().Before(*model.ExpiresAt) {
		if err := b.Delete(ctx, id); err != nil {
			return auth.SessionState{}, false, err
		}
		return auth.SessionState{}, false, nil
	}

	return decodeFound([]byte(model.Payload))
}

func (b *BunBackend) Save(ctx context.Context, id string, state auth.SessionState) error {
	now := b.now().UTC()
	payload, err := Encode(state, now)
	if err != nil {
		return err
	}

	model := &SessionModel{
		ID:        id,
		Payload:   string(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if b.ttl > 0 {
		expiresAt := now.Add(b.ttl)
		model.ExpiresAt = &expiresAt
	}

	_, err = b.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (b *BunBackend) Delete(ctx context.Context, id string) error {
	_, err := b.db.NewDelete().
		Model((*SessionModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (b *BunBackend) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := b.db.NewDelete().
		Model((*SessionModel)(nil)).
		Where("expires_at IS NOT NULL AND expires_at <= ?", b.now().UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
