package local

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is a locally registered account.
type User struct {
	bun.BaseModel `bun:"table:local_users,alias:lu"`

	ID            uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string            `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string            `bun:"email,notnull" json:"email,omitempty"`
	PasswordHash  string            `bun:"password_hash,notnull" json:"-"`
	Attributes    map[string]string `bun:"attributes,type:jsonb" json:"attributes,omitempty"`
	Enabled       bool              `bun:"enabled,notnull" json:"enabled"`
	Confirmed     bool              `bun:"confirmed,notnull" json:"confirmed"`
	CodeHash      string            `bun:"code_hash" json:"-"`
	CodeExpiresAt *time.Time        `bun:"code_expires_at,nullzero" json:"-"`
	LoggedInAt    *time.Time        `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt     *time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time        `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Status mirrors the user pool status names.
func (u *User) Status() string {
	if u.Confirmed {
		return "CONFIRMED"
	}
	return "UNCONFIRMED"
}

// Users is the local_users repository.
type Users interface {
	repository.Repository[*User]

	GetByUsername(ctx context.Context, username string) (*User, error)
	Save(ctx context.Context, user *User) (*User, error)
	DeleteByUsername(ctx context.Context, username string) error
}

type users struct {
	repository.Repository[*User]
	db bun.IDB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{Repository: repo, db: db}
}

func (u *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return u.Repository.GetByIdentifierTx(ctx, u.db, username)
}

// Save updates every column of an existing user.
func (u *users) Save(ctx context.Context, user *User) (*User, error) {
	now := time.Now()
	user.UpdatedAt = &now
	return u.Repository.UpdateTx(ctx, u.db, user, repository.UpdateByID(user.ID.String()))
}

func (u *users) DeleteByUsername(ctx context.Context, username string) error {
	res, err := u.db.NewDelete().
		Model((*User)(nil)).
		Where("username = ?", username).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"username": username,
			})
	}
	return nil
}

// EnsureSchema creates the local_users table when missing.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create local_users: %w", err)
	}
	return nil
}
