package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/tastebuds/room-server-go/internal/model"
)

type IdentityRepository interface {
	FindByID(ctx context.Context, id string) (*model.Identity, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Identity, error)
	Create(ctx context.Context, params model.CreateIdentityParams) (*model.Identity, error)
}

type identityDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type identityRepo struct {
	db identityDB
}

func NewIdentityRepository(db *sqlx.DB) IdentityRepository {
	return &identityRepo{db: db}
}

func (r *identityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.GetContext(ctx, &identity, `
		SELECT * FROM identities WHERE id = $1
	`, id)
	return HandleNotFound(&identity, err)
}

func (r *identityRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.GetContext(ctx, &identity, `
		SELECT * FROM identities WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&identity, err)
}

func (r *identityRepo) Create(ctx context.Context, params model.CreateIdentityParams) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.GetContext(ctx, &identity, `
		INSERT INTO identities (id, token_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.ID, params.TokenHash, params.DisplayName)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}
