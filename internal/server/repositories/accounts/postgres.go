package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

const (
	constraintUserName = "accounts_normalized_username_key"
	constraintEmail    = "accounts_normalized_email_key"
)

const selectAccount = `SELECT id, username, normalized_username, email, normalized_email, password_hash,
		first_name, last_name, phone_number, is_active, is_deleted,
		refresh_token_hash, refresh_token_expires_at, version, created_at, modified_at
		FROM accounts`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a          models.Account
		tokenHash  sql.NullString
		tokenExp   sql.NullTime
		modifiedAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.UserName, &a.NormalizedUserName, &a.Email, &a.NormalizedEmail, &a.PasswordHash,
		&a.FirstName, &a.LastName, &a.PhoneNumber, &a.IsActive, &a.IsDeleted,
		&tokenHash, &tokenExp, &a.Version, &a.CreatedAt, &modifiedAt)
	if err != nil {
		return nil, err
	}
	if tokenHash.Valid {
		a.RefreshTokenHash = tokenHash.String
	}
	if tokenExp.Valid {
		a.RefreshTokenExpiresAt = tokenExp.Time.UTC()
	}
	if modifiedAt.Valid {
		a.ModifiedAt = modifiedAt.Time.UTC()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func mapWriteError(err error) error {
	if c, ok := dbx.UniqueViolation(err); ok {
		switch c {
		case constraintUserName:
			return ErrDuplicateUserName
		case constraintEmail:
			return ErrDuplicateEmail
		default:
			return common.ErrorAlreadyExists
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO accounts (id, username, normalized_username, email, normalized_email, password_hash,
			first_name, last_name, phone_number, is_active, is_deleted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING version, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.UserName, a.NormalizedUserName, a.Email, a.NormalizedEmail, a.PasswordHash,
		a.FirstName, a.LastName, a.PhoneNumber, a.IsActive, a.IsDeleted).Scan(&a.Version, &a.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	a.CreatedAt = a.CreatedAt.UTC()

	return a, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := selectAccount + "\n\t\t WHERE " + where + " AND NOT is_deleted"

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *PostgresRepository) FindByUserName(ctx context.Context, normalizedUserName string) (*models.Account, error) {
	return r.findOne(ctx, "normalized_username = $1", normalizedUserName)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, normalizedEmail string) (*models.Account, error) {
	return r.findOne(ctx, "normalized_email = $1", normalizedEmail)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := selectAccount + "\n\t\t WHERE NOT is_deleted ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var res []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return res, nil
}

func (r *PostgresRepository) Update(ctx context.Context, a *models.Account) error {
	query :=
		`UPDATE accounts SET
			username = $3, normalized_username = $4, email = $5, normalized_email = $6,
			password_hash = $7, first_name = $8, last_name = $9, phone_number = $10,
			is_active = $11, is_deleted = $12,
			refresh_token_hash = $13, refresh_token_expires_at = $14,
			modified_at = now(), version = version + 1
		 WHERE id = $1 AND version = $2
		 RETURNING version, modified_at
		 `

	var modifiedAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Version,
		a.UserName, a.NormalizedUserName, a.Email, a.NormalizedEmail,
		a.PasswordHash, a.FirstName, a.LastName, a.PhoneNumber,
		a.IsActive, a.IsDeleted,
		nullString(a.RefreshTokenHash), nullTime(a.RefreshTokenExpiresAt)).Scan(&a.Version, &modifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return mapWriteError(err)
	}
	a.ModifiedAt = modifiedAt.UTC()

	return nil
}
