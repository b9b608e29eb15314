package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Exists(ctx context.Context, normalizedName string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM roles WHERE normalized_name = $1)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, normalizedName).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) Create(ctx context.Context, role *models.Role) (*models.Role, error) {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}

	// ON CONFLICT keeps an enclosing transaction usable when the role exists.
	query :=
		`INSERT INTO roles (id, name, normalized_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (normalized_name) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, role.ID, role.Name, role.NormalizedName)
	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := requireAffected(res); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, err
	}
	return role, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Role, error) {
	query := `SELECT id, name, normalized_name FROM roles ORDER BY normalized_name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var res []*models.Role
	for rows.Next() {
		role := &models.Role{}
		if err := rows.Scan(&role.ID, &role.Name, &role.NormalizedName); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		res = append(res, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return res, nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, accountID, normalizedName string) error {
	query :=
		`INSERT INTO account_roles (account_id, role_id)
		 SELECT $1, id FROM roles WHERE normalized_name = $2
		 `

	res, err := r.db.ExecContext(ctx, query, accountID, normalizedName)
	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) RemoveMember(ctx context.Context, accountID, normalizedName string) error {
	query :=
		`DELETE FROM account_roles ar
		 USING roles r
		 WHERE ar.role_id = r.id AND ar.account_id = $1 AND r.normalized_name = $2
		 `

	res, err := r.db.ExecContext(ctx, query, accountID, normalizedName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) IsMember(ctx context.Context, accountID, normalizedName string) (bool, error) {
	query :=
		`SELECT EXISTS (
			SELECT 1 FROM account_roles ar JOIN roles r ON r.id = ar.role_id
			WHERE ar.account_id = $1 AND r.normalized_name = $2)
		 `

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, accountID, normalizedName).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) ListForAccount(ctx context.Context, accountID string) ([]string, error) {
	query :=
		`SELECT r.name FROM roles r
		 JOIN account_roles ar ON ar.role_id = r.id
		 WHERE ar.account_id = $1
		 ORDER BY r.name
		 `

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return names, nil
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func requireAffected(res rowsAffected) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
