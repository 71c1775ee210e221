package postgres

import (
	"context"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

const adminColumns = "id, username, password_hash, first_name, last_name, status, created_at, updated_at"

var errAdminNotFound = registry.NewNotFoundError("ADMIN_NOT_FOUND", "administrateur introuvable")

// AdminRepository implements the registry.AdminRepository interface using PostgreSQL
type AdminRepository struct {
	ex executor
}

// CreateAdmin inserts an administrator and assigns its id
func (ar *AdminRepository) CreateAdmin(ctx context.Context, admin *registry.Admin) error {
	if admin.Status == "" {
		admin.Status = registry.LifecycleActive
	}

	query := `
		INSERT INTO admins (username, password_hash, first_name, last_name, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := ar.ex.execQueryRow(ctx, query, admin.Username, admin.PasswordHash, admin.FirstName, admin.LastName, admin.Status).
		Scan(&admin.ID, &admin.CreatedAt, &admin.UpdatedAt)
	return translateError(err)
}

// GetAdmin retrieves an administrator by id
func (ar *AdminRepository) GetAdmin(ctx context.Context, id int64) (*registry.Admin, error) {
	return scanAdmin(ar.ex.execQueryRow(ctx, "SELECT "+adminColumns+" FROM admins WHERE id = $1", id))
}

// GetAdminByUsername retrieves an administrator by its unique username
func (ar *AdminRepository) GetAdminByUsername(ctx context.Context, username string) (*registry.Admin, error) {
	return scanAdmin(ar.ex.execQueryRow(ctx, "SELECT "+adminColumns+" FROM admins WHERE username = $1", username))
}

// UpdateAdmin replaces the mutable fields of an administrator. An empty
// password hash keeps the stored one.
func (ar *AdminRepository) UpdateAdmin(ctx context.Context, admin *registry.Admin) error {
	query := `
		UPDATE admins
		SET username = $2, password_hash = COALESCE(NULLIF($3, ''), password_hash),
		    first_name = $4, last_name = $5, status = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := ar.ex.execQueryRow(ctx, query,
		admin.ID, admin.Username, admin.PasswordHash, admin.FirstName, admin.LastName, admin.Status,
	).Scan(&admin.CreatedAt, &admin.UpdatedAt)
	return scanError(err, errAdminNotFound)
}

// UpdateAdminStatus moves an administrator to another lifecycle state
func (ar *AdminRepository) UpdateAdminStatus(ctx context.Context, id int64, status registry.Lifecycle) error {
	result, err := ar.ex.execCommand(ctx,
		"UPDATE admins SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, errAdminNotFound)
}

// ListAdmins returns a page of administrators ordered by username
func (ar *AdminRepository) ListAdmins(ctx context.Context, opts registry.ListOptions) ([]*registry.Admin, int64, error) {
	var c conditions
	c.activeOnly("", opts.IncludeInactive)
	c.search(opts.Query, "username", "first_name", "last_name")

	total, err := count(ctx, ar.ex, "SELECT COUNT(*) FROM admins"+c.where(), c.args...)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + adminColumns + " FROM admins" + c.where() + " ORDER BY username, id" + c.page(opts.Page)
	rows, err := ar.ex.execQuery(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var admins []*registry.Admin
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			return nil, 0, err
		}
		admins = append(admins, admin)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateError(err)
	}

	return admins, total, nil
}

func scanAdmin(row scanner) (*registry.Admin, error) {
	admin := &registry.Admin{}
	err := row.Scan(&admin.ID, &admin.Username, &admin.PasswordHash, &admin.FirstName, &admin.LastName,
		&admin.Status, &admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		return nil, scanError(err, errAdminNotFound)
	}
	return admin, nil
}
