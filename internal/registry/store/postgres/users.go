package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

const userSelect = `
	SELECT u.id, u.password_hash, u.first_name, u.last_name, u.email, u.service_id,
	       u.role, u.status, u.created_at, u.updated_at, s.name, s.code
	FROM users u
	JOIN services s ON s.id = u.service_id`

var errUserNotFound = registry.NewNotFoundError("USER_NOT_FOUND", "utilisateur introuvable")

// UserRepository implements the registry.UserRepository interface using PostgreSQL
type UserRepository struct {
	ex executor
}

// CreateUser inserts a user; the id is chosen by the caller
func (ur *UserRepository) CreateUser(ctx context.Context, user *registry.User) error {
	if user.Status == "" {
		user.Status = registry.LifecycleActive
	}

	query := `
		INSERT INTO users (id, password_hash, first_name, last_name, email, service_id, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := ur.ex.execQueryRow(ctx, query,
		user.ID, user.PasswordHash, user.FirstName, user.LastName, nullString(user.Email),
		user.ServiceID, user.Role, user.Status,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	return translateError(err)
}

// GetUser retrieves a user by id with its service summary
func (ur *UserRepository) GetUser(ctx context.Context, id string) (*registry.User, error) {
	return scanUser(ur.ex.execQueryRow(ctx, userSelect+" WHERE u.id = $1", id))
}

// UpdateUser replaces the mutable fields of a user. An empty password hash
// keeps the stored one.
func (ur *UserRepository) UpdateUser(ctx context.Context, user *registry.User) error {
	query := `
		UPDATE users
		SET password_hash = COALESCE(NULLIF($2, ''), password_hash),
		    first_name = $3, last_name = $4, email = $5, service_id = $6,
		    role = $7, status = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := ur.ex.execQueryRow(ctx, query,
		user.ID, user.PasswordHash, user.FirstName, user.LastName, nullString(user.Email),
		user.ServiceID, user.Role, user.Status,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	return scanError(err, errUserNotFound)
}

// UpdateUserStatus moves a user to another lifecycle state
func (ur *UserRepository) UpdateUserStatus(ctx context.Context, id string, status registry.Lifecycle) error {
	result, err := ur.ex.execCommand(ctx,
		"UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, errUserNotFound)
}

// ListUsers returns a page of users ordered by last name
func (ur *UserRepository) ListUsers(ctx context.Context, filter registry.UserFilter) ([]*registry.User, int64, error) {
	var c conditions
	c.activeOnly("u.", filter.IncludeInactive)
	if filter.ServiceID != 0 {
		c.add("u.service_id = " + c.arg(filter.ServiceID))
	}
	c.search(filter.Query, "u.id", "u.first_name", "u.last_name")

	total, err := count(ctx, ur.ex, "SELECT COUNT(*) FROM users u"+c.where(), c.args...)
	if err != nil {
		return nil, 0, err
	}

	query := userSelect + c.where() + " ORDER BY u.last_name, u.first_name, u.id" + c.page(filter.Page)
	rows, err := ur.ex.execQuery(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*registry.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateError(err)
	}

	return users, total, nil
}

// MissingActiveUsers returns the ids without an active user
func (ur *UserRepository) MissingActiveUsers(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found, err := ur.queryIDs(ctx,
		"SELECT id FROM users WHERE id = ANY($1) AND status = $2",
		pq.Array(ids), string(registry.LifecycleActive))
	if err != nil {
		return nil, err
	}

	have := make(map[string]struct{}, len(found))
	for _, id := range found {
		have[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(ids))
	var missing []string
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return sortStrings(missing), nil
}

// CountActiveUsersByService counts the active users attached to a service
func (ur *UserRepository) CountActiveUsersByService(ctx context.Context, serviceID int64) (int64, error) {
	return count(ctx, ur.ex,
		"SELECT COUNT(*) FROM users WHERE service_id = $1 AND status = $2",
		serviceID, string(registry.LifecycleActive))
}

// ActiveUserIDsByServices lists the active users of any of the services
func (ur *UserRepository) ActiveUserIDsByServices(ctx context.Context, serviceIDs []int64) ([]string, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}
	return ur.queryIDs(ctx,
		"SELECT id FROM users WHERE service_id = ANY($1) AND status = $2 ORDER BY id",
		pq.Array(serviceIDs), string(registry.LifecycleActive))
}

func (ur *UserRepository) queryIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := ur.ex.execQuery(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, translateError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return ids, nil
}

func scanUser(row scanner) (*registry.User, error) {
	var (
		user    registry.User
		email   sql.NullString
		service registry.ServiceSummary
	)
	err := row.Scan(&user.ID, &user.PasswordHash, &user.FirstName, &user.LastName, &email, &user.ServiceID,
		&user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt, &service.Name, &service.Code)
	if err != nil {
		return nil, scanError(err, errUserNotFound)
	}

	user.Email = stringPtr(email)
	service.ID = user.ServiceID
	user.Service = &service
	return &user, nil
}
