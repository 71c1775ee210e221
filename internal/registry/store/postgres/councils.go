package postgres

import (
	"context"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

const councilColumns = "id, first_name, last_name, position, login, status, created_at, updated_at"

var errCouncilNotFound = registry.NewNotFoundError("COUNCIL_NOT_FOUND", "élu introuvable")

// CouncilRepository implements the registry.CouncilRepository interface using PostgreSQL
type CouncilRepository struct {
	ex executor
}

// CreateCouncil inserts a council member and assigns its id
func (cr *CouncilRepository) CreateCouncil(ctx context.Context, council *registry.Council) error {
	if council.Status == "" {
		council.Status = registry.LifecycleActive
	}

	query := `
		INSERT INTO councils (first_name, last_name, position, login, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := cr.ex.execQueryRow(ctx, query, council.FirstName, council.LastName, council.Position, council.Login, council.Status).
		Scan(&council.ID, &council.CreatedAt, &council.UpdatedAt)
	return translateError(err)
}

// GetCouncil retrieves a council member by id
func (cr *CouncilRepository) GetCouncil(ctx context.Context, id int64) (*registry.Council, error) {
	return scanCouncil(cr.ex.execQueryRow(ctx, "SELECT "+councilColumns+" FROM councils WHERE id = $1", id))
}

// GetCouncilByLogin retrieves a council member by login
func (cr *CouncilRepository) GetCouncilByLogin(ctx context.Context, login string) (*registry.Council, error) {
	return scanCouncil(cr.ex.execQueryRow(ctx, "SELECT "+councilColumns+" FROM councils WHERE login = $1", login))
}

// UpdateCouncil replaces the mutable fields of a council member
func (cr *CouncilRepository) UpdateCouncil(ctx context.Context, council *registry.Council) error {
	query := `
		UPDATE councils
		SET first_name = $2, last_name = $3, position = $4, login = $5, status = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := cr.ex.execQueryRow(ctx, query,
		council.ID, council.FirstName, council.LastName, council.Position, council.Login, council.Status,
	).Scan(&council.CreatedAt, &council.UpdatedAt)
	return scanError(err, errCouncilNotFound)
}

// UpdateCouncilStatus moves a council member to another lifecycle state
func (cr *CouncilRepository) UpdateCouncilStatus(ctx context.Context, id int64, status registry.Lifecycle) error {
	result, err := cr.ex.execCommand(ctx,
		"UPDATE councils SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, errCouncilNotFound)
}

// ListCouncils returns a page of council members ordered by last name
func (cr *CouncilRepository) ListCouncils(ctx context.Context, opts registry.ListOptions) ([]*registry.Council, int64, error) {
	var c conditions
	c.activeOnly("", opts.IncludeInactive)
	c.search(opts.Query, "first_name", "last_name", "position", "login")

	total, err := count(ctx, cr.ex, "SELECT COUNT(*) FROM councils"+c.where(), c.args...)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + councilColumns + " FROM councils" + c.where() +
		" ORDER BY last_name, first_name, id" + c.page(opts.Page)
	rows, err := cr.ex.execQuery(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var councils []*registry.Council
	for rows.Next() {
		council, err := scanCouncil(rows)
		if err != nil {
			return nil, 0, err
		}
		councils = append(councils, council)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateError(err)
	}

	return councils, total, nil
}

// MissingActiveCouncils returns the ids without an active council member
func (cr *CouncilRepository) MissingActiveCouncils(ctx context.Context, ids []int64) ([]int64, error) {
	return missingActive(ctx, cr.ex, "councils", ids)
}

func scanCouncil(row scanner) (*registry.Council, error) {
	council := &registry.Council{}
	err := row.Scan(&council.ID, &council.FirstName, &council.LastName, &council.Position, &council.Login,
		&council.Status, &council.CreatedAt, &council.UpdatedAt)
	if err != nil {
		return nil, scanError(err, errCouncilNotFound)
	}
	return council, nil
}
