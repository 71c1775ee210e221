package postgres

import (
	"context"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

const serviceColumns = "id, name, code, mail_type, status, created_at, updated_at"

var errServiceNotFound = registry.NewNotFoundError("SERVICE_NOT_FOUND", "service introuvable")

// ServiceRepository implements the registry.ServiceRepository interface using PostgreSQL
type ServiceRepository struct {
	ex executor
}

// CreateService inserts a service and assigns its id
func (sr *ServiceRepository) CreateService(ctx context.Context, service *registry.Service) error {
	if service.Status == "" {
		service.Status = registry.LifecycleActive
	}

	query := `
		INSERT INTO services (name, code, mail_type, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := sr.ex.execQueryRow(ctx, query, service.Name, service.Code, service.MailType, service.Status).
		Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)
	return translateError(err)
}

// GetService retrieves a service by id, whatever its status
func (sr *ServiceRepository) GetService(ctx context.Context, id int64) (*registry.Service, error) {
	row := sr.ex.execQueryRow(ctx, "SELECT "+serviceColumns+" FROM services WHERE id = $1", id)
	return scanService(row)
}

// GetServiceByCode retrieves a service by its unique code
func (sr *ServiceRepository) GetServiceByCode(ctx context.Context, code string) (*registry.Service, error) {
	row := sr.ex.execQueryRow(ctx, "SELECT "+serviceColumns+" FROM services WHERE code = $1", code)
	return scanService(row)
}

// UpdateService replaces the mutable fields of a service
func (sr *ServiceRepository) UpdateService(ctx context.Context, service *registry.Service) error {
	query := `
		UPDATE services
		SET name = $2, code = $3, mail_type = $4, status = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := sr.ex.execQueryRow(ctx, query, service.ID, service.Name, service.Code, service.MailType, service.Status).
		Scan(&service.CreatedAt, &service.UpdatedAt)
	return scanError(err, errServiceNotFound)
}

// UpdateServiceStatus moves a service to another lifecycle state
func (sr *ServiceRepository) UpdateServiceStatus(ctx context.Context, id int64, status registry.Lifecycle) error {
	result, err := sr.ex.execCommand(ctx,
		"UPDATE services SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, errServiceNotFound)
}

// ListServices returns a page of services ordered by name
func (sr *ServiceRepository) ListServices(ctx context.Context, filter registry.ServiceFilter) ([]*registry.Service, int64, error) {
	var c conditions
	c.activeOnly("", filter.IncludeInactive)
	if filter.MailType != "" {
		c.add("(mail_type = " + c.arg(string(filter.MailType)) + " OR mail_type = " + c.arg(string(registry.MailTypeBoth)) + ")")
	}
	c.search(filter.Query, "name", "code")

	total, err := count(ctx, sr.ex, "SELECT COUNT(*) FROM services"+c.where(), c.args...)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + serviceColumns + " FROM services" + c.where() + " ORDER BY name, id"
	query += c.page(filter.Page)

	rows, err := sr.ex.execQuery(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var services []*registry.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateError(err)
	}

	return services, total, nil
}

// MissingActiveServices returns the ids without an active service
func (sr *ServiceRepository) MissingActiveServices(ctx context.Context, ids []int64) ([]int64, error) {
	return missingActive(ctx, sr.ex, "services", ids)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanService(row scanner) (*registry.Service, error) {
	svc := &registry.Service{}
	err := row.Scan(&svc.ID, &svc.Name, &svc.Code, &svc.MailType, &svc.Status, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, scanError(err, errServiceNotFound)
	}
	return svc, nil
}

