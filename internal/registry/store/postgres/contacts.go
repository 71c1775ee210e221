package postgres

import (
	"context"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

var errContactNotFound = registry.NewNotFoundError("CONTACT_NOT_FOUND", "contact introuvable")

// ContactRepository implements the registry.ContactRepository interface using
// PostgreSQL. Each direction maps onto its own table.
type ContactRepository struct {
	ex executor
}

func contactTable(dir registry.Direction) (string, error) {
	switch dir {
	case registry.DirectionIn:
		return "contacts_in", nil
	case registry.DirectionOut:
		return "contacts_out", nil
	}
	return "", registry.NewValidationError("INVALID_DIRECTION", "direction de contact inconnue: "+string(dir))
}

// CreateContact inserts a contact and assigns its id
func (cr *ContactRepository) CreateContact(ctx context.Context, dir registry.Direction, contact *registry.Contact) error {
	table, err := contactTable(dir)
	if err != nil {
		return err
	}
	if contact.Status == "" {
		contact.Status = registry.LifecycleActive
	}

	query := "INSERT INTO " + table + " (name, status) VALUES ($1, $2) RETURNING id, created_at, updated_at"
	err = cr.ex.execQueryRow(ctx, query, contact.Name, contact.Status).
		Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
	return translateError(err)
}

// GetContact retrieves a contact by id
func (cr *ContactRepository) GetContact(ctx context.Context, dir registry.Direction, id int64) (*registry.Contact, error) {
	table, err := contactTable(dir)
	if err != nil {
		return nil, err
	}
	return scanContact(cr.ex.execQueryRow(ctx,
		"SELECT id, name, status, created_at, updated_at FROM "+table+" WHERE id = $1", id))
}

// UpdateContact replaces the mutable fields of a contact
func (cr *ContactRepository) UpdateContact(ctx context.Context, dir registry.Direction, contact *registry.Contact) error {
	table, err := contactTable(dir)
	if err != nil {
		return err
	}

	query := "UPDATE " + table + " SET name = $2, status = $3, updated_at = NOW() WHERE id = $1 RETURNING created_at, updated_at"
	err = cr.ex.execQueryRow(ctx, query, contact.ID, contact.Name, contact.Status).
		Scan(&contact.CreatedAt, &contact.UpdatedAt)
	return scanError(err, errContactNotFound)
}

// UpdateContactStatus moves a contact to another lifecycle state
func (cr *ContactRepository) UpdateContactStatus(ctx context.Context, dir registry.Direction, id int64, status registry.Lifecycle) error {
	table, err := contactTable(dir)
	if err != nil {
		return err
	}

	result, err := cr.ex.execCommand(ctx,
		"UPDATE "+table+" SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, errContactNotFound)
}

// ListContacts returns a page of contacts ordered by name
func (cr *ContactRepository) ListContacts(ctx context.Context, dir registry.Direction, opts registry.ListOptions) ([]*registry.Contact, int64, error) {
	table, err := contactTable(dir)
	if err != nil {
		return nil, 0, err
	}

	var c conditions
	c.activeOnly("", opts.IncludeInactive)
	c.search(opts.Query, "name")

	total, err := count(ctx, cr.ex, "SELECT COUNT(*) FROM "+table+c.where(), c.args...)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT id, name, status, created_at, updated_at FROM " + table + c.where() +
		" ORDER BY name, id" + c.page(opts.Page)
	rows, err := cr.ex.execQuery(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var contacts []*registry.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateError(err)
	}

	return contacts, total, nil
}

// MissingActiveContacts returns the ids without an active contact in the table
func (cr *ContactRepository) MissingActiveContacts(ctx context.Context, dir registry.Direction, ids []int64) ([]int64, error) {
	table, err := contactTable(dir)
	if err != nil {
		return nil, err
	}
	return missingActive(ctx, cr.ex, table, ids)
}

func scanContact(row scanner) (*registry.Contact, error) {
	contact := &registry.Contact{}
	err := row.Scan(&contact.ID, &contact.Name, &contact.Status, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		return nil, scanError(err, errContactNotFound)
	}
	return contact, nil
}
