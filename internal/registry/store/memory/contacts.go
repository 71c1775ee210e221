package memory

import (
	"context"
	"sort"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// ContactRepository implements registry.ContactRepository in memory. The two
// directions live in disjoint tables with their own id sequences.
type ContactRepository struct {
	a access
}

// CreateContact inserts a contact and assigns its id
func (cr *ContactRepository) CreateContact(ctx context.Context, dir registry.Direction, contact *registry.Contact) error {
	return cr.a.write(func(s *state) error {
		table, err := contactTable(s, dir)
		if err != nil {
			return err
		}

		switch dir {
		case registry.DirectionIn:
			s.seq.contactIn++
			contact.ID = s.seq.contactIn
		default:
			s.seq.contactOut++
			contact.ID = s.seq.contactOut
		}
		contact.CreatedAt = now()
		contact.UpdatedAt = contact.CreatedAt
		if contact.Status == "" {
			contact.Status = registry.LifecycleActive
		}

		cp := *contact
		table[contact.ID] = &cp
		return nil
	})
}

// GetContact retrieves a contact by id
func (cr *ContactRepository) GetContact(ctx context.Context, dir registry.Direction, id int64) (*registry.Contact, error) {
	var out *registry.Contact
	err := cr.a.read(func(s *state) error {
		table, err := contactTable(s, dir)
		if err != nil {
			return err
		}
		c, ok := table[id]
		if !ok {
			return registry.NewNotFoundError("CONTACT_NOT_FOUND", "contact introuvable")
		}
		cp := *c
		out = &cp
		return nil
	})
	return out, err
}

// UpdateContact replaces the mutable fields of a contact
func (cr *ContactRepository) UpdateContact(ctx context.Context, dir registry.Direction, contact *registry.Contact) error {
	return cr.a.write(func(s *state) error {
		table, err := contactTable(s, dir)
		if err != nil {
			return err
		}
		existing, ok := table[contact.ID]
		if !ok {
			return registry.NewNotFoundError("CONTACT_NOT_FOUND", "contact introuvable")
		}

		contact.CreatedAt = existing.CreatedAt
		contact.UpdatedAt = now()
		cp := *contact
		table[contact.ID] = &cp
		return nil
	})
}

// UpdateContactStatus moves a contact to another lifecycle state
func (cr *ContactRepository) UpdateContactStatus(ctx context.Context, dir registry.Direction, id int64, status registry.Lifecycle) error {
	return cr.a.write(func(s *state) error {
		table, err := contactTable(s, dir)
		if err != nil {
			return err
		}
		c, ok := table[id]
		if !ok {
			return registry.NewNotFoundError("CONTACT_NOT_FOUND", "contact introuvable")
		}
		c.Status = status
		c.UpdatedAt = now()
		return nil
	})
}

// ListContacts returns a page of contacts ordered by name
func (cr *ContactRepository) ListContacts(ctx context.Context, dir registry.Direction, opts registry.ListOptions) ([]*registry.Contact, int64, error) {
	var (
		out   []*registry.Contact
		total int64
	)
	err := cr.a.read(func(s *state) error {
		table, err := contactTable(s, dir)
		if err != nil {
			return err
		}

		var matched []*registry.Contact
		for _, c := range table {
			if !opts.IncludeInactive && !c.Status.IsActive() {
				continue
			}
			if !containsFold(c.Name, opts.Query) {
				continue
			}
			cp := *c
			matched = append(matched, &cp)
		}

		sort.Slice(matched, func(i, j int) bool {
			if matched[i].Name != matched[j].Name {
				return matched[i].Name < matched[j].Name
			}
			return matched[i].ID < matched[j].ID
		})

		total = int64(len(matched))
		out = page(matched, opts.Page)
		return nil
	})
	return out, total, err
}

// MissingActiveContacts returns the ids without an active contact in the table
func (cr *ContactRepository) MissingActiveContacts(ctx context.Context, dir registry.Direction, ids []int64) ([]int64, error) {
	var missing []int64
	err := cr.a.read(func(s *state) error {
		table, err := contactTable(s, dir)
		if err != nil {
			return err
		}
		for _, id := range sortedUnique(ids) {
			if c, ok := table[id]; !ok || !c.Status.IsActive() {
				missing = append(missing, id)
			}
		}
		return nil
	})
	return missing, err
}

func contactTable(s *state, dir registry.Direction) (map[int64]*registry.Contact, error) {
	table, ok := s.contacts[dir]
	if !ok {
		return nil, registry.NewValidationError("INVALID_DIRECTION", "direction de contact inconnue: "+string(dir))
	}
	return table, nil
}
