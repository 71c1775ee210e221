package memory

import (
	"context"
	"sort"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// AdminRepository implements registry.AdminRepository in memory
type AdminRepository struct {
	a access
}

// CreateAdmin inserts an administrator and assigns its id
func (ar *AdminRepository) CreateAdmin(ctx context.Context, admin *registry.Admin) error {
	return ar.a.write(func(s *state) error {
		if usernameTaken(s, admin.Username, 0) {
			return registry.NewConflictError("ADMIN_USERNAME_EXISTS", "un administrateur avec ce nom existe déjà")
		}

		s.seq.admin++
		admin.ID = s.seq.admin
		admin.CreatedAt = now()
		admin.UpdatedAt = admin.CreatedAt
		if admin.Status == "" {
			admin.Status = registry.LifecycleActive
		}

		cp := *admin
		s.admins[admin.ID] = &cp
		return nil
	})
}

// GetAdmin retrieves an administrator by id
func (ar *AdminRepository) GetAdmin(ctx context.Context, id int64) (*registry.Admin, error) {
	var out *registry.Admin
	err := ar.a.read(func(s *state) error {
		adm, ok := s.admins[id]
		if !ok {
			return registry.NewNotFoundError("ADMIN_NOT_FOUND", "administrateur introuvable")
		}
		cp := *adm
		out = &cp
		return nil
	})
	return out, err
}

// GetAdminByUsername retrieves an administrator by its unique username
func (ar *AdminRepository) GetAdminByUsername(ctx context.Context, username string) (*registry.Admin, error) {
	var out *registry.Admin
	err := ar.a.read(func(s *state) error {
		for _, adm := range s.admins {
			if adm.Username == username {
				cp := *adm
				out = &cp
				return nil
			}
		}
		return registry.NewNotFoundError("ADMIN_NOT_FOUND", "administrateur introuvable")
	})
	return out, err
}

// UpdateAdmin replaces the mutable fields of an administrator
func (ar *AdminRepository) UpdateAdmin(ctx context.Context, admin *registry.Admin) error {
	return ar.a.write(func(s *state) error {
		existing, ok := s.admins[admin.ID]
		if !ok {
			return registry.NewNotFoundError("ADMIN_NOT_FOUND", "administrateur introuvable")
		}
		if usernameTaken(s, admin.Username, admin.ID) {
			return registry.NewConflictError("ADMIN_USERNAME_EXISTS", "un administrateur avec ce nom existe déjà")
		}

		admin.CreatedAt = existing.CreatedAt
		admin.UpdatedAt = now()
		if admin.PasswordHash == "" {
			admin.PasswordHash = existing.PasswordHash
		}
		cp := *admin
		s.admins[admin.ID] = &cp
		return nil
	})
}

// UpdateAdminStatus moves an administrator to another lifecycle state
func (ar *AdminRepository) UpdateAdminStatus(ctx context.Context, id int64, status registry.Lifecycle) error {
	return ar.a.write(func(s *state) error {
		adm, ok := s.admins[id]
		if !ok {
			return registry.NewNotFoundError("ADMIN_NOT_FOUND", "administrateur introuvable")
		}
		adm.Status = status
		adm.UpdatedAt = now()
		return nil
	})
}

// ListAdmins returns a page of administrators ordered by username
func (ar *AdminRepository) ListAdmins(ctx context.Context, opts registry.ListOptions) ([]*registry.Admin, int64, error) {
	var (
		out   []*registry.Admin
		total int64
	)
	err := ar.a.read(func(s *state) error {
		var matched []*registry.Admin
		for _, adm := range s.admins {
			if !opts.IncludeInactive && !adm.Status.IsActive() {
				continue
			}
			if !containsFold(adm.Username, opts.Query) &&
				!containsFold(adm.FirstName, opts.Query) &&
				!containsFold(adm.LastName, opts.Query) {
				continue
			}
			cp := *adm
			matched = append(matched, &cp)
		}

		sort.Slice(matched, func(i, j int) bool {
			if matched[i].Username != matched[j].Username {
				return matched[i].Username < matched[j].Username
			}
			return matched[i].ID < matched[j].ID
		})

		total = int64(len(matched))
		out = page(matched, opts.Page)
		return nil
	})
	return out, total, err
}

func usernameTaken(s *state, username string, self int64) bool {
	for _, adm := range s.admins {
		if adm.Username == username && adm.ID != self {
			return true
		}
	}
	return false
}
