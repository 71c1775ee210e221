package memory

import (
	"context"
	"sort"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// UserRepository implements registry.UserRepository in memory
type UserRepository struct {
	a access
}

// CreateUser inserts a user; the id is chosen by the caller
func (ur *UserRepository) CreateUser(ctx context.Context, user *registry.User) error {
	return ur.a.write(func(s *state) error {
		if _, exists := s.users[user.ID]; exists {
			return registry.NewConflictError("USER_ALREADY_EXISTS", "un utilisateur avec l'identifiant "+user.ID+" existe déjà")
		}
		if _, ok := s.services[user.ServiceID]; !ok {
			return registry.NewValidationError("REFERENCE_INVALID", "service inexistant")
		}

		user.CreatedAt = now()
		user.UpdatedAt = user.CreatedAt
		if user.Status == "" {
			user.Status = registry.LifecycleActive
		}

		s.users[user.ID] = copyUser(user)
		return nil
	})
}

// GetUser retrieves a user by id with its service summary
func (ur *UserRepository) GetUser(ctx context.Context, id string) (*registry.User, error) {
	var out *registry.User
	err := ur.a.read(func(s *state) error {
		u, ok := s.users[id]
		if !ok {
			return registry.NewNotFoundError("USER_NOT_FOUND", "utilisateur introuvable")
		}
		out = hydrateUser(s, u)
		return nil
	})
	return out, err
}

// UpdateUser replaces the mutable fields of a user, password hash included
func (ur *UserRepository) UpdateUser(ctx context.Context, user *registry.User) error {
	return ur.a.write(func(s *state) error {
		existing, ok := s.users[user.ID]
		if !ok {
			return registry.NewNotFoundError("USER_NOT_FOUND", "utilisateur introuvable")
		}
		if _, ok := s.services[user.ServiceID]; !ok {
			return registry.NewValidationError("REFERENCE_INVALID", "service inexistant")
		}

		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = now()
		if user.PasswordHash == "" {
			user.PasswordHash = existing.PasswordHash
		}
		s.users[user.ID] = copyUser(user)
		return nil
	})
}

// UpdateUserStatus moves a user to another lifecycle state
func (ur *UserRepository) UpdateUserStatus(ctx context.Context, id string, status registry.Lifecycle) error {
	return ur.a.write(func(s *state) error {
		u, ok := s.users[id]
		if !ok {
			return registry.NewNotFoundError("USER_NOT_FOUND", "utilisateur introuvable")
		}
		u.Status = status
		u.UpdatedAt = now()
		return nil
	})
}

// ListUsers returns a page of users ordered by last name
func (ur *UserRepository) ListUsers(ctx context.Context, filter registry.UserFilter) ([]*registry.User, int64, error) {
	var (
		out   []*registry.User
		total int64
	)
	err := ur.a.read(func(s *state) error {
		var matched []*registry.User
		for _, u := range s.users {
			if !filter.IncludeInactive && !u.Status.IsActive() {
				continue
			}
			if filter.ServiceID != 0 && u.ServiceID != filter.ServiceID {
				continue
			}
			if filter.Query != "" &&
				!containsFold(u.ID, filter.Query) &&
				!containsFold(u.FirstName, filter.Query) &&
				!containsFold(u.LastName, filter.Query) {
				continue
			}
			matched = append(matched, hydrateUser(s, u))
		}

		sort.Slice(matched, func(i, j int) bool {
			if matched[i].LastName != matched[j].LastName {
				return matched[i].LastName < matched[j].LastName
			}
			if matched[i].FirstName != matched[j].FirstName {
				return matched[i].FirstName < matched[j].FirstName
			}
			return matched[i].ID < matched[j].ID
		})

		total = int64(len(matched))
		out = page(matched, filter.Page)
		return nil
	})
	return out, total, err
}

// MissingActiveUsers returns the ids without an active user
func (ur *UserRepository) MissingActiveUsers(ctx context.Context, ids []string) ([]string, error) {
	var missing []string
	err := ur.a.read(func(s *state) error {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if u, ok := s.users[id]; !ok || !u.Status.IsActive() {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		return nil
	})
	return missing, err
}

// CountActiveUsersByService counts the active users attached to a service
func (ur *UserRepository) CountActiveUsersByService(ctx context.Context, serviceID int64) (int64, error) {
	var n int64
	err := ur.a.read(func(s *state) error {
		for _, u := range s.users {
			if u.ServiceID == serviceID && u.Status.IsActive() {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ActiveUserIDsByServices lists the active users of any of the services
func (ur *UserRepository) ActiveUserIDsByServices(ctx context.Context, serviceIDs []int64) ([]string, error) {
	var ids []string
	err := ur.a.read(func(s *state) error {
		wanted := make(map[int64]struct{}, len(serviceIDs))
		for _, id := range serviceIDs {
			wanted[id] = struct{}{}
		}
		for _, u := range s.users {
			if _, ok := wanted[u.ServiceID]; ok && u.Status.IsActive() {
				ids = append(ids, u.ID)
			}
		}
		sort.Strings(ids)
		return nil
	})
	return ids, err
}

func hydrateUser(s *state, u *registry.User) *registry.User {
	cp := copyUser(u)
	summary := s.serviceSummary(u.ServiceID)
	cp.Service = &summary
	return cp
}
