package memory

import (
	"context"
	"sort"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// CouncilRepository implements registry.CouncilRepository in memory
type CouncilRepository struct {
	a access
}

// CreateCouncil inserts a council member and assigns its id
func (cr *CouncilRepository) CreateCouncil(ctx context.Context, council *registry.Council) error {
	return cr.a.write(func(s *state) error {
		if loginTaken(s, council.Login, 0) {
			return registry.NewConflictError("COUNCIL_LOGIN_EXISTS", "un élu avec le login "+council.Login+" existe déjà")
		}

		s.seq.council++
		council.ID = s.seq.council
		council.CreatedAt = now()
		council.UpdatedAt = council.CreatedAt
		if council.Status == "" {
			council.Status = registry.LifecycleActive
		}

		cp := *council
		s.councils[council.ID] = &cp
		return nil
	})
}

// GetCouncil retrieves a council member by id
func (cr *CouncilRepository) GetCouncil(ctx context.Context, id int64) (*registry.Council, error) {
	var out *registry.Council
	err := cr.a.read(func(s *state) error {
		c, ok := s.councils[id]
		if !ok {
			return registry.NewNotFoundError("COUNCIL_NOT_FOUND", "élu introuvable")
		}
		cp := *c
		out = &cp
		return nil
	})
	return out, err
}

// GetCouncilByLogin retrieves a council member by login
func (cr *CouncilRepository) GetCouncilByLogin(ctx context.Context, login string) (*registry.Council, error) {
	var out *registry.Council
	err := cr.a.read(func(s *state) error {
		for _, c := range s.councils {
			if c.Login == login {
				cp := *c
				out = &cp
				return nil
			}
		}
		return registry.NewNotFoundError("COUNCIL_NOT_FOUND", "élu introuvable")
	})
	return out, err
}

// UpdateCouncil replaces the mutable fields of a council member
func (cr *CouncilRepository) UpdateCouncil(ctx context.Context, council *registry.Council) error {
	return cr.a.write(func(s *state) error {
		existing, ok := s.councils[council.ID]
		if !ok {
			return registry.NewNotFoundError("COUNCIL_NOT_FOUND", "élu introuvable")
		}
		if loginTaken(s, council.Login, council.ID) {
			return registry.NewConflictError("COUNCIL_LOGIN_EXISTS", "un élu avec le login "+council.Login+" existe déjà")
		}

		council.CreatedAt = existing.CreatedAt
		council.UpdatedAt = now()
		cp := *council
		s.councils[council.ID] = &cp
		return nil
	})
}

// UpdateCouncilStatus moves a council member to another lifecycle state
func (cr *CouncilRepository) UpdateCouncilStatus(ctx context.Context, id int64, status registry.Lifecycle) error {
	return cr.a.write(func(s *state) error {
		c, ok := s.councils[id]
		if !ok {
			return registry.NewNotFoundError("COUNCIL_NOT_FOUND", "élu introuvable")
		}
		c.Status = status
		c.UpdatedAt = now()
		return nil
	})
}

// ListCouncils returns a page of council members ordered by last name
func (cr *CouncilRepository) ListCouncils(ctx context.Context, opts registry.ListOptions) ([]*registry.Council, int64, error) {
	var (
		out   []*registry.Council
		total int64
	)
	err := cr.a.read(func(s *state) error {
		var matched []*registry.Council
		for _, c := range s.councils {
			if !opts.IncludeInactive && !c.Status.IsActive() {
				continue
			}
			if !containsFold(c.FirstName, opts.Query) &&
				!containsFold(c.LastName, opts.Query) &&
				!containsFold(c.Position, opts.Query) &&
				!containsFold(c.Login, opts.Query) {
				continue
			}
			cp := *c
			matched = append(matched, &cp)
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
		out = page(matched, opts.Page)
		return nil
	})
	return out, total, err
}

// MissingActiveCouncils returns the ids without an active council member
func (cr *CouncilRepository) MissingActiveCouncils(ctx context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	err := cr.a.read(func(s *state) error {
		for _, id := range sortedUnique(ids) {
			if c, ok := s.councils[id]; !ok || !c.Status.IsActive() {
				missing = append(missing, id)
			}
		}
		return nil
	})
	return missing, err
}

func loginTaken(s *state, login string, self int64) bool {
	for _, c := range s.councils {
		if c.Login == login && c.ID != self {
			return true
		}
	}
	return false
}
