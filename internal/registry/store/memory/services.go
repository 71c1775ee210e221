package memory

import (
	"context"
	"sort"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// ServiceRepository implements registry.ServiceRepository in memory
type ServiceRepository struct {
	a access
}

// CreateService inserts a service and assigns its id
func (sr *ServiceRepository) CreateService(ctx context.Context, service *registry.Service) error {
	return sr.a.write(func(s *state) error {
		if codeTaken(s, service.Code, 0) {
			return registry.NewConflictError("SERVICE_CODE_EXISTS", "un service avec le code "+service.Code+" existe déjà")
		}

		s.seq.service++
		service.ID = s.seq.service
		service.CreatedAt = now()
		service.UpdatedAt = service.CreatedAt
		if service.Status == "" {
			service.Status = registry.LifecycleActive
		}

		cp := *service
		s.services[service.ID] = &cp
		return nil
	})
}

// GetService retrieves a service by id, whatever its status
func (sr *ServiceRepository) GetService(ctx context.Context, id int64) (*registry.Service, error) {
	var out *registry.Service
	err := sr.a.read(func(s *state) error {
		svc, ok := s.services[id]
		if !ok {
			return registry.NewNotFoundError("SERVICE_NOT_FOUND", "service introuvable")
		}
		cp := *svc
		out = &cp
		return nil
	})
	return out, err
}

// GetServiceByCode retrieves a service by its unique code
func (sr *ServiceRepository) GetServiceByCode(ctx context.Context, code string) (*registry.Service, error) {
	var out *registry.Service
	err := sr.a.read(func(s *state) error {
		for _, svc := range s.services {
			if svc.Code == code {
				cp := *svc
				out = &cp
				return nil
			}
		}
		return registry.NewNotFoundError("SERVICE_NOT_FOUND", "service introuvable")
	})
	return out, err
}

// UpdateService replaces the mutable fields of a service
func (sr *ServiceRepository) UpdateService(ctx context.Context, service *registry.Service) error {
	return sr.a.write(func(s *state) error {
		existing, ok := s.services[service.ID]
		if !ok {
			return registry.NewNotFoundError("SERVICE_NOT_FOUND", "service introuvable")
		}
		if codeTaken(s, service.Code, service.ID) {
			return registry.NewConflictError("SERVICE_CODE_EXISTS", "un service avec le code "+service.Code+" existe déjà")
		}

		service.CreatedAt = existing.CreatedAt
		service.UpdatedAt = now()
		cp := *service
		s.services[service.ID] = &cp
		return nil
	})
}

// UpdateServiceStatus moves a service to another lifecycle state
func (sr *ServiceRepository) UpdateServiceStatus(ctx context.Context, id int64, status registry.Lifecycle) error {
	return sr.a.write(func(s *state) error {
		svc, ok := s.services[id]
		if !ok {
			return registry.NewNotFoundError("SERVICE_NOT_FOUND", "service introuvable")
		}
		svc.Status = status
		svc.UpdatedAt = now()
		return nil
	})
}

// ListServices returns a page of services ordered by name
func (sr *ServiceRepository) ListServices(ctx context.Context, filter registry.ServiceFilter) ([]*registry.Service, int64, error) {
	var (
		out   []*registry.Service
		total int64
	)
	err := sr.a.read(func(s *state) error {
		var matched []*registry.Service
		for _, svc := range s.services {
			if !filter.IncludeInactive && !svc.Status.IsActive() {
				continue
			}
			if filter.MailType != "" && svc.MailType != filter.MailType && svc.MailType != registry.MailTypeBoth {
				continue
			}
			if !containsFold(svc.Name, filter.Query) && !containsFold(svc.Code, filter.Query) {
				continue
			}
			cp := *svc
			matched = append(matched, &cp)
		}

		sort.Slice(matched, func(i, j int) bool {
			if matched[i].Name != matched[j].Name {
				return matched[i].Name < matched[j].Name
			}
			return matched[i].ID < matched[j].ID
		})

		total = int64(len(matched))
		out = page(matched, filter.Page)
		return nil
	})
	return out, total, err
}

// MissingActiveServices returns the ids without an active service
func (sr *ServiceRepository) MissingActiveServices(ctx context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	err := sr.a.read(func(s *state) error {
		for _, id := range sortedUnique(ids) {
			if svc, ok := s.services[id]; !ok || !svc.Status.IsActive() {
				missing = append(missing, id)
			}
		}
		return nil
	})
	return missing, err
}

func codeTaken(s *state, code string, self int64) bool {
	for _, svc := range s.services {
		if svc.Code == code && svc.ID != self {
			return true
		}
	}
	return false
}
