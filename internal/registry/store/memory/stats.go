package memory

import (
	"context"
	"sort"
	"time"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// StatsRepository implements registry.StatsRepository in memory
type StatsRepository struct {
	a access
}

// CountMailIn counts the incoming mails matching the filter
func (sr *StatsRepository) CountMailIn(ctx context.Context, filter registry.MailInFilter) (int64, error) {
	var n int64
	err := sr.a.read(func(s *state) error {
		n = int64(len(s.matchMailIn(filter)))
		return nil
	})
	return n, err
}

// CountMailOut counts the outgoing mails matching the filter
func (sr *StatsRepository) CountMailOut(ctx context.Context, filter registry.MailOutFilter) (int64, error) {
	var n int64
	err := sr.a.read(func(s *state) error {
		n = int64(len(s.matchMailOut(filter)))
		return nil
	})
	return n, err
}

// MailInVolumeByService ranks services by the number of distinct incoming
// mails routed to them
func (sr *StatsRepository) MailInVolumeByService(ctx context.Context, limit int) ([]registry.ServiceVolume, error) {
	var out []registry.ServiceVolume
	err := sr.a.read(func(s *state) error {
		mails := make(map[int64]map[int64]struct{})
		for _, d := range s.destinations {
			if mails[d.ServiceID] == nil {
				mails[d.ServiceID] = make(map[int64]struct{})
			}
			mails[d.ServiceID][d.MailID] = struct{}{}
		}

		for serviceID, set := range mails {
			out = append(out, registry.ServiceVolume{Service: s.serviceSummary(serviceID), MailIn: int64(len(set))})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].MailIn != out[j].MailIn {
				return out[i].MailIn > out[j].MailIn
			}
			return out[i].Service.ID < out[j].Service.ID
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

// MonthlyVolumes counts incoming and outgoing mails per month from since
// onwards. Months without traffic are omitted.
func (sr *StatsRepository) MonthlyVolumes(ctx context.Context, since time.Time) ([]registry.MonthlyVolume, error) {
	var out []registry.MonthlyVolume
	err := sr.a.read(func(s *state) error {
		from := registry.Day(since)
		byMonth := make(map[string]*registry.MonthlyVolume)
		bucket := func(t time.Time) *registry.MonthlyVolume {
			key := t.Format("2006-01")
			v, ok := byMonth[key]
			if !ok {
				v = &registry.MonthlyVolume{Month: key}
				byMonth[key] = v
			}
			return v
		}

		for _, row := range s.mailIn {
			if !row.Date.Before(from) {
				bucket(row.Date).MailIn++
			}
		}
		for _, row := range s.mailOut {
			if !row.Date.Before(from) {
				bucket(row.Date).MailOut++
			}
		}

		for _, v := range byMonth {
			out = append(out, *v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
		return nil
	})
	return out, err
}
