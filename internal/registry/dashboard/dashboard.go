// Package dashboard computes the aggregate views of the registry home page.
package dashboard

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/songzhibin97/mailregistry/internal/registry/cache"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

const (
	recentLimit    = 5
	volumeLimit    = 10
	maxHistory     = 36
	defaultHistory = 12

	generationKey = "dashboard:generation"
)

// Totals are the headline counters of the dashboard
type Totals struct {
	MailIn     int64 `json:"mailIn"`
	MailOut    int64 `json:"mailOut"`
	NeedsMayor int64 `json:"needsMayor"`
	NeedsDgs   int64 `json:"needsDgs"`

	// Unread counts the mails distributed to the caller and not yet read
	Unread int64 `json:"unread"`
}

// Summary is the dashboard payload
type Summary struct {
	Totals        Totals                   `json:"totals"`
	RecentMailIn  []*registry.MailIn       `json:"recentMailIn"`
	RecentMailOut []*registry.MailOut      `json:"recentMailOut"`
	ByService     []registry.ServiceVolume `json:"byService"`
	GeneratedAt   time.Time                `json:"generatedAt"`
}

// Service computes dashboard aggregates, optionally through a cache
type Service struct {
	repo   registry.Repository
	cache  cache.Cache
	ttl    time.Duration
	logger log.Logger
	now    func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithCache caches summaries for ttl. Entries are dropped on any mail write
// through Invalidate.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a dashboard service
func NewService(repo registry.Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: log.Component("dashboard"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary returns the dashboard of caller. The queries run concurrently and
// are not taken from a single snapshot.
func (s *Service) Summary(ctx context.Context, caller registry.Caller) (*Summary, error) {
	key := ""
	if s.cache != nil {
		key = s.summaryKey(ctx, caller)
		if summary, ok := s.cached(ctx, key); ok {
			return summary, nil
		}
	}

	summary, err := s.compute(ctx, caller)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.store(ctx, key, summary)
	}
	return summary, nil
}

func (s *Service) compute(ctx context.Context, caller registry.Caller) (*Summary, error) {
	summary := &Summary{GeneratedAt: s.now().UTC()}
	stats := s.repo.Stats()
	yes := true

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := stats.CountMailIn(ctx, registry.MailInFilter{})
		summary.Totals.MailIn = n
		return err
	})
	g.Go(func() error {
		n, err := stats.CountMailOut(ctx, registry.MailOutFilter{})
		summary.Totals.MailOut = n
		return err
	})
	g.Go(func() error {
		n, err := stats.CountMailIn(ctx, registry.MailInFilter{NeedsMayor: &yes})
		summary.Totals.NeedsMayor = n
		return err
	})
	g.Go(func() error {
		n, err := stats.CountMailIn(ctx, registry.MailInFilter{NeedsDgs: &yes})
		summary.Totals.NeedsDgs = n
		return err
	})
	if caller.Kind == registry.PrincipalUser && caller.ID != "" {
		g.Go(func() error {
			n, err := stats.CountMailIn(ctx, registry.MailInFilter{UserID: caller.ID, UnreadOnly: true})
			summary.Totals.Unread = n
			return err
		})
	}
	g.Go(func() error {
		mails, _, err := s.repo.MailIn().ListMailIn(ctx, registry.MailInFilter{}, registry.PageRequest{Page: 1, Limit: recentLimit})
		summary.RecentMailIn = mails
		return err
	})
	g.Go(func() error {
		mails, _, err := s.repo.MailOut().ListMailOut(ctx, registry.MailOutFilter{}, registry.PageRequest{Page: 1, Limit: recentLimit})
		summary.RecentMailOut = mails
		return err
	})
	g.Go(func() error {
		volumes, err := stats.MailInVolumeByService(ctx, volumeLimit)
		summary.ByService = volumes
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if summary.RecentMailIn == nil {
		summary.RecentMailIn = []*registry.MailIn{}
	}
	if summary.RecentMailOut == nil {
		summary.RecentMailOut = []*registry.MailOut{}
	}
	if summary.ByService == nil {
		summary.ByService = []registry.ServiceVolume{}
	}
	return summary, nil
}

// History returns the monthly traffic of the last months, current month
// included, oldest first. Months without traffic are reported with zeros.
func (s *Service) History(ctx context.Context, months int) ([]registry.MonthlyVolume, error) {
	if months == 0 {
		months = defaultHistory
	}
	if months < 1 || months > maxHistory {
		return nil, registry.NewValidationError("MONTHS_INVALID",
			"Le nombre de mois doit être compris entre 1 et "+strconv.Itoa(maxHistory))
	}

	now := s.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	volumes, err := s.repo.Stats().MonthlyVolumes(ctx, first)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]registry.MonthlyVolume, len(volumes))
	for _, v := range volumes {
		byMonth[v.Month] = v
	}

	out := make([]registry.MonthlyVolume, 0, months)
	for i := 0; i < months; i++ {
		month := first.AddDate(0, i, 0).Format("2006-01")
		v, ok := byMonth[month]
		if !ok {
			v = registry.MonthlyVolume{Month: month}
		}
		out = append(out, v)
	}
	return out, nil
}

// Invalidate drops every cached summary. It has the registry.MailListener
// signature so that mail managers can call it after each write.
func (s *Service) Invalidate(ctx context.Context, event registry.MailEvent) {
	s.bump(ctx,
		log.String("direction", string(event.Direction)),
		log.String(log.FieldOperation, event.Op),
	)
}

// ServiceChanged drops every cached summary after a service was renamed or
// deactivated, since summaries embed service names
func (s *Service) ServiceChanged(ctx context.Context, serviceID int64) {
	s.bump(ctx, log.Int64(log.FieldEntityID, serviceID))
}

func (s *Service) bump(ctx context.Context, fields ...log.Field) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.IncrBy(ctx, generationKey, 1); err != nil {
		s.logger.WithContext(ctx).Warn("dashboard cache invalidation failed", append(fields, log.Error(err))...)
	}
}

// summaryKey embeds the cache generation so that a single increment makes
// every older entry unreachable
func (s *Service) summaryKey(ctx context.Context, caller registry.Caller) string {
	generation := "0"
	if raw, err := s.cache.Get(ctx, generationKey); err == nil && raw != nil {
		generation = string(raw)
	}
	return "dashboard:" + generation + ":summary:" + string(caller.Kind) + ":" + caller.ID
}

func (s *Service) cached(ctx context.Context, key string) (*Summary, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithContext(ctx).Warn("dashboard cache read failed", log.String(log.FieldCacheKey, key), log.Error(err))
		return nil, false
	}
	if raw == nil {
		s.logger.WithContext(ctx).Debug("dashboard cache miss", log.String(log.FieldCacheKey, key), log.Bool(log.FieldCacheHit, false))
		return nil, false
	}

	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false
	}
	s.logger.WithContext(ctx).Debug("dashboard cache hit", log.String(log.FieldCacheKey, key), log.Bool(log.FieldCacheHit, true))
	return &summary, true
}

func (s *Service) store(ctx context.Context, key string, summary *Summary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.WithContext(ctx).Warn("dashboard cache write failed", log.String(log.FieldCacheKey, key), log.Error(err))
	}
}
