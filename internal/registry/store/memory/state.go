package memory

import (
	"sort"
	"strings"
	"time"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// state holds every table of the in-memory store. A transaction snapshots
// it with clone and restores the snapshot on rollback.
type state struct {
	seq sequences

	services map[int64]*registry.Service
	users    map[string]*registry.User
	admins   map[int64]*registry.Admin
	councils map[int64]*registry.Council
	contacts map[registry.Direction]map[int64]*registry.Contact
	mailIn   map[int64]*mailInRow
	mailOut  map[int64]*mailOutRow

	destinations  []destinationRow
	copies        []copyRow
	inRecipients  []recipientRow
	receipts      []receiptRow
	outRecipients []recipientRow
}

type sequences struct {
	service, admin, council, contactIn, contactOut, mailIn, mailOut int64
}

type mailInRow struct {
	ID         int64
	Date       time.Time
	Subject    string
	NeedsMayor bool
	NeedsDgs   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type mailOutRow struct {
	ID        int64
	Date      time.Time
	Subject   string
	Reference string
	ServiceID int64
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type destinationRow struct {
	MailID    int64
	ServiceID int64
	Type      registry.DestinationType
}

type copyRow struct {
	MailID    int64
	CouncilID int64
}

type recipientRow struct {
	MailID    int64
	ContactID int64
}

type receiptRow struct {
	MailID int64
	UserID string
	IsRead bool
	ReadAt *time.Time
}

func newState() *state {
	return &state{
		services: make(map[int64]*registry.Service),
		users:    make(map[string]*registry.User),
		admins:   make(map[int64]*registry.Admin),
		councils: make(map[int64]*registry.Council),
		contacts: map[registry.Direction]map[int64]*registry.Contact{
			registry.DirectionIn:  make(map[int64]*registry.Contact),
			registry.DirectionOut: make(map[int64]*registry.Contact),
		},
		mailIn:  make(map[int64]*mailInRow),
		mailOut: make(map[int64]*mailOutRow),
	}
}

// clone returns a deep copy of s
func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq

	for id, v := range s.services {
		cp := *v
		c.services[id] = &cp
	}
	for id, v := range s.users {
		c.users[id] = copyUser(v)
	}
	for id, v := range s.admins {
		cp := *v
		c.admins[id] = &cp
	}
	for id, v := range s.councils {
		cp := *v
		c.councils[id] = &cp
	}
	for dir, table := range s.contacts {
		for id, v := range table {
			cp := *v
			c.contacts[dir][id] = &cp
		}
	}
	for id, v := range s.mailIn {
		cp := *v
		c.mailIn[id] = &cp
	}
	for id, v := range s.mailOut {
		cp := *v
		c.mailOut[id] = &cp
	}

	c.destinations = append([]destinationRow(nil), s.destinations...)
	c.copies = append([]copyRow(nil), s.copies...)
	c.inRecipients = append([]recipientRow(nil), s.inRecipients...)
	c.outRecipients = append([]recipientRow(nil), s.outRecipients...)
	c.receipts = make([]receiptRow, len(s.receipts))
	for i, r := range s.receipts {
		c.receipts[i] = r
		if r.ReadAt != nil {
			at := *r.ReadAt
			c.receipts[i].ReadAt = &at
		}
	}

	return c
}

func copyUser(u *registry.User) *registry.User {
	cp := *u
	if u.Email != nil {
		email := *u.Email
		cp.Email = &email
	}
	cp.Service = nil
	return &cp
}

func (s *state) serviceSummary(id int64) registry.ServiceSummary {
	if svc, ok := s.services[id]; ok {
		return registry.ServiceSummary{ID: svc.ID, Name: svc.Name, Code: svc.Code}
	}
	return registry.ServiceSummary{ID: id}
}

func (s *state) userSummary(id string) registry.UserSummary {
	if u, ok := s.users[id]; ok {
		return registry.UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
	}
	return registry.UserSummary{ID: id}
}

func (s *state) contactSummary(dir registry.Direction, id int64) registry.ContactSummary {
	if c, ok := s.contacts[dir][id]; ok {
		return registry.ContactSummary{ID: c.ID, Name: c.Name}
	}
	return registry.ContactSummary{ID: id}
}

func (s *state) councilSummary(id int64) registry.CouncilSummary {
	if c, ok := s.councils[id]; ok {
		return registry.CouncilSummary{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Position: c.Position}
	}
	return registry.CouncilSummary{ID: id}
}

// containsFold reports whether substr is within s, case-insensitively.
// An empty substr matches everything.
func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// page cuts the window of req out of already sorted items
func page[T any](items []T, req registry.PageRequest) []T {
	start, end := registry.Window(len(items), req)
	return append([]T(nil), items[start:end]...)
}

func sortedUnique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func now() time.Time {
	return time.Now().UTC()
}
