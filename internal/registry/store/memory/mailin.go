package memory

import (
	"context"
	"sort"
	"time"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// MailInRepository implements registry.MailInRepository in memory
type MailInRepository struct {
	a access
}

// CreateMailIn inserts the mail row only; relations are added separately
func (mr *MailInRepository) CreateMailIn(ctx context.Context, mail *registry.MailIn) error {
	return mr.a.write(func(s *state) error {
		s.seq.mailIn++
		mail.ID = s.seq.mailIn
		mail.Date = registry.Day(mail.Date)
		mail.CreatedAt = now()
		mail.UpdatedAt = mail.CreatedAt

		s.mailIn[mail.ID] = &mailInRow{
			ID:         mail.ID,
			Date:       mail.Date,
			Subject:    mail.Subject,
			NeedsMayor: mail.NeedsMayor,
			NeedsDgs:   mail.NeedsDgs,
			CreatedAt:  mail.CreatedAt,
			UpdatedAt:  mail.UpdatedAt,
		}
		return nil
	})
}

// GetMailIn returns the mail with every relation hydrated
func (mr *MailInRepository) GetMailIn(ctx context.Context, id int64) (*registry.MailIn, error) {
	var out *registry.MailIn
	err := mr.a.read(func(s *state) error {
		row, ok := s.mailIn[id]
		if !ok {
			return registry.NewNotFoundError("MAIL_IN_NOT_FOUND", "courrier entrant introuvable")
		}

		out = mailInFromRow(s, row)
		out.Copies = s.mailCopies(id)
		out.UserReceivedMails = s.mailReceipts(id)
		return nil
	})
	return out, err
}

// ExistsMailIn reports whether the mail row exists
func (mr *MailInRepository) ExistsMailIn(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := mr.a.read(func(s *state) error {
		_, exists = s.mailIn[id]
		return nil
	})
	return exists, err
}

// UpdateMailIn overwrites the scalar columns of the mail
func (mr *MailInRepository) UpdateMailIn(ctx context.Context, mail *registry.MailIn) error {
	return mr.a.write(func(s *state) error {
		row, ok := s.mailIn[mail.ID]
		if !ok {
			return registry.NewNotFoundError("MAIL_IN_NOT_FOUND", "courrier entrant introuvable")
		}

		row.Date = registry.Day(mail.Date)
		row.Subject = mail.Subject
		row.NeedsMayor = mail.NeedsMayor
		row.NeedsDgs = mail.NeedsDgs
		row.UpdatedAt = now()
		return nil
	})
}

// DeleteMailIn removes the mail row. Join rows must be removed first.
func (mr *MailInRepository) DeleteMailIn(ctx context.Context, id int64) error {
	return mr.a.write(func(s *state) error {
		if _, ok := s.mailIn[id]; !ok {
			return registry.NewNotFoundError("MAIL_IN_NOT_FOUND", "courrier entrant introuvable")
		}
		if s.mailInReferenced(id) {
			return registry.NewValidationError("REFERENCE_INVALID", "le courrier est encore référencé par des relations")
		}
		delete(s.mailIn, id)
		return nil
	})
}

// ListMailIn returns a page of mails ordered by date then id, newest first
func (mr *MailInRepository) ListMailIn(ctx context.Context, filter registry.MailInFilter, req registry.PageRequest) ([]*registry.MailIn, int64, error) {
	var (
		out   []*registry.MailIn
		total int64
	)
	err := mr.a.read(func(s *state) error {
		rows := s.matchMailIn(filter)
		total = int64(len(rows))
		for _, row := range page(rows, req) {
			out = append(out, mailInFromRow(s, row))
		}
		return nil
	})
	return out, total, err
}

// AddServiceDestinations inserts one row per (service, type) pair
func (mr *MailInRepository) AddServiceDestinations(ctx context.Context, mailID int64, dests []registry.ServiceDestination) error {
	return mr.a.write(func(s *state) error {
		if err := s.requireMailIn(mailID); err != nil {
			return err
		}
		rows := s.destinations
		for _, d := range dests {
			if _, ok := s.services[d.ServiceID]; !ok {
				return registry.NewValidationError("REFERENCE_INVALID", "service inexistant")
			}
			for _, existing := range rows {
				if existing.MailID == mailID && existing.ServiceID == d.ServiceID && existing.Type == d.Type {
					return registry.NewConflictError("DUPLICATE_RELATION", "service déjà associé au courrier")
				}
			}
			rows = append(rows, destinationRow{MailID: mailID, ServiceID: d.ServiceID, Type: d.Type})
		}
		s.destinations = rows
		return nil
	})
}

// DeleteServiceDestinations removes every service row of the mail
func (mr *MailInRepository) DeleteServiceDestinations(ctx context.Context, mailID int64) error {
	return mr.a.write(func(s *state) error {
		kept := s.destinations[:0]
		for _, d := range s.destinations {
			if d.MailID != mailID {
				kept = append(kept, d)
			}
		}
		s.destinations = kept
		return nil
	})
}

// AddCopies inserts one copy row per council member
func (mr *MailInRepository) AddCopies(ctx context.Context, mailID int64, councilIDs []int64) error {
	return mr.a.write(func(s *state) error {
		if err := s.requireMailIn(mailID); err != nil {
			return err
		}
		rows := s.copies
		for _, id := range councilIDs {
			if _, ok := s.councils[id]; !ok {
				return registry.NewValidationError("REFERENCE_INVALID", "élu inexistant")
			}
			for _, existing := range rows {
				if existing.MailID == mailID && existing.CouncilID == id {
					return registry.NewConflictError("DUPLICATE_RELATION", "élu déjà en copie du courrier")
				}
			}
			rows = append(rows, copyRow{MailID: mailID, CouncilID: id})
		}
		s.copies = rows
		return nil
	})
}

// DeleteCopies removes every copy row of the mail
func (mr *MailInRepository) DeleteCopies(ctx context.Context, mailID int64) error {
	return mr.a.write(func(s *state) error {
		kept := s.copies[:0]
		for _, c := range s.copies {
			if c.MailID != mailID {
				kept = append(kept, c)
			}
		}
		s.copies = kept
		return nil
	})
}

// AddRecipients inserts one sender row per incoming contact
func (mr *MailInRepository) AddRecipients(ctx context.Context, mailID int64, contactIDs []int64) error {
	return mr.a.write(func(s *state) error {
		if err := s.requireMailIn(mailID); err != nil {
			return err
		}
		rows, err := addRecipients(s.inRecipients, s.contacts[registry.DirectionIn], mailID, contactIDs)
		if err != nil {
			return err
		}
		s.inRecipients = rows
		return nil
	})
}

// DeleteRecipients removes every sender row of the mail
func (mr *MailInRepository) DeleteRecipients(ctx context.Context, mailID int64) error {
	return mr.a.write(func(s *state) error {
		s.inRecipients = dropRecipients(s.inRecipients, mailID)
		return nil
	})
}

// AddUserReceipts inserts unread rows for users that have none yet
func (mr *MailInRepository) AddUserReceipts(ctx context.Context, mailID int64, userIDs []string) error {
	return mr.a.write(func(s *state) error {
		if err := s.requireMailIn(mailID); err != nil {
			return err
		}

		have := make(map[string]struct{})
		for _, r := range s.receipts {
			if r.MailID == mailID {
				have[r.UserID] = struct{}{}
			}
		}
		rows := s.receipts
		for _, id := range userIDs {
			if _, ok := s.users[id]; !ok {
				return registry.NewValidationError("REFERENCE_INVALID", "utilisateur inexistant")
			}
			if _, ok := have[id]; ok {
				continue
			}
			have[id] = struct{}{}
			rows = append(rows, receiptRow{MailID: mailID, UserID: id})
		}
		s.receipts = rows
		return nil
	})
}

// DeleteUserReceipts removes every receipt row of the mail
func (mr *MailInRepository) DeleteUserReceipts(ctx context.Context, mailID int64) error {
	return mr.a.write(func(s *state) error {
		kept := s.receipts[:0]
		for _, r := range s.receipts {
			if r.MailID != mailID {
				kept = append(kept, r)
			}
		}
		s.receipts = kept
		return nil
	})
}

// MarkAsRead flags the receipt rows of (mailID, userID) as read
func (mr *MailInRepository) MarkAsRead(ctx context.Context, mailID int64, userID string, at time.Time) (int64, error) {
	var n int64
	err := mr.a.write(func(s *state) error {
		for i := range s.receipts {
			r := &s.receipts[i]
			if r.MailID != mailID || r.UserID != userID {
				continue
			}
			readAt := at.UTC()
			r.IsRead = true
			r.ReadAt = &readAt
			n++
		}
		return nil
	})
	return n, err
}

func (s *state) requireMailIn(id int64) error {
	if _, ok := s.mailIn[id]; !ok {
		return registry.NewValidationError("REFERENCE_INVALID", "courrier entrant inexistant")
	}
	return nil
}

func (s *state) mailInReferenced(id int64) bool {
	for _, d := range s.destinations {
		if d.MailID == id {
			return true
		}
	}
	for _, c := range s.copies {
		if c.MailID == id {
			return true
		}
	}
	for _, r := range s.inRecipients {
		if r.MailID == id {
			return true
		}
	}
	for _, r := range s.receipts {
		if r.MailID == id {
			return true
		}
	}
	return false
}

// matchMailIn filters and sorts the mail rows
func (s *state) matchMailIn(f registry.MailInFilter) []*mailInRow {
	var services map[int64]struct{}
	if len(f.ServiceIDs) > 0 {
		services = make(map[int64]struct{}, len(f.ServiceIDs))
		for _, id := range f.ServiceIDs {
			services[id] = struct{}{}
		}
	}

	var rows []*mailInRow
	for _, row := range s.mailIn {
		if f.NeedsMayor != nil && row.NeedsMayor != *f.NeedsMayor {
			continue
		}
		if f.NeedsDgs != nil && row.NeedsDgs != *f.NeedsDgs {
			continue
		}
		if f.DateFrom != nil && row.Date.Before(registry.Day(*f.DateFrom)) {
			continue
		}
		if f.DateTo != nil && row.Date.After(registry.Day(*f.DateTo)) {
			continue
		}
		if !containsFold(row.Subject, f.Query) {
			continue
		}
		if services != nil && !s.routedToAny(row.ID, services) {
			continue
		}
		if f.UserID != "" && !s.receivedBy(row.ID, f.UserID, f.UnreadOnly) {
			continue
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.After(rows[j].Date)
		}
		return rows[i].ID > rows[j].ID
	})
	return rows
}

func (s *state) routedToAny(mailID int64, services map[int64]struct{}) bool {
	for _, d := range s.destinations {
		if d.MailID != mailID {
			continue
		}
		if _, ok := services[d.ServiceID]; ok {
			return true
		}
	}
	return false
}

func (s *state) receivedBy(mailID int64, userID string, unreadOnly bool) bool {
	for _, r := range s.receipts {
		if r.MailID == mailID && r.UserID == userID {
			return !unreadOnly || !r.IsRead
		}
	}
	return false
}

// mailInFromRow builds the list shape: services, senders and counts
func mailInFromRow(s *state, row *mailInRow) *registry.MailIn {
	mail := &registry.MailIn{
		ID:         row.ID,
		Date:       row.Date,
		Subject:    row.Subject,
		NeedsMayor: row.NeedsMayor,
		NeedsDgs:   row.NeedsDgs,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
		Services:   []registry.ServiceReceivedMail{},
		Recipients: s.recipients(s.inRecipients, registry.DirectionIn, row.ID),
	}

	for _, d := range s.destinations {
		if d.MailID == row.ID {
			mail.Services = append(mail.Services, registry.ServiceReceivedMail{
				ServiceID: d.ServiceID,
				Type:      d.Type,
				Service:   s.serviceSummary(d.ServiceID),
			})
		}
	}
	sort.Slice(mail.Services, func(i, j int) bool {
		if mail.Services[i].ServiceID != mail.Services[j].ServiceID {
			return mail.Services[i].ServiceID < mail.Services[j].ServiceID
		}
		return mail.Services[i].Type < mail.Services[j].Type
	})

	copies := 0
	for _, c := range s.copies {
		if c.MailID == row.ID {
			copies++
		}
	}
	mail.Count = &registry.MailInCount{Copies: copies, Recipients: len(mail.Recipients)}
	return mail
}

func (s *state) mailCopies(mailID int64) []registry.MailCopy {
	copies := []registry.MailCopy{}
	for _, c := range s.copies {
		if c.MailID == mailID {
			copies = append(copies, registry.MailCopy{CouncilID: c.CouncilID, Council: s.councilSummary(c.CouncilID)})
		}
	}
	sort.Slice(copies, func(i, j int) bool { return copies[i].CouncilID < copies[j].CouncilID })
	return copies
}

func (s *state) mailReceipts(mailID int64) []registry.UserReceivedMail {
	receipts := []registry.UserReceivedMail{}
	for _, r := range s.receipts {
		if r.MailID != mailID {
			continue
		}
		receipt := registry.UserReceivedMail{UserID: r.UserID, IsRead: r.IsRead, User: s.userSummary(r.UserID)}
		if r.ReadAt != nil {
			at := *r.ReadAt
			receipt.ReadAt = &at
		}
		receipts = append(receipts, receipt)
	}
	sort.Slice(receipts, func(i, j int) bool { return receipts[i].UserID < receipts[j].UserID })
	return receipts
}

func (s *state) recipients(rows []recipientRow, dir registry.Direction, mailID int64) []registry.MailRecipient {
	out := []registry.MailRecipient{}
	for _, r := range rows {
		if r.MailID == mailID {
			out = append(out, registry.MailRecipient{ContactID: r.ContactID, Contact: s.contactSummary(dir, r.ContactID)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContactID < out[j].ContactID })
	return out
}

func addRecipients(rows []recipientRow, contacts map[int64]*registry.Contact, mailID int64, contactIDs []int64) ([]recipientRow, error) {
	for _, id := range contactIDs {
		if _, ok := contacts[id]; !ok {
			return nil, registry.NewValidationError("REFERENCE_INVALID", "contact inexistant")
		}
		for _, existing := range rows {
			if existing.MailID == mailID && existing.ContactID == id {
				return nil, registry.NewConflictError("DUPLICATE_RELATION", "contact déjà associé au courrier")
			}
		}
		rows = append(rows, recipientRow{MailID: mailID, ContactID: id})
	}
	return rows, nil
}

func dropRecipients(rows []recipientRow, mailID int64) []recipientRow {
	kept := rows[:0]
	for _, r := range rows {
		if r.MailID != mailID {
			kept = append(kept, r)
		}
	}
	return kept
}
