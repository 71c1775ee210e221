package memory

import (
	"context"
	"sort"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// MailOutRepository implements registry.MailOutRepository in memory
type MailOutRepository struct {
	a access
}

// CreateMailOut inserts the mail row only; recipients are added separately
func (mr *MailOutRepository) CreateMailOut(ctx context.Context, mail *registry.MailOut) error {
	return mr.a.write(func(s *state) error {
		if err := s.checkMailOutRefs(mail); err != nil {
			return err
		}

		s.seq.mailOut++
		mail.ID = s.seq.mailOut
		mail.Date = registry.Day(mail.Date)
		mail.CreatedAt = now()
		mail.UpdatedAt = mail.CreatedAt

		s.mailOut[mail.ID] = &mailOutRow{
			ID:        mail.ID,
			Date:      mail.Date,
			Subject:   mail.Subject,
			Reference: mail.Reference,
			ServiceID: mail.ServiceID,
			UserID:    mail.UserID,
			CreatedAt: mail.CreatedAt,
			UpdatedAt: mail.UpdatedAt,
		}
		return nil
	})
}

// GetMailOut returns the mail with its service, sender and recipients
func (mr *MailOutRepository) GetMailOut(ctx context.Context, id int64) (*registry.MailOut, error) {
	var out *registry.MailOut
	err := mr.a.read(func(s *state) error {
		row, ok := s.mailOut[id]
		if !ok {
			return registry.NewNotFoundError("MAIL_OUT_NOT_FOUND", "courrier sortant introuvable")
		}
		out = mailOutFromRow(s, row)
		return nil
	})
	return out, err
}

// ExistsMailOut reports whether the mail row exists
func (mr *MailOutRepository) ExistsMailOut(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := mr.a.read(func(s *state) error {
		_, exists = s.mailOut[id]
		return nil
	})
	return exists, err
}

// UpdateMailOut overwrites the scalar columns of the mail
func (mr *MailOutRepository) UpdateMailOut(ctx context.Context, mail *registry.MailOut) error {
	return mr.a.write(func(s *state) error {
		row, ok := s.mailOut[mail.ID]
		if !ok {
			return registry.NewNotFoundError("MAIL_OUT_NOT_FOUND", "courrier sortant introuvable")
		}
		if err := s.checkMailOutRefs(mail); err != nil {
			return err
		}

		row.Date = registry.Day(mail.Date)
		row.Subject = mail.Subject
		row.Reference = mail.Reference
		row.ServiceID = mail.ServiceID
		row.UserID = mail.UserID
		row.UpdatedAt = now()
		return nil
	})
}

// DeleteMailOut removes the mail row. Recipient rows must be removed first.
func (mr *MailOutRepository) DeleteMailOut(ctx context.Context, id int64) error {
	return mr.a.write(func(s *state) error {
		if _, ok := s.mailOut[id]; !ok {
			return registry.NewNotFoundError("MAIL_OUT_NOT_FOUND", "courrier sortant introuvable")
		}
		for _, r := range s.outRecipients {
			if r.MailID == id {
				return registry.NewValidationError("REFERENCE_INVALID", "le courrier est encore référencé par des destinataires")
			}
		}
		delete(s.mailOut, id)
		return nil
	})
}

// ListMailOut returns a page of mails ordered by date then id, newest first
func (mr *MailOutRepository) ListMailOut(ctx context.Context, filter registry.MailOutFilter, req registry.PageRequest) ([]*registry.MailOut, int64, error) {
	var (
		out   []*registry.MailOut
		total int64
	)
	err := mr.a.read(func(s *state) error {
		rows := s.matchMailOut(filter)
		total = int64(len(rows))
		for _, row := range page(rows, req) {
			out = append(out, mailOutFromRow(s, row))
		}
		return nil
	})
	return out, total, err
}

// AddRecipients inserts one row per outgoing contact
func (mr *MailOutRepository) AddRecipients(ctx context.Context, mailID int64, contactIDs []int64) error {
	return mr.a.write(func(s *state) error {
		if _, ok := s.mailOut[mailID]; !ok {
			return registry.NewValidationError("REFERENCE_INVALID", "courrier sortant inexistant")
		}
		rows, err := addRecipients(s.outRecipients, s.contacts[registry.DirectionOut], mailID, contactIDs)
		if err != nil {
			return err
		}
		s.outRecipients = rows
		return nil
	})
}

// DeleteRecipients removes every recipient row of the mail
func (mr *MailOutRepository) DeleteRecipients(ctx context.Context, mailID int64) error {
	return mr.a.write(func(s *state) error {
		s.outRecipients = dropRecipients(s.outRecipients, mailID)
		return nil
	})
}

func (s *state) checkMailOutRefs(mail *registry.MailOut) error {
	if _, ok := s.services[mail.ServiceID]; !ok {
		return registry.NewValidationError("REFERENCE_INVALID", "service inexistant")
	}
	if _, ok := s.users[mail.UserID]; !ok {
		return registry.NewValidationError("REFERENCE_INVALID", "utilisateur inexistant")
	}
	return nil
}

func (s *state) matchMailOut(f registry.MailOutFilter) []*mailOutRow {
	var rows []*mailOutRow
	for _, row := range s.mailOut {
		if f.ServiceID != 0 && row.ServiceID != f.ServiceID {
			continue
		}
		if f.UserID != "" && row.UserID != f.UserID {
			continue
		}
		if f.DateFrom != nil && row.Date.Before(registry.Day(*f.DateFrom)) {
			continue
		}
		if f.DateTo != nil && row.Date.After(registry.Day(*f.DateTo)) {
			continue
		}
		if !containsFold(row.Subject, f.Query) && !containsFold(row.Reference, f.Query) {
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

func mailOutFromRow(s *state, row *mailOutRow) *registry.MailOut {
	service := s.serviceSummary(row.ServiceID)
	user := s.userSummary(row.UserID)
	recipients := s.recipients(s.outRecipients, registry.DirectionOut, row.ID)

	return &registry.MailOut{
		ID:         row.ID,
		Date:       row.Date,
		Subject:    row.Subject,
		Reference:  row.Reference,
		ServiceID:  row.ServiceID,
		UserID:     row.UserID,
		Service:    &service,
		User:       &user,
		Recipients: recipients,
		Count:      &registry.MailOutCount{Recipients: len(recipients)},
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}
