package postgres

import (
	"context"

	"github.com/lib/pq"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

const mailOutSelect = `
	SELECT m.id, m.date, m.subject, m.reference, m.service_id, m.user_id, m.created_at, m.updated_at,
	       s.name, s.code, u.first_name, u.last_name
	FROM mail_out m
	JOIN services s ON s.id = m.service_id
	JOIN users u ON u.id = m.user_id`

var errMailOutNotFound = registry.NewNotFoundError("MAIL_OUT_NOT_FOUND", "courrier sortant introuvable")

// MailOutRepository implements the registry.MailOutRepository interface using PostgreSQL
type MailOutRepository struct {
	ex executor
}

// CreateMailOut inserts the mail row only; recipients are added separately
func (mr *MailOutRepository) CreateMailOut(ctx context.Context, mail *registry.MailOut) error {
	query := `
		INSERT INTO mail_out (date, subject, reference, service_id, user_id)
		VALUES ($1::date, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	mail.Date = registry.Day(mail.Date)
	err := mr.ex.execQueryRow(ctx, query, dateArg(mail.Date), mail.Subject, mail.Reference, mail.ServiceID, mail.UserID).
		Scan(&mail.ID, &mail.CreatedAt, &mail.UpdatedAt)
	return translateError(err)
}

// GetMailOut returns the mail with its service, sender and recipients
func (mr *MailOutRepository) GetMailOut(ctx context.Context, id int64) (*registry.MailOut, error) {
	mail, err := scanMailOut(mr.ex.execQueryRow(ctx, mailOutSelect+" WHERE m.id = $1", id))
	if err != nil {
		return nil, err
	}
	if err := mr.hydrate(ctx, []*registry.MailOut{mail}); err != nil {
		return nil, err
	}
	return mail, nil
}

// ExistsMailOut reports whether the mail row exists
func (mr *MailOutRepository) ExistsMailOut(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := mr.ex.execQueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM mail_out WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, translateError(err)
	}
	return exists, nil
}

// UpdateMailOut overwrites the scalar columns of the mail
func (mr *MailOutRepository) UpdateMailOut(ctx context.Context, mail *registry.MailOut) error {
	query := `
		UPDATE mail_out
		SET date = $2::date, subject = $3, reference = $4, service_id = $5, user_id = $6, updated_at = NOW()
		WHERE id = $1`

	result, err := mr.ex.execCommand(ctx, query,
		mail.ID, dateArg(mail.Date), mail.Subject, mail.Reference, mail.ServiceID, mail.UserID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, errMailOutNotFound)
}

// DeleteMailOut removes the mail row. Recipient rows must be removed first.
func (mr *MailOutRepository) DeleteMailOut(ctx context.Context, id int64) error {
	result, err := mr.ex.execCommand(ctx, "DELETE FROM mail_out WHERE id = $1", id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, errMailOutNotFound)
}

// ListMailOut returns a page of mails ordered by date then id, newest first
func (mr *MailOutRepository) ListMailOut(ctx context.Context, filter registry.MailOutFilter, req registry.PageRequest) ([]*registry.MailOut, int64, error) {
	c := mailOutConditions(filter)

	total, err := count(ctx, mr.ex, "SELECT COUNT(*) FROM mail_out m"+c.where(), c.args...)
	if err != nil {
		return nil, 0, err
	}

	query := mailOutSelect + c.where() + " ORDER BY m.date DESC, m.id DESC" + c.page(req)
	rows, err := mr.ex.execQuery(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var mails []*registry.MailOut
	for rows.Next() {
		mail, err := scanMailOut(rows)
		if err != nil {
			return nil, 0, err
		}
		mails = append(mails, mail)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateError(err)
	}

	if err := mr.hydrate(ctx, mails); err != nil {
		return nil, 0, err
	}
	return mails, total, nil
}

// AddRecipients inserts one row per outgoing contact
func (mr *MailOutRepository) AddRecipients(ctx context.Context, mailID int64, contactIDs []int64) error {
	if len(contactIDs) == 0 {
		return nil
	}
	_, err := mr.ex.execCommand(ctx,
		"INSERT INTO mail_out_recipients (mail_out_id, contact_id) SELECT $1, unnest($2::bigint[])",
		mailID, pq.Array(contactIDs))
	return err
}

// DeleteRecipients removes every recipient row of the mail
func (mr *MailOutRepository) DeleteRecipients(ctx context.Context, mailID int64) error {
	_, err := mr.ex.execCommand(ctx, "DELETE FROM mail_out_recipients WHERE mail_out_id = $1", mailID)
	return err
}

func mailOutConditions(f registry.MailOutFilter) *conditions {
	c := &conditions{}
	if f.ServiceID != 0 {
		c.add("m.service_id = " + c.arg(f.ServiceID))
	}
	if f.UserID != "" {
		c.add("m.user_id = " + c.arg(f.UserID))
	}
	if f.DateFrom != nil {
		c.add("m.date >= " + c.arg(dateArg(*f.DateFrom)) + "::date")
	}
	if f.DateTo != nil {
		c.add("m.date <= " + c.arg(dateArg(*f.DateTo)) + "::date")
	}
	c.search(f.Query, "m.subject", "m.reference")
	return c
}

func scanMailOut(row scanner) (*registry.MailOut, error) {
	var (
		mail    registry.MailOut
		service registry.ServiceSummary
		user    registry.UserSummary
	)
	err := row.Scan(&mail.ID, &mail.Date, &mail.Subject, &mail.Reference, &mail.ServiceID, &mail.UserID,
		&mail.CreatedAt, &mail.UpdatedAt, &service.Name, &service.Code, &user.FirstName, &user.LastName)
	if err != nil {
		return nil, scanError(err, errMailOutNotFound)
	}

	mail.Date = registry.Day(mail.Date)
	service.ID = mail.ServiceID
	user.ID = mail.UserID
	mail.Service = &service
	mail.User = &user
	return &mail, nil
}

func (mr *MailOutRepository) hydrate(ctx context.Context, mails []*registry.MailOut) error {
	if len(mails) == 0 {
		return nil
	}

	ids := make([]int64, len(mails))
	byID := make(map[int64]*registry.MailOut, len(mails))
	for i, m := range mails {
		ids[i] = m.ID
		byID[m.ID] = m
		m.Recipients = []registry.MailRecipient{}
		m.Count = &registry.MailOutCount{}
	}

	rows, err := mr.ex.execQuery(ctx, `
		SELECT r.mail_out_id, r.contact_id, c.name
		FROM mail_out_recipients r
		JOIN contacts_out c ON c.id = r.contact_id
		WHERE r.mail_out_id = ANY($1)
		ORDER BY r.mail_out_id, r.contact_id`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			mailID int64
			rcpt   registry.MailRecipient
		)
		if err := rows.Scan(&mailID, &rcpt.ContactID, &rcpt.Contact.Name); err != nil {
			return translateError(err)
		}
		rcpt.Contact.ID = rcpt.ContactID
		m := byID[mailID]
		m.Recipients = append(m.Recipients, rcpt)
		m.Count.Recipients++
	}
	return translateError(rows.Err())
}
