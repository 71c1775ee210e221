package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

const mailInColumns = "m.id, m.date, m.subject, m.needs_mayor, m.needs_dgs, m.created_at, m.updated_at"

var errMailInNotFound = registry.NewNotFoundError("MAIL_IN_NOT_FOUND", "courrier entrant introuvable")

// MailInRepository implements the registry.MailInRepository interface using PostgreSQL
type MailInRepository struct {
	ex executor
}

// CreateMailIn inserts the mail row only; relations are added separately
func (mr *MailInRepository) CreateMailIn(ctx context.Context, mail *registry.MailIn) error {
	query := `
		INSERT INTO mail_in (date, subject, needs_mayor, needs_dgs)
		VALUES ($1::date, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	mail.Date = registry.Day(mail.Date)
	err := mr.ex.execQueryRow(ctx, query, dateArg(mail.Date), mail.Subject, mail.NeedsMayor, mail.NeedsDgs).
		Scan(&mail.ID, &mail.CreatedAt, &mail.UpdatedAt)
	return translateError(err)
}

// GetMailIn returns the mail with every relation hydrated
func (mr *MailInRepository) GetMailIn(ctx context.Context, id int64) (*registry.MailIn, error) {
	mail, err := scanMailIn(mr.ex.execQueryRow(ctx, "SELECT "+mailInColumns+" FROM mail_in m WHERE m.id = $1", id))
	if err != nil {
		return nil, err
	}

	if err := mr.hydrate(ctx, []*registry.MailIn{mail}); err != nil {
		return nil, err
	}
	if mail.Copies, err = mr.copies(ctx, id); err != nil {
		return nil, err
	}
	if mail.UserReceivedMails, err = mr.receipts(ctx, id); err != nil {
		return nil, err
	}
	return mail, nil
}

// ExistsMailIn reports whether the mail row exists
func (mr *MailInRepository) ExistsMailIn(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := mr.ex.execQueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM mail_in WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, translateError(err)
	}
	return exists, nil
}

// UpdateMailIn overwrites the scalar columns of the mail
func (mr *MailInRepository) UpdateMailIn(ctx context.Context, mail *registry.MailIn) error {
	query := `
		UPDATE mail_in
		SET date = $2::date, subject = $3, needs_mayor = $4, needs_dgs = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := mr.ex.execCommand(ctx, query, mail.ID, dateArg(mail.Date), mail.Subject, mail.NeedsMayor, mail.NeedsDgs)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, errMailInNotFound)
}

// DeleteMailIn removes the mail row. Join rows must be removed first.
func (mr *MailInRepository) DeleteMailIn(ctx context.Context, id int64) error {
	result, err := mr.ex.execCommand(ctx, "DELETE FROM mail_in WHERE id = $1", id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, errMailInNotFound)
}

// ListMailIn returns a page of mails ordered by date then id, newest first
func (mr *MailInRepository) ListMailIn(ctx context.Context, filter registry.MailInFilter, req registry.PageRequest) ([]*registry.MailIn, int64, error) {
	c := mailInConditions(filter)

	total, err := count(ctx, mr.ex, "SELECT COUNT(*) FROM mail_in m"+c.where(), c.args...)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + mailInColumns + " FROM mail_in m" + c.where() + " ORDER BY m.date DESC, m.id DESC" + c.page(req)
	rows, err := mr.ex.execQuery(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var mails []*registry.MailIn
	for rows.Next() {
		mail, err := scanMailIn(rows)
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

// AddServiceDestinations inserts one row per (service, type) pair
func (mr *MailInRepository) AddServiceDestinations(ctx context.Context, mailID int64, dests []registry.ServiceDestination) error {
	if len(dests) == 0 {
		return nil
	}

	serviceIDs := make([]int64, len(dests))
	types := make([]string, len(dests))
	for i, d := range dests {
		serviceIDs[i] = d.ServiceID
		types[i] = string(d.Type)
	}

	_, err := mr.ex.execCommand(ctx, `
		INSERT INTO service_received_mail (mail_in_id, service_id, type)
		SELECT $1, unnest($2::bigint[]), unnest($3::text[])`,
		mailID, pq.Array(serviceIDs), pq.Array(types))
	return err
}

// DeleteServiceDestinations removes every service row of the mail
func (mr *MailInRepository) DeleteServiceDestinations(ctx context.Context, mailID int64) error {
	_, err := mr.ex.execCommand(ctx, "DELETE FROM service_received_mail WHERE mail_in_id = $1", mailID)
	return err
}

// AddCopies inserts one copy row per council member
func (mr *MailInRepository) AddCopies(ctx context.Context, mailID int64, councilIDs []int64) error {
	if len(councilIDs) == 0 {
		return nil
	}
	_, err := mr.ex.execCommand(ctx,
		"INSERT INTO mail_copies (mail_in_id, council_id) SELECT $1, unnest($2::bigint[])",
		mailID, pq.Array(councilIDs))
	return err
}

// DeleteCopies removes every copy row of the mail
func (mr *MailInRepository) DeleteCopies(ctx context.Context, mailID int64) error {
	_, err := mr.ex.execCommand(ctx, "DELETE FROM mail_copies WHERE mail_in_id = $1", mailID)
	return err
}

// AddRecipients inserts one sender row per incoming contact
func (mr *MailInRepository) AddRecipients(ctx context.Context, mailID int64, contactIDs []int64) error {
	if len(contactIDs) == 0 {
		return nil
	}
	_, err := mr.ex.execCommand(ctx,
		"INSERT INTO mail_in_recipients (mail_in_id, contact_id) SELECT $1, unnest($2::bigint[])",
		mailID, pq.Array(contactIDs))
	return err
}

// DeleteRecipients removes every sender row of the mail
func (mr *MailInRepository) DeleteRecipients(ctx context.Context, mailID int64) error {
	_, err := mr.ex.execCommand(ctx, "DELETE FROM mail_in_recipients WHERE mail_in_id = $1", mailID)
	return err
}

// AddUserReceipts inserts unread rows for users that have none yet
func (mr *MailInRepository) AddUserReceipts(ctx context.Context, mailID int64, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := mr.ex.execCommand(ctx, `
		INSERT INTO user_received_mail (mail_in_id, user_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT (mail_in_id, user_id) DO NOTHING`,
		mailID, pq.Array(userIDs))
	return err
}

// DeleteUserReceipts removes every receipt row of the mail
func (mr *MailInRepository) DeleteUserReceipts(ctx context.Context, mailID int64) error {
	_, err := mr.ex.execCommand(ctx, "DELETE FROM user_received_mail WHERE mail_in_id = $1", mailID)
	return err
}

// MarkAsRead flags the receipt rows of (mailID, userID) as read
func (mr *MailInRepository) MarkAsRead(ctx context.Context, mailID int64, userID string, at time.Time) (int64, error) {
	result, err := mr.ex.execCommand(ctx,
		"UPDATE user_received_mail SET is_read = TRUE, read_at = $3 WHERE mail_in_id = $1 AND user_id = $2",
		mailID, userID, at.UTC())
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, registry.NewDatabaseError("ROWS_AFFECTED_FAILED", "failed to read affected rows", err)
	}
	return n, nil
}

func mailInConditions(f registry.MailInFilter) *conditions {
	c := &conditions{}
	if f.NeedsMayor != nil {
		c.add("m.needs_mayor = " + c.arg(*f.NeedsMayor))
	}
	if f.NeedsDgs != nil {
		c.add("m.needs_dgs = " + c.arg(*f.NeedsDgs))
	}
	if f.DateFrom != nil {
		c.add("m.date >= " + c.arg(dateArg(*f.DateFrom)) + "::date")
	}
	if f.DateTo != nil {
		c.add("m.date <= " + c.arg(dateArg(*f.DateTo)) + "::date")
	}
	if len(f.ServiceIDs) > 0 {
		c.add("EXISTS (SELECT 1 FROM service_received_mail srm WHERE srm.mail_in_id = m.id AND srm.service_id = ANY(" +
			c.arg(pq.Array(f.ServiceIDs)) + "))")
	}
	c.search(f.Query, "m.subject")
	if f.UserID != "" {
		clause := "EXISTS (SELECT 1 FROM user_received_mail urm WHERE urm.mail_in_id = m.id AND urm.user_id = " + c.arg(f.UserID)
		if f.UnreadOnly {
			clause += " AND urm.is_read = FALSE"
		}
		c.add(clause + ")")
	}
	return c
}

func scanMailIn(row scanner) (*registry.MailIn, error) {
	mail := &registry.MailIn{}
	err := row.Scan(&mail.ID, &mail.Date, &mail.Subject, &mail.NeedsMayor, &mail.NeedsDgs, &mail.CreatedAt, &mail.UpdatedAt)
	if err != nil {
		return nil, scanError(err, errMailInNotFound)
	}
	mail.Date = registry.Day(mail.Date)
	return mail, nil
}

// hydrate fills services, senders and counts of the mails in three queries
func (mr *MailInRepository) hydrate(ctx context.Context, mails []*registry.MailIn) error {
	if len(mails) == 0 {
		return nil
	}

	ids := make([]int64, len(mails))
	byID := make(map[int64]*registry.MailIn, len(mails))
	for i, m := range mails {
		ids[i] = m.ID
		byID[m.ID] = m
		m.Services = []registry.ServiceReceivedMail{}
		m.Recipients = []registry.MailRecipient{}
		m.Count = &registry.MailInCount{}
	}

	rows, err := mr.ex.execQuery(ctx, `
		SELECT srm.mail_in_id, srm.service_id, srm.type, s.name, s.code
		FROM service_received_mail srm
		JOIN services s ON s.id = srm.service_id
		WHERE srm.mail_in_id = ANY($1)
		ORDER BY srm.mail_in_id, srm.service_id, srm.type`, pq.Array(ids))
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			mailID int64
			srm    registry.ServiceReceivedMail
		)
		if err := rows.Scan(&mailID, &srm.ServiceID, &srm.Type, &srm.Service.Name, &srm.Service.Code); err != nil {
			rows.Close()
			return translateError(err)
		}
		srm.Service.ID = srm.ServiceID
		byID[mailID].Services = append(byID[mailID].Services, srm)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return translateError(err)
	}

	rows, err = mr.ex.execQuery(ctx, `
		SELECT r.mail_in_id, r.contact_id, c.name
		FROM mail_in_recipients r
		JOIN contacts_in c ON c.id = r.contact_id
		WHERE r.mail_in_id = ANY($1)
		ORDER BY r.mail_in_id, r.contact_id`, pq.Array(ids))
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			mailID int64
			rcpt   registry.MailRecipient
		)
		if err := rows.Scan(&mailID, &rcpt.ContactID, &rcpt.Contact.Name); err != nil {
			rows.Close()
			return translateError(err)
		}
		rcpt.Contact.ID = rcpt.ContactID
		m := byID[mailID]
		m.Recipients = append(m.Recipients, rcpt)
		m.Count.Recipients++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return translateError(err)
	}

	rows, err = mr.ex.execQuery(ctx,
		"SELECT mail_in_id, COUNT(*) FROM mail_copies WHERE mail_in_id = ANY($1) GROUP BY mail_in_id", pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var mailID int64
		var n int
		if err := rows.Scan(&mailID, &n); err != nil {
			return translateError(err)
		}
		byID[mailID].Count.Copies = n
	}
	return translateError(rows.Err())
}

func (mr *MailInRepository) copies(ctx context.Context, mailID int64) ([]registry.MailCopy, error) {
	rows, err := mr.ex.execQuery(ctx, `
		SELECT mc.council_id, c.first_name, c.last_name, c.position
		FROM mail_copies mc
		JOIN councils c ON c.id = mc.council_id
		WHERE mc.mail_in_id = $1
		ORDER BY mc.council_id`, mailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	copies := []registry.MailCopy{}
	for rows.Next() {
		var mc registry.MailCopy
		if err := rows.Scan(&mc.CouncilID, &mc.Council.FirstName, &mc.Council.LastName, &mc.Council.Position); err != nil {
			return nil, translateError(err)
		}
		mc.Council.ID = mc.CouncilID
		copies = append(copies, mc)
	}
	return copies, translateError(rows.Err())
}

func (mr *MailInRepository) receipts(ctx context.Context, mailID int64) ([]registry.UserReceivedMail, error) {
	rows, err := mr.ex.execQuery(ctx, `
		SELECT urm.user_id, urm.is_read, urm.read_at, u.first_name, u.last_name
		FROM user_received_mail urm
		JOIN users u ON u.id = urm.user_id
		WHERE urm.mail_in_id = $1
		ORDER BY urm.user_id`, mailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := []registry.UserReceivedMail{}
	for rows.Next() {
		var (
			urm    registry.UserReceivedMail
			readAt sql.NullTime
		)
		if err := rows.Scan(&urm.UserID, &urm.IsRead, &readAt, &urm.User.FirstName, &urm.User.LastName); err != nil {
			return nil, translateError(err)
		}
		if readAt.Valid {
			at := readAt.Time.UTC()
			urm.ReadAt = &at
		}
		urm.User.ID = urm.UserID
		receipts = append(receipts, urm)
	}
	return receipts, translateError(rows.Err())
}
