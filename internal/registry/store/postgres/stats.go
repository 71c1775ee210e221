package postgres

import (
	"context"
	"time"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// StatsRepository implements the registry.StatsRepository interface using PostgreSQL
type StatsRepository struct {
	ex executor
}

// CountMailIn counts the incoming mails matching the filter
func (sr *StatsRepository) CountMailIn(ctx context.Context, filter registry.MailInFilter) (int64, error) {
	c := mailInConditions(filter)
	return count(ctx, sr.ex, "SELECT COUNT(*) FROM mail_in m"+c.where(), c.args...)
}

// CountMailOut counts the outgoing mails matching the filter
func (sr *StatsRepository) CountMailOut(ctx context.Context, filter registry.MailOutFilter) (int64, error) {
	c := mailOutConditions(filter)
	return count(ctx, sr.ex, "SELECT COUNT(*) FROM mail_out m"+c.where(), c.args...)
}

// MailInVolumeByService ranks services by the number of distinct incoming
// mails routed to them
func (sr *StatsRepository) MailInVolumeByService(ctx context.Context, limit int) ([]registry.ServiceVolume, error) {
	rows, err := sr.ex.execQuery(ctx, `
		SELECT s.id, s.name, s.code, COUNT(DISTINCT srm.mail_in_id) AS volume
		FROM service_received_mail srm
		JOIN services s ON s.id = srm.service_id
		GROUP BY s.id, s.name, s.code
		ORDER BY volume DESC, s.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var volumes []registry.ServiceVolume
	for rows.Next() {
		var v registry.ServiceVolume
		if err := rows.Scan(&v.Service.ID, &v.Service.Name, &v.Service.Code, &v.MailIn); err != nil {
			return nil, translateError(err)
		}
		volumes = append(volumes, v)
	}
	return volumes, translateError(rows.Err())
}

// MonthlyVolumes counts incoming and outgoing mails per month from since
// onwards. Months without traffic are omitted.
func (sr *StatsRepository) MonthlyVolumes(ctx context.Context, since time.Time) ([]registry.MonthlyVolume, error) {
	rows, err := sr.ex.execQuery(ctx, `
		SELECT month, SUM(mail_in), SUM(mail_out)
		FROM (
			SELECT to_char(date, 'YYYY-MM') AS month, 1 AS mail_in, 0 AS mail_out FROM mail_in WHERE date >= $1::date
			UNION ALL
			SELECT to_char(date, 'YYYY-MM') AS month, 0 AS mail_in, 1 AS mail_out FROM mail_out WHERE date >= $1::date
		) traffic
		GROUP BY month
		ORDER BY month`, dateArg(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var volumes []registry.MonthlyVolume
	for rows.Next() {
		var v registry.MonthlyVolume
		if err := rows.Scan(&v.Month, &v.MailIn, &v.MailOut); err != nil {
			return nil, translateError(err)
		}
		volumes = append(volumes, v)
	}
	return volumes, translateError(rows.Err())
}
