package postgres

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// conditions accumulates WHERE clauses and their positional arguments
type conditions struct {
	clauses []string
	args    []interface{}
}

// arg registers v and returns its placeholder
func (c *conditions) arg(v interface{}) string {
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(len(c.args))
}

func (c *conditions) add(clause string) {
	c.clauses = append(c.clauses, clause)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// page appends LIMIT/OFFSET for req
func (c *conditions) page(req registry.PageRequest) string {
	req = req.Normalize(registry.DefaultPageLimit)
	return " LIMIT " + c.arg(req.Limit) + " OFFSET " + c.arg(req.Offset())
}

// activeOnly restricts to ACTIVE rows unless inactive ones were asked for
func (c *conditions) activeOnly(alias string, includeInactive bool) {
	if !includeInactive {
		c.add(alias + "status = " + c.arg(string(registry.LifecycleActive)))
	}
}

// search adds an ILIKE match of q over any of columns
func (c *conditions) search(q string, columns ...string) {
	if q == "" {
		return
	}
	placeholder := c.arg(likePattern(q))
	ors := make([]string, len(columns))
	for i, col := range columns {
		ors[i] = col + " ILIKE " + placeholder
	}
	c.add("(" + strings.Join(ors, " OR ") + ")")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// dateArg renders a day for comparison against DATE columns
func dateArg(t time.Time) string {
	return registry.Day(t).Format("2006-01-02")
}

func count(ctx context.Context, ex executor, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := ex.execQueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, translateError(err)
	}
	return n, nil
}

// missingActive returns the ids that have no ACTIVE row in table
func missingActive(ctx context.Context, ex executor, table string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := ex.execQuery(ctx,
		"SELECT id FROM "+table+" WHERE id = ANY($1) AND status = $2",
		pq.Array(ids), string(registry.LifecycleActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, translateError(err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}

	return missingIDs(ids, found), nil
}

func missingIDs(ids []int64, found map[int64]struct{}) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	var missing []int64
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}
