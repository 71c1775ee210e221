package postgres

import (
	"context"
	"database/sql"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// Transaction implements the registry.Transaction interface for PostgreSQL
type Transaction struct {
	tx         *sql.Tx
	span       trace.Span
	committed  bool
	rolledBack bool
	mu         sync.Mutex
}

func newTransaction(tx *sql.Tx, span trace.Span) *Transaction {
	return &Transaction{tx: tx, span: span}
}

// Commit commits the transaction
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.finished(); err != nil {
		return err
	}

	if err := t.tx.Commit(); err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, "commit failed")
		t.span.End()
		t.rolledBack = true
		return registry.NewDatabaseError("TX_COMMIT_FAILED", "failed to commit transaction", err)
	}

	t.committed = true
	t.span.End()
	return nil
}

// Rollback rolls back the transaction
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.finished(); err != nil {
		return err
	}

	t.rolledBack = true
	t.span.SetStatus(codes.Error, "rolled back")
	defer t.span.End()

	if err := t.tx.Rollback(); err != nil {
		return registry.NewDatabaseError("TX_ROLLBACK_FAILED", "failed to rollback transaction", err)
	}
	return nil
}

func (t *Transaction) finished() error {
	if t.committed {
		return registry.NewDatabaseError("TX_ALREADY_COMMITTED", "transaction already committed", nil)
	}
	if t.rolledBack {
		return registry.NewDatabaseError("TX_ALREADY_ROLLED_BACK", "transaction already rolled back", nil)
	}
	return nil
}

func (t *Transaction) isActive() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished()
}

func (t *Transaction) execQuery(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := t.isActive(); err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

// execQueryRow on a finished transaction yields a row whose Scan reports
// sql.ErrTxDone.
func (t *Transaction) execQueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *Transaction) execCommand(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := t.isActive(); err != nil {
		return nil, err
	}

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	return result, nil
}

// Services returns the service store bound to the transaction
func (t *Transaction) Services() registry.ServiceRepository { return &ServiceRepository{ex: t} }

// Users returns the user store bound to the transaction
func (t *Transaction) Users() registry.UserRepository { return &UserRepository{ex: t} }

// Admins returns the admin store bound to the transaction
func (t *Transaction) Admins() registry.AdminRepository { return &AdminRepository{ex: t} }

// Councils returns the council store bound to the transaction
func (t *Transaction) Councils() registry.CouncilRepository { return &CouncilRepository{ex: t} }

// Contacts returns the contact store bound to the transaction
func (t *Transaction) Contacts() registry.ContactRepository { return &ContactRepository{ex: t} }

// MailIn returns the incoming mail store bound to the transaction
func (t *Transaction) MailIn() registry.MailInRepository { return &MailInRepository{ex: t} }

// MailOut returns the outgoing mail store bound to the transaction
func (t *Transaction) MailOut() registry.MailOutRepository { return &MailOutRepository{ex: t} }

// Stats returns the aggregate store bound to the transaction
func (t *Transaction) Stats() registry.StatsRepository { return &StatsRepository{ex: t} }
