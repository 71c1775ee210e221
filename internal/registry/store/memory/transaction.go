package memory

import (
	"context"
	"sync"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// Transaction implements registry.Transaction on top of a snapshot of the
// tables taken when it began.
type Transaction struct {
	repo       *Repository
	snapshot   *state
	committed  bool
	rolledBack bool
	mu         sync.Mutex
}

// newTransaction expects repo.mu to be held for writing
func newTransaction(repo *Repository) *Transaction {
	return &Transaction{
		repo:     repo,
		snapshot: repo.st.clone(),
	}
}

// Commit keeps the changes and releases the repository
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.finished(); err != nil {
		return err
	}

	t.committed = true
	t.snapshot = nil
	t.repo.mu.Unlock()
	return nil
}

// Rollback restores the snapshot and releases the repository
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.finished(); err != nil {
		return err
	}

	t.rolledBack = true
	t.repo.st = t.snapshot
	t.snapshot = nil
	t.repo.mu.Unlock()
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

func (t *Transaction) read(fn func(s *state) error) error {
	return t.write(fn)
}

func (t *Transaction) write(fn func(s *state) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.finished(); err != nil {
		return err
	}
	return fn(t.repo.st)
}

// Services returns the service store bound to the transaction
func (t *Transaction) Services() registry.ServiceRepository { return &ServiceRepository{a: t} }

// Users returns the user store bound to the transaction
func (t *Transaction) Users() registry.UserRepository { return &UserRepository{a: t} }

// Admins returns the admin store bound to the transaction
func (t *Transaction) Admins() registry.AdminRepository { return &AdminRepository{a: t} }

// Councils returns the council store bound to the transaction
func (t *Transaction) Councils() registry.CouncilRepository { return &CouncilRepository{a: t} }

// Contacts returns the contact store bound to the transaction
func (t *Transaction) Contacts() registry.ContactRepository { return &ContactRepository{a: t} }

// MailIn returns the incoming mail store bound to the transaction
func (t *Transaction) MailIn() registry.MailInRepository { return &MailInRepository{a: t} }

// MailOut returns the outgoing mail store bound to the transaction
func (t *Transaction) MailOut() registry.MailOutRepository { return &MailOutRepository{a: t} }

// Stats returns the aggregate store bound to the transaction
func (t *Transaction) Stats() registry.StatsRepository { return &StatsRepository{a: t} }
