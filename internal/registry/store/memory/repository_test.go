package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

func seedService(t *testing.T, repo *Repository, code string) *registry.Service {
	t.Helper()
	svc := &registry.Service{Name: "Service " + code, Code: code, MailType: registry.MailTypeBoth}
	require.NoError(t, repo.Services().CreateService(context.Background(), svc))
	return svc
}

func TestRepository_Health(t *testing.T) {
	repo := NewRepository()

	health := repo.Health(context.Background())
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "memory", health.Details["database_type"])

	require.NoError(t, repo.Close())
	health = repo.Health(context.Background())
	assert.Equal(t, "unhealthy", health.Status)
}

func TestRepository_ClosedRejectsCalls(t *testing.T) {
	repo := NewRepository()
	require.NoError(t, repo.Close())

	_, err := repo.Services().GetService(context.Background(), 1)
	assert.True(t, registry.IsInternalError(err))

	_, err = repo.BeginTx(context.Background())
	assert.True(t, registry.IsInternalError(err))
}

func TestTransaction_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	svc := &registry.Service{Name: "Urbanisme", Code: "URB", MailType: registry.MailTypeBoth}
	require.NoError(t, tx.Services().CreateService(ctx, svc))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.Services().GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, "URB", got.Code)

	assert.Error(t, tx.Commit(ctx))
	assert.Error(t, tx.Rollback(ctx))
}

func TestTransaction_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	svc := seedService(t, repo, "URB")

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	mail := &registry.MailIn{Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Subject: "Permis"}
	require.NoError(t, tx.MailIn().CreateMailIn(ctx, mail))
	require.NoError(t, tx.MailIn().AddServiceDestinations(ctx, mail.ID, []registry.ServiceDestination{
		{ServiceID: svc.ID, Type: registry.DestinationInfo},
	}))
	require.NoError(t, tx.Services().UpdateServiceStatus(ctx, svc.ID, registry.LifecycleInactive))
	require.NoError(t, tx.Rollback(ctx))

	exists, err := repo.MailIn().ExistsMailIn(ctx, mail.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := repo.Services().GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.IsActive())

	n, err := repo.Stats().CountMailIn(ctx, registry.MailInFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	boom := errors.New("boom")

	err := registry.RunInTx(ctx, repo, func(tx registry.Transaction) error {
		svc := &registry.Service{Name: "Culture", Code: "CUL", MailType: registry.MailTypeIn}
		if err := tx.Services().CreateService(ctx, svc); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.Services().GetServiceByCode(ctx, "CUL")
	assert.True(t, registry.IsNotFoundError(err))

	// the repository is usable again after the rollback
	seedService(t, repo, "CUL")
}

func TestRunInTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	assert.Panics(t, func() {
		_ = registry.RunInTx(ctx, repo, func(tx registry.Transaction) error {
			_ = tx.Services().CreateService(ctx, &registry.Service{Name: "X", Code: "XX", MailType: registry.MailTypeIn})
			panic("unexpected")
		})
	})

	_, err := repo.Services().GetServiceByCode(ctx, "XX")
	assert.True(t, registry.IsNotFoundError(err))
}
