package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mailregistry "+Version)
}

func TestAdminCreate(t *testing.T) {
	t.Setenv("MAILREGISTRY_JWT_SECRET", "cli-test-secret")
	t.Setenv("MAILREGISTRY_DATABASE_TYPE", "memory")
	t.Setenv("MAILREGISTRY_LOG_LEVEL", "error")

	out, err := run(t, "admin", "create", "--username", "root", "--password", "motdepasse")
	require.NoError(t, err)
	assert.Contains(t, out, `administrator "root" created`)

	_, err = run(t, "admin", "create", "--username", "root", "--password", "court")
	assert.Error(t, err)

	_, err = run(t, "admin", "create", "--password", "motdepasse")
	assert.Error(t, err)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	t.Setenv("MAILREGISTRY_JWT_SECRET", "cli-test-secret")
	t.Setenv("MAILREGISTRY_DATABASE_TYPE", "memory")
	t.Setenv("MAILREGISTRY_LOG_LEVEL", "error")

	_, err := run(t, "migrate", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")

	_, err = run(t, "migrate", "down", "zero")
	assert.Error(t, err)
}

func TestMissingSecretFails(t *testing.T) {
	t.Setenv("MAILREGISTRY_JWT_SECRET", "")
	_, err := run(t, "serve")
	assert.Error(t, err)
}
