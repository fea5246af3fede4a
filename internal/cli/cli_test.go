package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickmarket/marketplace/internal/store/sqlite"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

// isolate points the commands at a fresh database and clears the optional
// backends so the host environment cannot leak in.
func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clickmarket.db")
	t.Setenv("DB_PATH", path)
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "migrate", "sweep", "user"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
}

func TestMigrate(t *testing.T) {
	path := isolate(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema applied to "+path)

	_, err = execute(t, "migrate")
	require.NoError(t, err, "migrate is idempotent")
}

func TestMigrateRejectsMemoryDatabase(t *testing.T) {
	isolate(t)
	t.Setenv("DB_PATH", ":memory:")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in-memory")
}

func TestInvalidConfigFails(t *testing.T) {
	isolate(t)
	t.Setenv("LOG_LEVEL", "loud")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestUserAdd(t *testing.T) {
	path := isolate(t)

	out, err := execute(t, "user", "add",
		"--id", "adm-1", "--role", "admin", "--name", "Ops", "--email", "ops@clickmarket.test")
	require.NoError(t, err)

	var printed user.User
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, "adm-1", printed.ID)
	assert.True(t, printed.IsAdmin())

	db, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()
	stored, err := db.Users().GetUser(context.Background(), "adm-1")
	require.NoError(t, err)
	assert.Equal(t, "ops@clickmarket.test", stored.Email)
	require.NotNil(t, stored.Admin)
}

func TestUserAddValidation(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown role", []string{"--role", "courier", "--name", "X", "--email", "x@y.z"}, "unknown role"},
		{"bad email", []string{"--role", "client", "--name", "X", "--email", "nope"}, "not valid"},
		{"supplier without company", []string{"--role", "supplier", "--name", "X", "--email", "x@y.z"}, "company name"},
		{"missing flags", []string{"--role", "admin"}, "required flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"user", "add"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSweepOnEmptyDatabase(t *testing.T) {
	isolate(t)

	out, err := execute(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "0 invoice(s) marked overdue")
}
