package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacancyline/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Migrate(conn))
	require.NoError(t, Migrate(conn))

	all, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	v, err := Version(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, all[len(all)-1].Version, v)

	for _, table := range []string{"workspace_config", "vacancies", "vacancy_tasks", "events", "import_runs", "applications", "alert_cursors"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}
