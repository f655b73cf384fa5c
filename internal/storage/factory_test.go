package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/agentflow/pkg/config"
	"github.com/LENAX/agentflow/pkg/storage/dao"
)

func TestDialectFor(t *testing.T) {
	for _, typ := range []string{"sqlite", "sqlite3", "mysql", "postgres", "postgresql"} {
		d, err := DialectFor(typ)
		require.NoError(t, err, typ)
		assert.NotEmpty(t, d.DriverName())
	}
	_, err := DialectFor("oracle")
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestNewRunRepositoryFromConfig_SQLiteFile(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	repo, err := NewRunRepositoryFromConfig(config.DatabaseConfig{
		Enabled: true, Type: "sqlite", DSN: dsn, MaxIdleConns: 2, ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.SaveRun(ctx, &dao.RunRecord{ID: "r", WorkflowID: "wf", Status: "Running", StartedAt: time.Now()}))
	got, err := repo.GetRun(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "wf", got.WorkflowID)
}
