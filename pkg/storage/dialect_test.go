package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LENAX/agentflow/pkg/storage/mysql"
	"github.com/LENAX/agentflow/pkg/storage/postgres"
	"github.com/LENAX/agentflow/pkg/storage/sqlite"
)

func TestDialects_Upsert(t *testing.T) {
	cols := []string{"id", "status"}
	assert.Equal(t, "INSERT OR REPLACE INTO t (id, status) VALUES (:id, :status)",
		sqlite.NewSQLiteDialect().UpsertSQL("t", cols, "id", cols[1:]))
	assert.Equal(t, "INSERT INTO t (id, status) VALUES (:id, :status) ON DUPLICATE KEY UPDATE status = VALUES(status)",
		mysql.NewMySQLDialect().UpsertSQL("t", cols, "id", cols[1:]))
	assert.Equal(t, "INSERT INTO t (id, status) VALUES (:id, :status) ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status",
		postgres.NewPostgresDialect().UpsertSQL("t", cols, "id", cols[1:]))
}

func TestDialects_DDLAndDSN(t *testing.T) {
	ddl := "CREATE TABLE IF NOT EXISTS t (id VARCHAR(64) PRIMARY KEY, seq INTEGER NOT NULL, body TEXT, at DATETIME NOT NULL);"

	pg := postgres.NewPostgresDialect().CreateTableSQL(ddl)
	assert.Contains(t, pg, "at TIMESTAMP NOT NULL")
	assert.Contains(t, pg, "seq BIGINT NOT NULL")

	my := mysql.NewMySQLDialect()
	assert.Contains(t, my.CreateTableSQL(ddl), "ENGINE=InnoDB")
	assert.Equal(t, "u:p@tcp(db)/af?parseTime=true", my.PrepareDSN("u:p@tcp(db)/af"))
	assert.Equal(t, "u:p@tcp(db)/af?x=1&parseTime=true", my.PrepareDSN("u:p@tcp(db)/af?x=1"))
	assert.Equal(t, "u:p@tcp(db)/af?parseTime=true", my.PrepareDSN("u:p@tcp(db)/af?parseTime=true"))

	assert.Equal(t, ddl, sqlite.NewSQLiteDialect().CreateTableSQL(ddl))
}
