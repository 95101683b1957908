package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/larry311012/ai-news-hub-sub002/infrastructure/configuration"
)

func TestWrap_BindsPerDialect(t *testing.T) {
	q := `SELECT a FROM t WHERE b = ? AND c = ?`
	sqlite, _ := newMockDB(t, DialectSQLite)
	pg, _ := newMockDB(t, DialectPostgres)
	mssql, _ := newMockDB(t, DialectMSSQL)

	require.Equal(t, q, sqlite.Rebind(q))
	require.Equal(t, `SELECT a FROM t WHERE b = $1 AND c = $2`, pg.Rebind(q))
	require.Equal(t, `SELECT a FROM t WHERE b = @p1 AND c = @p2`, mssql.Rebind(q))
	require.Equal(t, "sqlserver", mssql.DriverName())
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, EnsureSchema(context.Background(), db, DialectSQLite))

	exists, err := columnExists(context.Background(), db, DialectSQLite, "social_connections", "token_secret")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = columnExists(context.Background(), db, DialectSQLite, "social_connections", "nope")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestOpenDatabase_SQLiteFile(t *testing.T) {
	dir := t.TempDir()
	db, dialect, err := OpenDatabase(context.Background(), configuration.Database{Vendor: "sqlite"}, dir)
	require.NoError(t, err)
	defer db.Close()
	require.Equal(t, DialectSQLite, dialect)
}

func TestOpenDatabase_UnknownVendor(t *testing.T) {
	_, _, err := OpenDatabase(context.Background(), configuration.Database{Vendor: "oracle"}, t.TempDir())
	require.Error(t, err)
}

func TestNewPostgreSQLDB_RequiresHost(t *testing.T) {
	_, err := NewPostgreSQLDB(configuration.Db{})
	require.Error(t, err)
}
