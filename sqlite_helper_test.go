package datasource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// sqliteDSN points at a fresh database seeded with the sample rows.
func sqliteDSN(t *testing.T) string {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "data", "app.db")
	reg := New()
	t.Cleanup(func() { _ = reg.Close() })

	ctx := context.Background()
	db, err := reg.Browser(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.Run(ctx, "CREATE TABLE t (id INTEGER, name TEXT, tag TEXT)", nil))
	n, err := db.Affect(ctx, "INSERT INTO t VALUES (1,'a','x'),(1,'a','y'),(2,'b','z')", nil)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	return dsn
}
