package sources

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

func TestTableScan_MatchesCellsInWindow(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "app.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT, notes BLOB)").Error)
	require.NoError(t, db.Exec(`INSERT INTO users (id, name, email, notes) VALUES
		(1, 'Ann', 'ann@corp.com', NULL),
		(2, 'Bob', 'bob@corp.com', 'cc carol@corp.com'),
		(3, 'Cid', 'cid@corp.com', NULL)`).Error)

	ts := tableScan{db: db, source: models.SourcePostgreSQL, table: "users", start: 0, end: 2, profile: "prod", host: "db:5432", dbName: "app"}
	out, err := ts.run(context.Background(), newTestScanner(t))
	require.NoError(t, err)

	require.Len(t, out, 3)
	var cols []string
	for _, f := range out {
		cols = append(cols, f.Column)
		assert.Equal(t, "db:5432", f.Host)
		assert.Equal(t, "app", f.Database)
		assert.Equal(t, "users", f.Table)
		assert.Equal(t, "prod", f.Profile)
	}
	assert.Equal(t, []string{"email", "email", "notes"}, cols)
	assert.Equal(t, []string{"carol@corp.com"}, out[2].Matches)
	assert.Equal(t, models.SourcePostgreSQL, out[2].DataSource)
	assert.Equal(t, "db:5432 > app > users.notes", out[2].Location())
}

func TestSelectTables(t *testing.T) {
	all := []string{"users", "orders"}
	assert.Equal(t, all, selectTables(all, nil, nil))

	var missing []string
	got := selectTables(all, []string{"orders", "ghost"}, func(m string) { missing = append(missing, m) })
	assert.Equal(t, []string{"orders"}, got)
	assert.Equal(t, []string{"ghost"}, missing)
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "", cellText(nil))
	assert.Equal(t, "abc", cellText([]byte("abc")))
	assert.Equal(t, "42", cellText(int64(42)))
}

func TestSubmitTables_TagsSourceAndSkipsMissing(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "shop.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE customers (email TEXT)").Error)
	require.NoError(t, db.Exec("INSERT INTO customers VALUES ('dan@shop.com')").Error)

	pool := &inlinePool{}
	submitTables(context.Background(), newEnv(t, pool), db, tableSet{
		source:  models.SourceMySQL,
		profile: "shop",
		host:    "mysql",
		dbName:  "shop",
		end:     500,
		allowed: []string{"customers", "ghost"},
	}, []string{"customers", "orders"})

	assert.Equal(t, 1, pool.ran)
	require.Len(t, pool.findings, 1)
	f := pool.findings[0]
	assert.Equal(t, models.SourceMySQL, f.DataSource)
	assert.Equal(t, "mysql > shop > customers.email", f.Location())
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(config.MySQLProfile{Host: "db", Port: 3306, User: "root", Password: "p@ss", Database: "shop"})
	assert.True(t, strings.HasPrefix(dsn, "root:p@ss@tcp(db:3306)/shop?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
}
