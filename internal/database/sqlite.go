package database

import (
	"strings"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// sqlitePragmas enforce the cascade foreign keys and let writers wait for the lock
// instead of failing immediately.
var sqlitePragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
}

// openSQLite returns a SQLite dialector for path with the required pragmas appended.
// The caller limits the pool to one connection so writers are serialized.
func openSQLite(path string) gorm.Dialector {
	return sqlite.Open(SQLiteDSN(path))
}

// SQLiteDSN appends the pragmas to a SQLite path or URI unless already present.
func SQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	for _, pragma := range sqlitePragmas {
		name := pragma[:strings.Index(pragma, "(")]
		if strings.Contains(dsn, name) {
			continue
		}
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + pragma
	}
	return dsn
}
