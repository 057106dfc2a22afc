package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect is the SQL flavour behind a DATABASE_URL.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDatabaseURL resolves the dialect, the database/sql driver name and the
// driver DSN. "sqlite:///ventas.db" is relative, "sqlite:////var/ventas.db"
// absolute; "postgres://" and "postgresql://" URLs are handed to pgx unchanged.
func ParseDatabaseURL(raw string) (Dialect, string, string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", "", "", fmt.Errorf("empty database URL")
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Postgres, "pgx", raw, nil
	case strings.HasPrefix(raw, "sqlite:///"):
		return SQLite, "sqlite", strings.TrimPrefix(raw, "sqlite:///"), nil
	case strings.HasPrefix(raw, "sqlite://"):
		return SQLite, "sqlite", strings.TrimPrefix(raw, "sqlite://"), nil
	case strings.Contains(raw, "://"):
		return "", "", "", fmt.Errorf("unsupported database URL scheme in %q", raw)
	}
	// A bare path is a SQLite file.
	return SQLite, "sqlite", raw, nil
}

// sqliteDSN enables foreign keys (for the cascades) and takes the write lock
// when a transaction begins so balance re-reads cannot race.
func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

func (d Dialect) txOptions() *sql.TxOptions {
	if d == Postgres {
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return nil
}

func (d Dialect) lockClause(forUpdate bool) string {
	if forUpdate && d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// rebind rewrites "?" placeholders into "$1, $2..." for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
