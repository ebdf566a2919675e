package store

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

// DriverName is the database/sql driver registered by this package. It is
// go-sqlite3 with extra SQL functions installed on every connection.
const DriverName = "sqlite3_contentgraph"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("casefold", casefold, true)
		},
	})
}

// casefold is exposed to SQL for case-insensitive property criteria.
// Non-text values pass through unchanged. A Caser is stateful, so one is
// created per call.
func casefold(v any) any {
	switch s := v.(type) {
	case string:
		return cases.Fold().String(s)
	case []byte:
		return cases.Fold().String(string(s))
	}
	return v
}
