package store

import (
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect struct {
	driver       string
	columnsQuery string
	init         []string
	fileBacked   bool
	singleConn   bool
}

var dialects = map[string]dialect{
	"sqlite": {
		driver:       "sqlite",
		columnsQuery: `SELECT name FROM pragma_table_info(?) ORDER BY cid`,
		init:         []string{`PRAGMA journal_mode = WAL`, `PRAGMA busy_timeout = 5000`},
		fileBacked:   true,
		singleConn:   true,
	},
	"postgres": {
		driver: "postgres",
		columnsQuery: `SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = ? ORDER BY ordinal_position`,
	},
	"duckdb": {
		driver: "duckdb",
		columnsQuery: `SELECT column_name FROM information_schema.columns
			WHERE table_name = ? ORDER BY ordinal_position`,
		fileBacked: true,
		singleConn: true,
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("store: unsupported driver %q", driver)
	}
	return d, nil
}
