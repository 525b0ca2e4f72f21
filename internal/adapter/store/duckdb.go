//go:build duckdb

package store

import _ "github.com/marcboeker/go-duckdb/v2"
