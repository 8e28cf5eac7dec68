//go:build cgo && sqlite3_cgo

package db

import (
	_ "github.com/mattn/go-sqlite3"
)

// Build with -tags sqlite3_cgo to use the C library.
const (
	driverID   = "mattn/go-sqlite3"
	driverName = "sqlite3"
)
