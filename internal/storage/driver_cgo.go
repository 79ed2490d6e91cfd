//go:build cgo_sqlite

package storage

import _ "github.com/mattn/go-sqlite3" // cgo driver, opt-in via -tags cgo_sqlite

// driverName selects the cgo sqlite3 driver when the service is built with
// the cgo_sqlite tag, for deployments that accept a C toolchain in exchange
// for mattn/go-sqlite3's more mature locking under heavy concurrent write
// load than the pure-Go driver provides.
const driverName = "sqlite3"

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}
