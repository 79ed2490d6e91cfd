//go:build !cgo_sqlite

package storage

import _ "modernc.org/sqlite" // pure-Go driver, default build

// driverName is the database/sql driver used to open the store. The
// pure-Go modernc.org/sqlite driver is the default so the service builds
// and runs without a C toolchain.
const driverName = "sqlite"

func dsn(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
