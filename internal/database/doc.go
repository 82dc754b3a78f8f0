// Package database stores crawl run history in SQLite.
//
// Each saved run keeps its site, timing, page statistics, the settings it
// ran with, the failed pages, and every extracted record. The history
// command reads it back to list runs or export their records.
//
// The driver is modernc.org/sqlite, a CGO-free SQLite, and the database is a
// single file in the XDG data directory.
package database
