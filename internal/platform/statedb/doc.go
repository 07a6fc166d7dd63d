// Package statedb opens the SQL database that holds compilation state and
// implements store.StateStore on top of it.
//
// Two drivers are supported: the embedded, cgo-free SQLite driver
// (modernc.org/sqlite, the default) and PostgreSQL through pgx's
// database/sql adapter. The schema is managed with goose migrations
// embedded in the binary; queries are written with '?' placeholders and
// rebound for PostgreSQL.
package statedb
