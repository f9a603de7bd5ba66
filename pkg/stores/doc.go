// Package stores provides the persistence layer for folio.
// It owns the SQLite schema for project records and exposes
// insert, list and delete operations with typed failures.
package stores
