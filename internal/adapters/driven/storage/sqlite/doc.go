// Package sqlite provides durable document storage backed by SQLite.
// The database file lives under the configured data directory and is
// created on first open; schema changes apply through embedded
// migrations.
package sqlite
