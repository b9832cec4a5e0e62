// Package repositories implements SQLite persistence for the read models stored next to the catalog.
//
// Key Implementations:
//   - [UserRepository] : user accounts with handle lookups
//   - [NotificationRepository] : per-user notification inbox with read tracking
//
// Catalog entities are not handled here; they only change through catalog import transactions.
package repositories
