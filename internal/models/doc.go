// Package models defines the catalog entities and read-model records persisted by catalogd.
//
// The package contains two categories of types:
//
// 1. Catalog entities, created and updated only through an import transaction:
//   - [Artist] : artist metadata with an optional portrait image
//   - [CatalogEntry] : album/release metadata owned by an artist, with ordered track references
//   - [Image] : content reference and dimensions for artwork
//
// 2. Read-model records written directly by their repositories:
//   - [User] : a catalog user identified by handle
//   - [Notification] : an entry in a user's notification inbox
//
// Every catalog entity carries an external ID issued upstream and a RowID (surrogate key) assigned by storage.
// The RowID is populated on reads and ignored on writes.
//
// Types are pure data; Validate reports malformed values and performs no lookups.
package models
