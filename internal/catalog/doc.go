// Package catalog is the catalog store: a migrated SQLite handle exposing read queries and bulk imports.
//
// [Open] migrates the file to the latest schema before returning, so no reader or importer ever sees a
// half-upgraded database. Catalog entities change only through an [ImportTransaction]: changes are buffered in
// memory, then written, reference-checked and committed in a single SQL transaction. Readers run against the last
// committed state and never wait on a buffered import.
//
// One import may be active per [Database]; a second [Database.BeginImport] fails with [shared.ErrImportInProgress].
package catalog
