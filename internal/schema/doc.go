// Package schema evolves the on-disk SQLite schema through an ordered list of forward-only steps.
//
// A [Registry] holds steps numbered 1..N. [Migrate] reads the version persisted in schema_meta and applies every
// step above it, each in its own transaction together with the version bump, so a crash leaves the database at the
// last step that committed. Databases written by a newer binary are rejected without being touched.
package schema
