// Package ingest feeds external catalog data into import transactions.
//
// A [Document] is the JSON shape shared by catalog dump files and upstream feed pages. [Apply] commits one document
// as one batch; [Syncer] pulls feed pages from a [Source] and commits them in bounded batches, reporting progress
// over a channel without ever blocking on it.
package ingest
