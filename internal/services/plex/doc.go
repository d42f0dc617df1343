// Package plex implements the library-catalog collaborator: listing Plex
// library sections, resolving their media items, and mapping bundle hashes to
// preview artifact paths inside the Plex data directory.
//
// The job engine depends only on the Catalog interface; the HTTP client here
// is the production implementation and accepts an injectable HTTP backend for
// tests. Catalog failures are tagged job-fatal because no item work can
// proceed without the server.
package plex
