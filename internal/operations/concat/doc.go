// Package concat merges many objects into one with server-side multipart copy.
//
// Each target runs as one multipart session: the upload is created, every
// source is copied in as a part numbered by its sorted position, and the
// upload is completed with the parts in order. A session that fails or is
// cancelled after creation is aborted exactly once, so no orphaned parts
// remain on the store.
package concat
