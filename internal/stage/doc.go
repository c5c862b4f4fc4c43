// Package stage applies one refinement pass to one batch: every item is sent
// through the retry executor, identity tokens and domain tags are preserved,
// and the output batch is persisted atomically or not at all.
package stage
