// Package resume derives the pipeline's progress from storage alone. Counts
// are recomputed on every call; nothing here caches or maintains a counter,
// so an interrupted run always resumes from what actually persisted.
package resume
