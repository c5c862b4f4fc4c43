// Package journal records run history in SQLite. The journal is operational
// bookkeeping only: resume state always comes from the batch store, never
// from rows written here.
package journal
