// Package services defines the shared error taxonomy and context helpers used
// by every component that talks to the refinement service or to storage.
package services
