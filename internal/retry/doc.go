// Package retry provides the single bounded-backoff executor shared by every
// call site that talks to the refinement service, plus the pacer that enforces
// the mandatory inter-call delay.
package retry
