package batch

import "refinery/internal/services"

var (
	errEmptyProposition = services.Wrap(services.ErrValidation, "batch", "validate item", "empty proposition", nil)
	errMissingTimestamp = services.Wrap(services.ErrValidation, "batch", "validate item", "missing identity token", nil)
)
