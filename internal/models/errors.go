package models

import "errors"

// Error kinds shared by the stores, the publisher and the control surface.
var (
	ErrNotFound           = errors.New("not found")
	ErrNotEligible        = errors.New("not eligible")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrStoreUnavailable   = errors.New("store unavailable")
)
