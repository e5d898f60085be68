package store

import "errors"

// ErrAlreadyRunning is returned by BeginRun when the campaign is mid-run.
var ErrAlreadyRunning = errors.New("campaign already running")

// ErrInvalidTransition is returned when a conditional status change finds the
// row in an unexpected state.
var ErrInvalidTransition = errors.New("invalid status transition")
