package triage

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyAssigned = errors.New("issue is already assigned to another employee")
	ErrNotAssigned     = errors.New("issue is not assigned to this employee")
	ErrMissingProof    = errors.New("proof of resolution is required")
	ErrClosed          = errors.New("issue is already closed")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidZone     = errors.New("invalid zone")
	ErrInvalidIssue    = errors.New("invalid issue")
)
