package models

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrNotFound is kept as the name the orchestrator reports with.
	ErrNotFound = ErrProductNotFound

	ErrInvalidSource   = errors.New("invalid source")
	ErrEmptyQuery      = errors.New("query must not be empty")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRejected        = errors.New("record rejected")
)
