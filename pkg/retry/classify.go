package retry

import (
	"errors"

	"price-hunter/pkg/models"
)

type Class int

const (
	ClassTransient Class = iota
	ClassPermanent
)

func (c Class) String() string {
	if c == ClassPermanent {
		return "permanent"
	}
	return "transient"
}

// Error carries an explicit classification chosen by an adapter.
type Error struct {
	Class Class
	Err   error
}

func (e *Error) Error() string { return e.Class.String() + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Transient marks err as worth retrying (timeouts, resets, 5xx, 429).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: ClassTransient, Err: err}
}

// Permanent marks err as not worth retrying (4xx, unparseable responses).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: ClassPermanent, Err: err}
}

// Classify returns the class of err. Anything not explicitly marked is
// transient, except a missing product.
func Classify(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	if errors.Is(err, models.ErrNotFound) {
		return ClassPermanent
	}
	return ClassTransient
}
