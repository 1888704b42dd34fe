package tracker

import "errors"

var (
	ErrBabyNotFound        = errors.New("baby not found")
	ErrObservationNotFound = errors.New("observation not found")
	ErrInvalidInput        = errors.New("invalid input")
)
