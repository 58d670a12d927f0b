package handler

import "errors"

var (
	ErrInvalidPeriod    = errors.New("valid year and month (1-12) are required")
	ErrInvalidRate      = errors.New("commission rate must be between 0 and 1")
	ErrMissingRateField = errors.New("missing required fields")
	ErrRateNotFound     = errors.New("commission rate not found")
)
