package domain

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidDestination  = errors.New("invalid destination")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrConfig              = errors.New("provider not configured")
	ErrNotFound            = errors.New("not found")
)
