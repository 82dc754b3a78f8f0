package site

import "errors"

var (
	// ErrUnknownSite is returned when a site identifier is not registered.
	ErrUnknownSite = errors.New("unknown site")

	// ErrInvalidProfile is returned when a profile lacks a base URL or parser.
	ErrInvalidProfile = errors.New("invalid site profile")
)
