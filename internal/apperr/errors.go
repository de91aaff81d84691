// Package apperr holds the sentinel errors shared by the read surfaces.
package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrNotReady    = errors.New("no generation published yet")
	ErrUnavailable = errors.New("index unavailable")
	ErrInvalid     = errors.New("invalid argument")
)
