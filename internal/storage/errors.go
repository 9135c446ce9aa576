package storage

import "errors"

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateOffer is returned when a catalog carries the same id twice.
var ErrDuplicateOffer = errors.New("duplicate offer id")
