package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates a uniqueness constraint was violated.
var ErrConflict = errors.New("repository: conflict")

// ErrInsufficientBalance indicates a guarded decrement would have taken a
// balance below zero.
var ErrInsufficientBalance = errors.New("repository: insufficient balance")

// ErrInvalidArgument indicates a malformed repository input.
var ErrInvalidArgument = errors.New("repository: invalid argument")
