package domain

import "errors"

// ErrNotFound referenced course or lesson does not exist
var ErrNotFound = errors.New("resource not found")

// ErrDuplicate reel is already a lesson of the course
var ErrDuplicate = errors.New("resource already exists")

// ErrConflict optimistic concurrency retries are exhausted
var ErrConflict = errors.New("concurrent modification, please retry")

// ErrUnavailable store timed out or is unreachable
var ErrUnavailable = errors.New("store unavailable")

// ErrForbidden caller does not own the resource
var ErrForbidden = errors.New("not allowed to modify this resource")

// ErrInvalid request is well-formed but semantically wrong
var ErrInvalid = errors.New("invalid argument")
