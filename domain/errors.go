package domain

import "errors"

// ErrConcurrencyConflict indicates that the underlying storage rejected an
// update because another writer changed the entity first.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ErrCaseNotFound indicates that the referenced case does not exist.
var ErrCaseNotFound = errors.New("case not found")

// ErrNotCaseOwner indicates that the caller does not own the referenced case.
var ErrNotCaseOwner = errors.New("case does not belong to caller")

// ErrTaskNotFound indicates that the referenced task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// ErrPublicationNotFound indicates that the referenced publication does not exist.
var ErrPublicationNotFound = errors.New("publication not found")
