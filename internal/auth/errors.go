// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUserExists is returned by UserRepository.Create when the phone number is taken.
var ErrUserExists = errors.New("user already exists")

// ErrStorageFailure marks errors raised by a storage collaborator.
// Match with errors.Is; the oops code is CodeStorageFailure.
var ErrStorageFailure = errors.New("storage failure")

// ErrInvalidSubject is returned when a session is requested for a user that
// does not exist. It signals a programming error in the caller.
var ErrInvalidSubject = errors.New("invalid session subject")

// Error codes shared by the auth services.
const (
	CodeStorageFailure = "AUTH_STORAGE_FAILURE"
	CodeInvalidSubject = "SESSION_INVALID_SUBJECT"
)

// storageFailure wraps a repository error so callers can match it with
// errors.Is(err, ErrStorageFailure) while keeping the original cause.
func storageFailure(operation string, err error) error {
	return oops.Code(CodeStorageFailure).
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrStorageFailure, err))
}

// IsStorageFailure reports whether err came from a storage collaborator.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}
