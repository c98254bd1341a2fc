// Package apperr defines the sentinel errors shared across Othala.
package apperr

import "errors"

var (
	// ErrMalformedNumber indicates a document number string that could not
	// be parsed (unknown category letter or non-numeric identifier).
	ErrMalformedNumber = errors.New("malformed document number")

	// ErrNoVersion indicates an operation that requires a versioned number
	// was given an unversioned one.
	ErrNoVersion = errors.New("document number has no version")

	// ErrNotFound indicates the remote host confirmed the record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAuthRequired indicates the remote host refused access to the record.
	ErrAuthRequired = errors.New("authorisation required")

	// ErrRemoteUnavailable indicates a transport-level failure talking to
	// the remote host.
	ErrRemoteUnavailable = errors.New("remote host unavailable")

	// ErrNotArchived indicates the requested record is absent from the
	// local archive. Distinct from ErrCorruptEntry: absence is normal,
	// corruption is not.
	ErrNotArchived = errors.New("record not in local archive")

	// ErrCorruptEntry indicates a local archive entry exists but could not
	// be deserialised.
	ErrCorruptEntry = errors.New("corrupt archive entry")

	// ErrTooLarge indicates a file download was skipped because its declared
	// size exceeds the configured limit. A policy skip, not a failure.
	ErrTooLarge = errors.New("file too large")

	// ErrFileSkipped indicates a file download was skipped for a reason
	// other than size.
	ErrFileSkipped = errors.New("file skipped")
)
