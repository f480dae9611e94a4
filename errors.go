// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import "github.com/pkg/errors"

// ValidationError reports a value that violates an aggregator's own
// invariants (negative entries, a vector key of the wrong length, a
// fill rule returning a value Bag cannot hold).
type ValidationError struct{ cause error }

func (e *ValidationError) Error() string { return e.cause.Error() }
func (e *ValidationError) Unwrap() error { return e.cause }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{cause: errors.Errorf(format, args...)}
}

// StructureMismatch reports two aggregators that cannot be merged:
// different shapes (bin count, cut thresholds, label keys), or
// otherwise incompatible trees. It is also the kind of error Fill
// returns on a past-tense aggregator (errFillPastTense).
type StructureMismatch struct{ cause error }

func (e *StructureMismatch) Error() string { return e.cause.Error() }
func (e *StructureMismatch) Unwrap() error { return e.cause }

func structureMismatchf(format string, args ...interface{}) error {
	return &StructureMismatch{cause: errors.Errorf(format, args...)}
}

func wrapStructureMismatch(err error, context string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.Cause(err).(*StructureMismatch); ok {
		return &StructureMismatch{cause: errors.Wrap(err, context)}
	}
	return errors.Wrap(err, context)
}

// NameConflict reports an attempt to rename a Quantity that has
// already been named.
type NameConflict struct{ cause error }

func (e *NameConflict) Error() string { return e.cause.Error() }
func (e *NameConflict) Unwrap() error { return e.cause }

func nameConflictf(format string, args ...interface{}) error {
	return &NameConflict{cause: errors.Errorf(format, args...)}
}

// UnknownTypeError reports a factory tag with no registered
// deserializer.
type UnknownTypeError struct{ cause error }

func (e *UnknownTypeError) Error() string { return e.cause.Error() }
func (e *UnknownTypeError) Unwrap() error { return e.cause }

func unknownTypeErrorf(format string, args ...interface{}) error {
	return &UnknownTypeError{cause: errors.Errorf(format, args...)}
}

// JSONFormatError reports JSON that does not match the shape a
// container's fromJsonFragment expects.
type JSONFormatError struct{ cause error }

func (e *JSONFormatError) Error() string { return e.cause.Error() }
func (e *JSONFormatError) Unwrap() error { return e.cause }

func jsonFormatErrorf(format string, args ...interface{}) error {
	return &JSONFormatError{cause: errors.Errorf(format, args...)}
}

func wrapJSONFormat(err error, context string) error {
	if err == nil {
		return nil
	}
	return &JSONFormatError{cause: errors.Wrap(err, context)}
}

// errFillPastTense is returned by Fill on an aggregator deserialized
// from JSON, which carries no quantity/selection closure to extract a
// value from a live datum.
var errFillPastTense = structureMismatchf("cannot fill a past-tense aggregator: it was deserialized without a fill rule")
