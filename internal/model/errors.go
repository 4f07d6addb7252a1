package model

import (
	"errors"
	"fmt"
)

// ParseError indicates malformed message data: an unreadable mailbox
// file, undecodable content, or an attachment entry missing a required
// field.
type ParseError struct {
	// File is the mailbox file involved, when known.
	File string

	// Reason describes what was malformed.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.File != "" {
		msg = fmt.Sprintf("%s: %s", e.File, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", msg, e.Err)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err (or any error in its chain) is a ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}
