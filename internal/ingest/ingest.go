// Package ingest defines the contract for reading messages out of a
// mailbox source and turning them into the canonical message shape.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mailscope/internal/model"
)

// ConnectionError indicates the mailbox source is unreachable: a
// missing folder, an unreachable server, or a refused login.
type ConnectionError struct {
	// Source names the mailbox or folder involved.
	Source string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection error (%s): %v", e.Source, e.Err)
	}
	return fmt.Sprintf("connection error (%s)", e.Source)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err (or any error in its chain) is
// a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// Ingestor reads messages from one mailbox source.
type Ingestor interface {
	// Messages returns a lazy iterator over the messages in folder,
	// newest ordering left to the source. A non-positive limit means no
	// limit. A missing folder is a ConnectionError.
	Messages(ctx context.Context, folder string, limit int) (*Iter, error)

	// Search returns a lazy iterator over the folder's messages whose
	// subject or body contains query, case-insensitively.
	Search(ctx context.Context, folder, query string) (*Iter, error)

	// Folders lists the folder names available in the source.
	Folders(ctx context.Context) ([]string, error)
}

// Iter yields messages one at a time with no pre-buffering. It is
// finite and single-use: once Next reports done or an error, the
// iterator stays exhausted. Callers needing a second pass must obtain
// a fresh iterator.
type Iter struct {
	next func() (model.Message, bool, error)
	done bool
}

// NewIter wraps a pull function into an iterator. The function returns
// the next message, whether one was produced, and any error; after the
// first false or error it is not called again.
func NewIter(next func() (model.Message, bool, error)) *Iter {
	return &Iter{next: next}
}

// Next produces the next message. ok=false with a nil error means the
// sequence ended cleanly; a non-nil error ends the sequence too.
func (it *Iter) Next() (model.Message, bool, error) {
	if it.done {
		return nil, false, nil
	}

	msg, ok, err := it.next()
	if !ok || err != nil {
		it.done = true
		return nil, false, err
	}
	return msg, true, nil
}

// Collect drains the iterator into a slice. A parse or connection
// error aborts the whole listing; messages yielded before the error
// are discarded along with it.
func Collect(it *Iter) ([]model.Message, error) {
	var msgs []model.Message
	for {
		msg, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return msgs, nil
		}
		msgs = append(msgs, msg)
	}
}
