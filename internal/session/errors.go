package session

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is invoked on a session that
	// has already left the created state. The first start's effects stand.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotStarted is returned by operations that require a started,
	// non-terminal session.
	ErrNotStarted = errors.New("session not started")

	// ErrUnknownSession is returned by lookups for identifiers with no
	// registered session.
	ErrUnknownSession = errors.New("unknown session")

	// ErrIdentifierInUse is returned when a start would register an
	// identifier another started session already holds.
	ErrIdentifierInUse = errors.New("identifier already held by a started session")

	// ErrManagerClosed is returned when background work is submitted after
	// the manager shut down.
	ErrManagerClosed = errors.New("session manager closed")
)
