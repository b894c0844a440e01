// Package rerr defines the sentinel errors shared across the protocol,
// command, and replication layers so callers can branch with errors.Is
// instead of comparing strings.
package rerr

import "errors"

var (
	// ErrIncomplete means the buffer does not yet hold a full frame; the
	// caller should refill from the socket and retry decode.
	ErrIncomplete = errors.New("resp: incomplete frame")

	// ErrMalformed means the buffer's prefix cannot be parsed as a frame.
	ErrMalformed = errors.New("resp: malformed frame")

	// ErrUnknownCommand means a well-formed frame named a command this
	// server does not recognize.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrBadArguments means a recognized command had arguments that
	// failed validation (wrong count, bad type, unparsable number).
	ErrBadArguments = errors.New("command: bad arguments")

	// ErrProtocolMismatch means a reply received during the follower
	// handshake did not match what the state machine expected, or a
	// frame on the replication stream did not parse as a valid command.
	ErrProtocolMismatch = errors.New("replication: protocol mismatch")

	// ErrReadOnlyReplica is returned to a client that sends a write
	// command to a server currently in the follower role.
	ErrReadOnlyReplica = errors.New("READONLY You can't write against a read only replica")
)
