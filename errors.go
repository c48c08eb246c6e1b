package spantree

import "errors"

// Sentinel errors for the link/core error taxonomy. Wrap with fmt.Errorf
// ("%w") when more context is useful; callers should compare with
// errors.Is, not string matching.
var (
	// ErrAuthFailure means the uplink's recvpass did not match our
	// configured recvpass. Fatal: the link must be torn down.
	ErrAuthFailure = errors.New("spantree: recvpass mismatch")

	// ErrProtocolTooOld means the peer advertised a PROTOCOL version
	// below the minimum this package speaks. Fatal.
	ErrProtocolTooOld = errors.New("spantree: peer protocol version too old")

	// ErrProtocolError means a line could not be parsed at all. Fatal.
	ErrProtocolError = errors.New("spantree: malformed protocol line")

	// ErrNotInternal means an outbound operation was invoked with a
	// source that isn't one of our own pseudo-clients/pseudo-servers.
	ErrNotInternal = errors.New("spantree: source is not an internal pseudo-client/server")

	// ErrUnknownTarget means an outbound operation referenced a
	// UID/SID/channel that the Network Store doesn't know about.
	ErrUnknownTarget = errors.New("spantree: unknown target")

	// ErrIdentifierExhausted means a SID or UID generator ran out of
	// values in its alphabet.
	ErrIdentifierExhausted = errors.New("spantree: identifier space exhausted")

	// ErrInvalidArgument means a validator rejected an argument (bad
	// nick/server name, duplicate SID/name, ...).
	ErrInvalidArgument = errors.New("spantree: invalid argument")

	// ErrNotImplemented marks operations the protocol core
	// deliberately does not support yet (numericServer, unknown
	// updateClient fields).
	ErrNotImplemented = errors.New("spantree: not implemented")
)
