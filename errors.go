package redistx

import (
	"errors"
	"fmt"
	"net"
)

// CapabilityError is returned when the underlying client cannot run
// transactions at all: the connection aggregates multiple nodes, or the
// command profile lacks a required command.
type CapabilityError struct {
	Reason string
}

func (e *CapabilityError) Error() string {
	return e.Reason
}

// StateError is returned on protocol ordering violations such as sending
// WATCH after MULTI, calling Execute from inside a transaction block, or
// mixing the fluent and block styles in one transaction.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return e.Reason
}

// ArgumentError is returned on caller misuse that is detectable before any
// command is sent, such as configuring retries without a block.
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string {
	return e.Reason
}

// ProtocolError is returned when a server reply does not match what the
// transaction protocol requires (a missing +QUEUED ack, a reply array whose
// length disagrees with the pending queue). It is a communication failure:
// once it happens the connection state is no longer trustworthy.
type ProtocolError struct {
	Addr   string
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Addr == "" {
		return "protocol error: " + e.Reason
	}
	return fmt.Sprintf("protocol error on %s: %s", e.Addr, e.Reason)
}

// AbortError is returned when EXEC reported that the server aborted the
// transaction (a watched key changed) and no retries remain. Tx is the
// session that aborted, kept so the caller can inspect or restart it.
type AbortError struct {
	Tx *Tx
}

func (e *AbortError) Error() string {
	return "transaction aborted by the server"
}

// ServerError carries the message of an error reply the server produced for
// one of the queued commands.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// discardOnBlockError decides whether a failed transaction block should also
// discard the transaction. Communication failures and server command errors
// are handed back as-is so the caller can inspect the queued state; anything
// else abandons whatever was queued before the failure.
func discardOnBlockError(err error) bool {
	var protoErr *ProtocolError
	var srvErr *ServerError
	var netErr net.Error
	if errors.As(err, &protoErr) || errors.As(err, &srvErr) || errors.As(err, &netErr) {
		return false
	}
	return true
}
