package peer

import (
	"errors"
	"fmt"
)

var (
	ErrPeerLeft         = errors.New("peer left the room")
	ErrConnectionLost   = errors.New("media connection lost")
	ErrEngineClosed     = errors.New("engine closed")
	ErrDuplicateSession = errors.New("session already exists for peer")
	ErrUnexpectedAnswer = errors.New("answer without a pending offer")
	ErrUnexpectedOffer  = errors.New("offer for a session past negotiation")
)

// SessionError wraps a failure in one peer's negotiation with the
// operation that produced it.
type SessionError struct {
	Op   string
	Peer string
	Err  error
}

func (e *SessionError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s (peer %s): %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func newError(op, peer string, err error) *SessionError {
	return &SessionError{Op: op, Peer: peer, Err: err}
}
