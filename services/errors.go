package services

import (
	"errors"

	"numberrush/protocol"
)

var (
	ErrMatchFull       = errors.New("match is full")
	ErrMatchNotWaiting = errors.New("match is not accepting players")
	ErrMatchClosed     = errors.New("match is closed")
	ErrNotInMatch      = errors.New("player is not in a match")
	ErrShuttingDown    = errors.New("server is shutting down")
)

// undelivered reports whether err means the match never answered the
// request, leaving the reply to the caller.
func undelivered(err error) bool {
	return errors.Is(err, ErrNotInMatch) || errors.Is(err, ErrMatchClosed)
}

// undeliveredReason maps an undelivered error onto its wire reason.
func undeliveredReason(err error) string {
	if errors.Is(err, ErrMatchClosed) {
		return protocol.ReasonNotActive
	}
	return protocol.ReasonNotInMatch
}
