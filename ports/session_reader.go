package ports

import (
	"io"

	"ramplab/domain/session"
)

// SessionReader parses a recorded test session from an external format
type SessionReader interface {
	// ReadSession decodes one session from r. Implementations validate
	// channel monotonicity via the domain constructor before returning.
	ReadSession(r io.Reader) (*session.Session, error)
}
