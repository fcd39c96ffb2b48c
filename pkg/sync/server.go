// Package sync manages the bi-directional replication connection
// between the local store and a remote peer: explicit start, stop,
// pause and offline transitions, with lifecycle callbacks for the
// application's sync status surface.
package sync

import "strings"

// Server identifies a replication target. A zero value means "no
// server configured".
type Server struct {
	Name     string
	Username string
	Password string
}

// Normalize canonicalizes a server so equal configurations compare
// equal: a blank name means no server at all, and a password without a
// username is discarded.
func (s Server) Normalize() Server {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return Server{}
	}
	out := Server{Name: name}
	if strings.TrimSpace(s.Username) != "" {
		out.Username = s.Username
		out.Password = s.Password
	}
	return out
}

// Configured reports whether a target is set, after normalization.
func (s Server) Configured() bool {
	return s.Normalize().Name != ""
}

// Equal compares two servers under normalization, so setting the same
// server twice is detectable as a no-op.
func (s Server) Equal(other Server) bool {
	return s.Normalize() == other.Normalize()
}
