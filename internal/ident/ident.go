// Package ident issues record identifiers.
package ident

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Record prefixes kept from the browser data format.
const (
	Attendance   = "att"
	Grade        = "grade"
	Notification = "notif"
	Audit        = "audit"
	User         = "user"
)

// Generator issues unique identifiers with a prefix.
type Generator interface {
	New(prefix string) string
}

// UUID issues prefix_<uuid v4> identifiers.
type UUID struct{}

// New returns a new identifier.
func (UUID) New(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Sequence issues prefix_1, prefix_2, ... and is meant for tests.
type Sequence struct {
	mu   sync.Mutex
	next map[string]int
}

// New returns the next identifier for prefix.
func (s *Sequence) New(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == nil {
		s.next = make(map[string]int)
	}
	s.next[prefix]++
	return fmt.Sprintf("%s_%d", prefix, s.next[prefix])
}
