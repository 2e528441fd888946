// Package session implements the lifecycle state machine both a client
// and a server drive, symmetrically, from opposite ends:
// Uninitialized -> Initializing -> Active -> ShuttingDown -> Exited.
package session

import (
	"fmt"
	"sync"

	"github.com/Adiao1973/mcprotocol-go/protocol"
)

// State is one stage of the lifecycle state machine.
type State int

const (
	Uninitialized State = iota
	Initializing
	Active
	ShuttingDown
	Exited
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Active:
		return "active"
	case ShuttingDown:
		return "shutting_down"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// Session tracks one peer's view of the lifecycle state machine, the set
// of request ids already seen (for uniqueness checking), and the
// capabilities/info exchanged during the initialize handshake. The same
// type drives both the client side and the server side; which methods get
// called depends on which end the embedding code represents.
type Session struct {
	Role protocol.Role

	mu          sync.Mutex
	state       State
	usedIDs     map[string]struct{}
	peerInfo    *protocol.ImplementationInfo
	peerCaps    interface{}
	negVersion  string
}

// New creates a session in the Uninitialized state.
func New(role protocol.Role) *Session {
	return &Session{
		Role:    role,
		state:   Uninitialized,
		usedIDs: make(map[string]struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition enforces the state machine's allowed edges.
func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := map[State][]State{
		Uninitialized: {Initializing},
		Initializing:  {Active, Uninitialized},
		Active:        {ShuttingDown},
		ShuttingDown:  {Exited},
		Exited:        {},
	}

	for _, ok := range allowed[s.state] {
		if ok == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("session: illegal transition from %s to %s", s.state, to)
}

// BeginInitialize moves Uninitialized -> Initializing. Called by a client
// right before it sends "initialize", or by a server right after it
// receives one.
func (s *Session) BeginInitialize() error {
	return s.transition(Initializing)
}

// CompleteInitialize moves Initializing -> Active and records the peer's
// advertised info. Called after a successful handshake.
func (s *Session) CompleteInitialize(peerInfo protocol.ImplementationInfo, peerCaps interface{}, negotiatedVersion string) error {
	if err := s.transition(Active); err != nil {
		return err
	}
	s.mu.Lock()
	s.peerInfo = &peerInfo
	s.peerCaps = peerCaps
	s.negVersion = negotiatedVersion
	s.mu.Unlock()
	return nil
}

// AbortInitialize moves Initializing back to Uninitialized, used when the
// protocol version negotiation fails and no "initialized" notification
// will be sent.
func (s *Session) AbortInitialize() error {
	return s.transition(Uninitialized)
}

// BeginShutdown moves Active -> ShuttingDown.
func (s *Session) BeginShutdown() error {
	return s.transition(ShuttingDown)
}

// CompleteExit moves ShuttingDown -> Exited.
func (s *Session) CompleteExit() error {
	return s.transition(Exited)
}

// PeerInfo returns the peer's advertised implementation info, if the
// handshake has completed.
func (s *Session) PeerInfo() (protocol.ImplementationInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peerInfo == nil {
		return protocol.ImplementationInfo{}, false
	}
	return *s.peerInfo, true
}

// NegotiatedVersion returns the protocol version settled on during the
// handshake.
func (s *Session) NegotiatedVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negVersion
}

// RecordRequestID registers id as seen and reports whether it was already
// in use -- two request ids collide whenever their canonical projections
// match, e.g. the integer 1 and the string "1".
func (s *Session) RecordRequestID(id protocol.RequestID) (alreadyUsed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.Canonical()
	if _, ok := s.usedIDs[key]; ok {
		return true
	}
	s.usedIDs[key] = struct{}{}
	return false
}
