package channel

import (
	"time"

	"Broadcast-Apps/internal/identity"
)

// State is the single channel instance: owner, metadata, subscribers and history.
// It holds no lock; callers serialize access.
type State struct {
	initialized bool
	owner       identity.ID
	name        string
	description string

	subscribers *Registry
	messages    *MessageLog
	now         func() time.Time
}

type Option func(*State)

// WithClock overrides the clock used to timestamp posts.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// NewState returns an uninitialized channel whose history keeps capacity posts
// (see NewMessageLog for the meaning of zero and negative values).
func NewState(capacity int, opts ...Option) *State {
	s := &State{
		subscribers: NewRegistry(),
		messages:    NewMessageLog(capacity),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize sets the owner and metadata exactly once, records the creation post and
// subscribes the owner.
func (s *State) Initialize(owner identity.ID, name, description string) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.owner = owner
	s.name = name
	s.description = description
	s.messages.Append(creationPost(name, s.now()))
	s.subscribers.Add(owner)
	return nil
}

func (s *State) Initialized() bool {
	return s.initialized
}

func (s *State) IsOwner(id identity.ID) bool {
	return s.initialized && id == s.owner
}

func (s *State) Owner() identity.ID {
	return s.owner
}

func (s *State) Name() string {
	return s.name
}

func (s *State) Description() string {
	return s.description
}

func (s *State) Subscribers() *Registry {
	return s.subscribers
}

func (s *State) Messages() *MessageLog {
	return s.messages
}

// Metadata reports name, description and owner; placeholders before initialization.
func (s *State) Metadata() Metadata {
	return Metadata{Name: s.name, Description: s.description, Owner: s.owner}
}
