package channel

import (
	"sort"

	"Broadcast-Apps/internal/identity"
)

// Registry is the set of subscribed identities.
type Registry struct {
	members map[identity.ID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{members: make(map[identity.ID]struct{})}
}

// Add is a no-op when id is already subscribed.
func (r *Registry) Add(id identity.ID) {
	r.members[id] = struct{}{}
}

// Remove is a no-op when id is not subscribed.
func (r *Registry) Remove(id identity.ID) {
	delete(r.members, id)
}

func (r *Registry) Contains(id identity.ID) bool {
	_, ok := r.members[id]
	return ok
}

func (r *Registry) Len() int {
	return len(r.members)
}

// Snapshot lists subscribers in ascending identity order, independent of insertion history.
func (r *Registry) Snapshot() []identity.ID {
	out := make([]identity.ID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
