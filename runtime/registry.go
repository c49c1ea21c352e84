package runtime

import (
	"chat-relay/domain/chat"
	"strconv"
	"sync"
)

// Registry is the single source of truth for display name uniqueness.
// It maps a claimed name to the session holding it.
type Registry struct {
	mu    sync.Mutex
	Names map[string]chat.SessionID
	// reserved names are never assigned to a session, a claim on one gets a suffix.
	reserved map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		Names:    make(map[string]chat.SessionID),
		reserved: map[string]struct{}{chat.SystemSender: {}},
	}
}

// TryClaim assigns requested to the session when it is free, otherwise the first free
// candidate among requested+"1", requested+"2", ...
// Lookup and commit happen under the same lock, so two claims for the same base name
// never receive the same result.
func (r *Registry) TryClaim(requested string, id chat.SessionID) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	assigned := requested
	for suffix := 1; r.contains(assigned) || r.isReserved(assigned); suffix++ {
		assigned = requested + strconv.Itoa(suffix)
	}
	r.Names[assigned] = id
	return assigned
}

// Release frees the name. Releasing an absent name is a no-op.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Names, name)
}

func (r *Registry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contains(name)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Names)
}

func (r *Registry) contains(name string) bool {
	_, ok := r.Names[name]
	return ok
}

func (r *Registry) isReserved(name string) bool {
	_, ok := r.reserved[name]
	return ok
}
