package auth

import "sync"

// Operation names the three request variants.
type Operation int

const (
	OpEapAkaAuth Operation = iota
	OpOidcAuthServer
	OpOidcAuth
)

func (o Operation) String() string {
	switch o {
	case OpEapAkaAuth:
		return "eap_aka_auth"
	case OpOidcAuthServer:
		return "oidc_auth_server"
	case OpOidcAuth:
		return "oidc_auth"
	default:
		return "unknown"
	}
}

// Event describes the completion of one authentication request, successful or
// not. Err is nil on success.
type Event struct {
	Op      Operation
	AppName string
	Err     *AuthError
}

// Listener observes request completions.
type Listener func(Event)

// ListenerHandle identifies a registered listener for later removal.
type ListenerHandle uint64

// listenerRegistry maps handles to listeners. It is owned by the Library
// instance; there is no process-wide registration state.
type listenerRegistry struct {
	mu        sync.Mutex
	next      ListenerHandle
	listeners map[ListenerHandle]Listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		listeners: make(map[ListenerHandle]Listener),
	}
}

func (r *listenerRegistry) add(l Listener) ListenerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	handle := r.next
	r.listeners[handle] = l
	return handle
}

func (r *listenerRegistry) remove(h ListenerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.listeners, h)
}

func (r *listenerRegistry) notify(e Event) {
	r.mu.Lock()
	snapshot := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		snapshot = append(snapshot, l)
	}
	r.mu.Unlock()

	for _, l := range snapshot {
		l(e)
	}
}
