package auth

import "sync"

// queuedRequest is one pending authentication request. invoke runs the full
// backend exchange and must not return until it completed; reject delivers a
// failure without touching the backend.
type queuedRequest interface {
	invoke(backend Backend)
	reject(authErr *AuthError)
}

// dispatcher serializes backend invocations: submissions from any goroutine
// land on one unbounded FIFO drained by a single worker, so no two backend
// calls ever overlap and ordering is submission order across all request
// variants. The upstream server and SIM are single-session; overlapping
// EAP-AKA exchanges would corrupt the server-side challenge state.
type dispatcher struct {
	backend Backend

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []queuedRequest
	closed bool
	done   chan struct{}
}

func newDispatcher(backend Backend) *dispatcher {
	d := &dispatcher{
		backend: backend,
		done:    make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// submit enqueues a request without blocking. It reports false once the
// dispatcher is closed.
func (d *dispatcher) submit(r queuedRequest) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	d.queue = append(d.queue, r)
	d.cond.Signal()
	return true
}

func (d *dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			pending := d.queue
			d.queue = nil
			d.mu.Unlock()
			for _, r := range pending {
				r.reject(newAuthError(ErrorServiceUnavailable, "authentication library closed"))
			}
			return
		}
		r := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		r.invoke(d.backend)
	}
}

// close stops the worker. Requests still queued are rejected with
// ErrorServiceUnavailable; the in-flight request, if any, runs to completion.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.done
}
