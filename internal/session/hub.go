package session

import "sync"

// Listener observes capture session lifecycle events.
//
// All callbacks run on one dedicated delivery goroutine: they never execute
// concurrently with each other, events for a given session arrive in the
// order their triggering operations completed, and implementations need not
// be thread-safe. For Done events the identifier is also the final media
// location, since finalization promotes the placeholder in place.
type Listener interface {
	OnQueued(id string)
	OnProgress(id string, percent int)
	OnDone(id string)
	OnFailed(id string, reason string)
	OnUpdated(id string)
}

type eventKind int

const (
	evQueued eventKind = iota
	evProgress
	evDone
	evFailed
	evUpdated
)

type event struct {
	kind    eventKind
	id      string
	percent int
	reason  string

	// listeners is the snapshot taken at enqueue time; add/remove during
	// in-flight delivery affects only future events.
	listeners []Listener
}

// listenerHub fans lifecycle events out to registered listeners.
//
// The listener set has its own lock, distinct from the queue lock, so
// registration never blocks on event dispatch. Emission appends to an
// unbounded queue drained by a single goroutine, so producers holding a
// session lock never wait on listener execution.
type listenerHub struct {
	mu        sync.Mutex
	listeners []Listener

	qmu    sync.Mutex
	cond   *sync.Cond
	queue  []event
	closed bool
	done   chan struct{}
}

func newListenerHub(depthHint int) *listenerHub {
	if depthHint <= 0 {
		depthHint = 64
	}
	h := &listenerHub{
		queue: make([]event, 0, depthHint),
		done:  make(chan struct{}),
	}
	h.cond = sync.NewCond(&h.qmu)
	go h.deliver()
	return h
}

func (h *listenerHub) add(listener Listener) {
	if listener == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, listener)
}

func (h *listenerHub) remove(listener Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.listeners {
		if existing == listener {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}

func (h *listenerHub) snapshot() []Listener {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.listeners) == 0 {
		return nil
	}
	cp := make([]Listener, len(h.listeners))
	copy(cp, h.listeners)
	return cp
}

func (h *listenerHub) emit(ev event) {
	ev.listeners = h.snapshot()

	h.qmu.Lock()
	defer h.qmu.Unlock()
	if h.closed {
		return
	}
	h.queue = append(h.queue, ev)
	h.cond.Signal()
}

func (h *listenerHub) deliver() {
	defer close(h.done)
	for {
		h.qmu.Lock()
		for len(h.queue) == 0 && !h.closed {
			h.cond.Wait()
		}
		if len(h.queue) == 0 {
			h.qmu.Unlock()
			return
		}
		ev := h.queue[0]
		h.queue = h.queue[1:]
		h.qmu.Unlock()

		for _, listener := range ev.listeners {
			switch ev.kind {
			case evQueued:
				listener.OnQueued(ev.id)
			case evProgress:
				listener.OnProgress(ev.id, ev.percent)
			case evDone:
				listener.OnDone(ev.id)
			case evFailed:
				listener.OnFailed(ev.id, ev.reason)
			case evUpdated:
				listener.OnUpdated(ev.id)
			}
		}
	}
}

// close stops intake and waits for queued events to drain.
func (h *listenerHub) close() {
	h.qmu.Lock()
	if h.closed {
		h.qmu.Unlock()
		<-h.done
		return
	}
	h.closed = true
	h.cond.Broadcast()
	h.qmu.Unlock()
	<-h.done
}
