package session

import "sync"

// serialWorker runs background tasks on a single goroutine in submission
// order. Submission happens from arbitrary producer goroutines, so
// cross-session ordering is FIFO-by-submission. This goroutine is distinct
// from the event delivery goroutine; a task's eventual Done/Failed emission
// is handed to the delivery queue like any other.
//
// There is no cancellation of submitted tasks: a task racing a session's
// cancellation resolves as a no-op through the terminal-state guards.
type serialWorker struct {
	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup

	tasks chan func()
	done  chan struct{}
}

func newSerialWorker(depth int) *serialWorker {
	if depth <= 0 {
		depth = 16
	}
	w := &serialWorker{
		tasks: make(chan func(), depth),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// submit enqueues a task, reporting false when the worker has shut down.
func (w *serialWorker) submit(task func()) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending.Add(1)
	w.mu.Unlock()

	w.tasks <- task
	w.pending.Done()
	return true
}

func (w *serialWorker) run() {
	defer close(w.done)
	for task := range w.tasks {
		task()
	}
}

// close stops intake, waits for in-flight submissions, and drains the queue.
func (w *serialWorker) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.pending.Wait()
	close(w.tasks)
	<-w.done
}
