package channel

import (
	"sync"

	"github.com/Comanx/go-fetch/internal/interfaces"
	"github.com/Comanx/go-fetch/internal/ring"
)

// worker owns the thread-side queue pair of one channel. The inbox lock
// also guards the stop flag so the condition wait has a single monitor.
type worker struct {
	ch *Channel

	inboxMu   sync.Mutex
	inboxCond *sync.Cond
	inbox     *ring.Buffer[interfaces.Handle]
	stop      bool // guarded by inboxMu

	outboxMu sync.Mutex
	outbox   *ring.Buffer[interfaces.Handle]

	wg sync.WaitGroup
}

func newWorker(c *Channel, lanes int) *worker {
	w := &worker{
		ch:     c,
		inbox:  ring.New[interfaces.Handle](lanes),
		outbox: ring.New[interfaces.Handle](lanes),
	}
	w.inboxCond = sync.NewCond(&w.inboxMu)
	w.wg.Add(1)
	go w.loop()
	return w
}

// enqueueIncoming drains src into the inbox and wakes the worker. Called
// from the engine goroutine.
func (w *worker) enqueueIncoming(src *ring.Buffer[interfaces.Handle]) {
	w.inboxMu.Lock()
	for !src.Empty() && !w.inbox.Full() {
		w.inbox.Enqueue(src.Dequeue())
	}
	w.inboxMu.Unlock()
	w.inboxCond.Signal()
}

// dequeueIncoming blocks until an id is available or stop is requested. It
// returns 0 on stop.
func (w *worker) dequeueIncoming() interfaces.Handle {
	w.inboxMu.Lock()
	defer w.inboxMu.Unlock()
	for w.inbox.Empty() && !w.stop {
		w.inboxCond.Wait()
	}
	if w.stop {
		return 0
	}
	return w.inbox.Dequeue()
}

// enqueueOutgoing hands a processed id back. Called from the worker
// goroutine.
func (w *worker) enqueueOutgoing(id interfaces.Handle) {
	w.outboxMu.Lock()
	w.outbox.Enqueue(id)
	w.outboxMu.Unlock()
}

// dequeueOutgoing drains the outbox into dst. Called from the engine
// goroutine.
func (w *worker) dequeueOutgoing(dst *ring.Buffer[interfaces.Handle]) {
	w.outboxMu.Lock()
	for !w.outbox.Empty() && !dst.Full() {
		dst.Enqueue(w.outbox.Dequeue())
	}
	w.outboxMu.Unlock()
}

// requestStop marks the worker for shutdown and wakes it.
func (w *worker) requestStop() {
	w.inboxMu.Lock()
	w.stop = true
	w.inboxMu.Unlock()
	w.inboxCond.Signal()
}

// join stops the worker and waits for its goroutine to exit.
func (w *worker) join() {
	w.requestStop()
	w.wg.Wait()
}

// loop is the worker goroutine: blocking dequeue, process, hand back.
func (w *worker) loop() {
	defer w.wg.Done()
	if l := w.ch.logger; l != nil {
		l.Debugf("channel %d: worker started", w.ch.index)
	}
	for {
		id := w.dequeueIncoming()
		if id == 0 {
			break
		}
		w.ch.process(id)
		w.enqueueOutgoing(id)
	}
	if l := w.ch.logger; l != nil {
		l.Debugf("channel %d: worker stopped", w.ch.index)
	}
}
