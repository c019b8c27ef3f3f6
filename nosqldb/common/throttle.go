//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package common provides the admission throttlers shared by all requests of
// a session.
package common

import (
	"container/list"
	"fmt"

	"github.com/oracle/nosql-go-driver/nosqldb/logger"
	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
)

// Names of the built-in throttlers, as used in configuration.
const (
	PassThrough         = "pass-through"
	ConcurrencyLimiting = "concurrency-limiting"
	RateLimiting        = "rate-limiting"
)

// Throttled is implemented by a request that needs to be admitted by a
// RequestThrottler before it starts executing.
//
// The throttler may invoke these callbacks while holding its internal lock,
// so implementations must return quickly and must not call back into the
// throttler.
type Throttled interface {
	// OnThrottleReady is invoked when the request is allowed to proceed.
	// wasDelayed reports whether the request had to wait in the queue.
	OnThrottleReady(wasDelayed bool)

	// OnThrottleFailure is invoked when the request cannot be admitted,
	// either because the queue is full or because the throttler is closed.
	// A request that received OnThrottleFailure must not be signalled.
	OnThrottleFailure(err error)
}

// RequestThrottler limits the number of requests that a session executes at
// the same time.
//
// Each registered request must be signalled exactly once, using exactly one
// of SignalSuccess, SignalError or SignalTimeout. Signalling a request that is
// unknown to the throttler, or signalling it twice, is reported as an
// IllegalState error.
//
// A Throttled value is used as a map key by the throttlers, so it must be
// comparable; pointer receivers are the usual choice.
//
// # Thread safety
//
// All implementations are safe for concurrent use by multiple goroutines.
type RequestThrottler interface {
	// Register registers a new request to be throttled. The throttler will
	// invoke Throttled.OnThrottleReady when the request is allowed to proceed,
	// possibly before Register returns.
	//
	// Registering a request that is already registered fails it with an
	// IllegalState error through OnThrottleFailure; the first registration
	// is left unchanged and must still be signalled.
	Register(t Throttled)

	// SignalSuccess signals that a request has succeeded. This indicates to
	// the throttler that another request might be started.
	SignalSuccess(t Throttled) error

	// SignalError signals that a request has failed. This indicates to the
	// throttler that another request might be started.
	SignalError(t Throttled, err error) error

	// SignalTimeout signals that a request has timed out. This indicates to
	// the throttler that this request has stopped (if it was running
	// already), or that it doesn't need to be started in the future.
	//
	// Requests are responsible for handling their own timeout. The throttler
	// does not perform time-based eviction on pending requests.
	SignalTimeout(t Throttled) error

	// Stats returns a snapshot of the throttler's bookkeeping.
	Stats() ThrottleStats

	// Close fails every pending request with a ClientClosed error. No new
	// requests are accepted afterwards. Requests that are already running
	// must still be signalled.
	Close() error
}

// ThrottleStats is a snapshot of a throttler's bookkeeping.
//
// Running+Queued always equals Outstanding, the number of registered
// requests that have not been signalled yet.
type ThrottleStats struct {
	Running     int
	Queued      int
	Outstanding int
}

func (s ThrottleStats) String() string {
	return fmt.Sprintf("running=%d queued=%d outstanding=%d", s.Running, s.Queued, s.Outstanding)
}

// ticket is the throttler's record of one registered request. elem is nil
// once the request is running.
type ticket struct {
	elem *list.Element
}

// admissionBook holds the FIFO queue and ticket states shared by the
// throttler implementations. It is not safe for concurrent use; every method
// must be called with the owning throttler's lock held.
type admissionBook struct {
	kind         string
	maxQueueSize int
	queue        *list.List
	tickets      map[Throttled]*ticket
	running      int
	logger       *logger.Logger
}

func newAdmissionBook(kind string, maxQueueSize int, lgr *logger.Logger) admissionBook {
	return admissionBook{
		kind:         kind,
		maxQueueSize: maxQueueSize,
		queue:        list.New(),
		tickets:      make(map[Throttled]*ticket),
		logger:       lgr,
	}
}

// rejectDuplicate fails t with an IllegalState error if it is already
// registered, and reports whether it did.
func (b *admissionBook) rejectDuplicate(t Throttled) bool {
	if _, ok := b.tickets[t]; !ok {
		return false
	}
	err := nosqlerr.NewIllegalState("%s throttler got a request that is already registered", b.kind)
	b.logger.Error("%v", err)
	b.reject(t, "duplicate", err)
	return true
}

// admit marks t as running and notifies it.
func (b *admissionBook) admit(t Throttled, wasDelayed bool) {
	b.tickets[t] = &ticket{}
	b.running++
	metrics.running.WithLabelValues(b.kind).Inc()
	t.OnThrottleReady(wasDelayed)
}

// enqueue appends t to the queue. It returns false, after failing t with a
// CapacityExceeded error, if the queue is full.
func (b *admissionBook) enqueue(t Throttled) bool {
	if b.queue.Len() >= b.maxQueueSize {
		b.reject(t, "capacity", nosqlerr.New(nosqlerr.CapacityExceeded,
			"the request queue has reached its maximum size of %d", b.maxQueueSize))
		return false
	}
	b.tickets[t] = &ticket{elem: b.queue.PushBack(t)}
	metrics.queued.WithLabelValues(b.kind).Inc()
	b.logger.Fine("%s throttler queued a request: %v", b.kind, b.stats())
	return true
}

// admitNext moves the head of the queue to running and notifies it. It
// returns false if the queue is empty.
func (b *admissionBook) admitNext() bool {
	front := b.queue.Front()
	if front == nil {
		return false
	}
	t := b.queue.Remove(front).(Throttled)
	metrics.queued.WithLabelValues(b.kind).Dec()
	b.tickets[t].elem = nil
	b.running++
	metrics.running.WithLabelValues(b.kind).Inc()
	t.OnThrottleReady(true)
	return true
}

// release forgets t, removing it from the queue if it is still queued. It
// returns an IllegalState error if t is not registered.
func (b *admissionBook) release(t Throttled, signal string) error {
	tk, ok := b.tickets[t]
	if !ok {
		metrics.doubleSignals.WithLabelValues(b.kind).Inc()
		err := nosqlerr.NewIllegalState("%s throttler got %s signal for a request "+
			"that is not registered or was already signalled", b.kind, signal)
		b.logger.Error("%v", err)
		return err
	}

	delete(b.tickets, t)
	if tk.elem != nil {
		b.queue.Remove(tk.elem)
		metrics.queued.WithLabelValues(b.kind).Dec()
		return nil
	}
	b.running--
	metrics.running.WithLabelValues(b.kind).Dec()
	return nil
}

// reject fails a request that was never registered.
func (b *admissionBook) reject(t Throttled, reason string, err error) {
	metrics.rejected.WithLabelValues(b.kind, reason).Inc()
	b.logger.Debug("%s throttler rejected a request: %v", b.kind, err)
	t.OnThrottleFailure(err)
}

// failQueued fails every queued request with err and forgets it.
func (b *admissionBook) failQueued(err error) {
	for e := b.queue.Front(); e != nil; e = b.queue.Front() {
		t := b.queue.Remove(e).(Throttled)
		delete(b.tickets, t)
		metrics.queued.WithLabelValues(b.kind).Dec()
		metrics.rejected.WithLabelValues(b.kind, "closed").Inc()
		t.OnThrottleFailure(err)
	}
}

func (b *admissionBook) stats() ThrottleStats {
	return ThrottleStats{
		Running:     b.running,
		Queued:      b.queue.Len(),
		Outstanding: len(b.tickets),
	}
}

func errThrottlerClosed(kind string) error {
	return nosqlerr.New(nosqlerr.ClientClosed, "the %s throttler is closed", kind)
}
