//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package common

import (
	"sync"

	"github.com/oracle/nosql-go-driver/nosqldb/logger"
	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
)

// ConcurrencyLimitingThrottler is a RequestThrottler that limits the number
// of requests that run at the same time.
//
// A request is admitted as soon as it registers if fewer than
// MaxConcurrentRequests requests are running and no other request is waiting.
// Otherwise it is appended to a queue of at most MaxQueueSize requests and
// admitted in registration order as running requests are signalled. A
// request that registers while the queue is full is failed with a
// CapacityExceeded error.
type ConcurrencyLimitingThrottler struct {
	mu                    sync.Mutex
	maxConcurrentRequests int
	book                  admissionBook
	closed                bool
}

// NewConcurrencyLimitingThrottler creates a throttler that runs at most
// maxConcurrentRequests requests and queues at most maxQueueSize more.
func NewConcurrencyLimitingThrottler(maxConcurrentRequests, maxQueueSize int, lgr *logger.Logger) (*ConcurrencyLimitingThrottler, error) {
	if maxConcurrentRequests <= 0 {
		return nil, nosqlerr.NewIllegalArgument("maxConcurrentRequests must be greater than 0, got %d",
			maxConcurrentRequests)
	}
	if maxQueueSize < 0 {
		return nil, nosqlerr.NewIllegalArgument("maxQueueSize must be greater than or equal to 0, got %d",
			maxQueueSize)
	}

	return &ConcurrencyLimitingThrottler{
		maxConcurrentRequests: maxConcurrentRequests,
		book:                  newAdmissionBook(ConcurrencyLimiting, maxQueueSize, lgr),
	}, nil
}

// Register implements RequestThrottler.
func (th *ConcurrencyLimitingThrottler) Register(t Throttled) {
	th.mu.Lock()
	defer th.mu.Unlock()

	switch {
	case th.closed:
		th.book.reject(t, "closed", errThrottlerClosed(ConcurrencyLimiting))
	case th.book.rejectDuplicate(t):
	case th.book.running < th.maxConcurrentRequests && th.book.queue.Len() == 0:
		th.book.admit(t, false)
	default:
		th.book.enqueue(t)
	}
}

// SignalSuccess implements RequestThrottler.
func (th *ConcurrencyLimitingThrottler) SignalSuccess(t Throttled) error {
	return th.release(t, "success")
}

// SignalError implements RequestThrottler.
func (th *ConcurrencyLimitingThrottler) SignalError(t Throttled, err error) error {
	return th.release(t, "error")
}

// SignalTimeout implements RequestThrottler.
func (th *ConcurrencyLimitingThrottler) SignalTimeout(t Throttled) error {
	return th.release(t, "timeout")
}

func (th *ConcurrencyLimitingThrottler) release(t Throttled, signal string) error {
	th.mu.Lock()
	defer th.mu.Unlock()

	if err := th.book.release(t, signal); err != nil {
		return err
	}

	if !th.closed {
		for th.book.running < th.maxConcurrentRequests && th.book.admitNext() {
		}
	}
	return nil
}

// Stats implements RequestThrottler.
func (th *ConcurrencyLimitingThrottler) Stats() ThrottleStats {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.book.stats()
}

// Close implements RequestThrottler.
func (th *ConcurrencyLimitingThrottler) Close() error {
	th.mu.Lock()
	defer th.mu.Unlock()

	if th.closed {
		return nil
	}
	th.closed = true
	th.book.failQueued(errThrottlerClosed(ConcurrencyLimiting))
	return nil
}
