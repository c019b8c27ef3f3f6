//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package common

import (
	"sync"
	"time"

	"github.com/oracle/nosql-go-driver/nosqldb/logger"
	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
	"golang.org/x/time/rate"
)

// DefaultDrainInterval is the default interval at which a
// RateLimitingThrottler retries to admit queued requests.
const DefaultDrainInterval = 10 * time.Millisecond

// RateLimitingThrottler is a RequestThrottler that limits the rate at which
// requests are started.
//
// Up to MaxRequestsPerSecond requests are admitted per second, with bursts of
// the same size. Requests that exceed the rate are queued, up to MaxQueueSize,
// and admitted in registration order by a timer that fires every
// DrainInterval while the queue is not empty.
//
// Unlike ConcurrencyLimitingThrottler, signalling a request never admits
// another one directly; the rate alone controls admission.
type RateLimitingThrottler struct {
	mu            sync.Mutex
	limiter       *rate.Limiter
	drainInterval time.Duration
	drainTimer    *time.Timer
	book          admissionBook
	closed        bool
}

// NewRateLimitingThrottler creates a throttler that starts at most
// maxRequestsPerSecond requests per second and queues at most maxQueueSize
// requests. If drainInterval is 0, DefaultDrainInterval is used.
func NewRateLimitingThrottler(maxRequestsPerSecond, maxQueueSize int, drainInterval time.Duration, lgr *logger.Logger) (*RateLimitingThrottler, error) {
	if maxRequestsPerSecond <= 0 {
		return nil, nosqlerr.NewIllegalArgument("maxRequestsPerSecond must be greater than 0, got %d",
			maxRequestsPerSecond)
	}
	if maxQueueSize < 0 {
		return nil, nosqlerr.NewIllegalArgument("maxQueueSize must be greater than or equal to 0, got %d",
			maxQueueSize)
	}
	if drainInterval < 0 {
		return nil, nosqlerr.NewIllegalArgument("drainInterval must not be negative, got %v", drainInterval)
	}
	if drainInterval == 0 {
		drainInterval = DefaultDrainInterval
	}

	return &RateLimitingThrottler{
		limiter:       rate.NewLimiter(rate.Limit(maxRequestsPerSecond), maxRequestsPerSecond),
		drainInterval: drainInterval,
		book:          newAdmissionBook(RateLimiting, maxQueueSize, lgr),
	}, nil
}

// Register implements RequestThrottler.
func (th *RateLimitingThrottler) Register(t Throttled) {
	th.mu.Lock()
	defer th.mu.Unlock()

	switch {
	case th.closed:
		th.book.reject(t, "closed", errThrottlerClosed(RateLimiting))
	case th.book.rejectDuplicate(t):
	case th.book.queue.Len() == 0 && th.limiter.Allow():
		th.book.admit(t, false)
	default:
		if th.book.enqueue(t) {
			th.scheduleDrain()
		}
	}
}

// scheduleDrain arms the drain timer unless it is already armed. It must be
// called with th.mu held.
func (th *RateLimitingThrottler) scheduleDrain() {
	if th.drainTimer != nil {
		return
	}
	th.drainTimer = time.AfterFunc(th.drainInterval, th.drain)
}

func (th *RateLimitingThrottler) drain() {
	th.mu.Lock()
	defer th.mu.Unlock()

	th.drainTimer = nil
	if th.closed {
		return
	}

	for th.book.queue.Len() > 0 && th.limiter.Allow() {
		th.book.admitNext()
	}
	if th.book.queue.Len() > 0 {
		th.scheduleDrain()
	}
}

// SignalSuccess implements RequestThrottler.
func (th *RateLimitingThrottler) SignalSuccess(t Throttled) error {
	return th.release(t, "success")
}

// SignalError implements RequestThrottler.
func (th *RateLimitingThrottler) SignalError(t Throttled, err error) error {
	return th.release(t, "error")
}

// SignalTimeout implements RequestThrottler.
func (th *RateLimitingThrottler) SignalTimeout(t Throttled) error {
	return th.release(t, "timeout")
}

func (th *RateLimitingThrottler) release(t Throttled, signal string) error {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.book.release(t, signal)
}

// Stats implements RequestThrottler.
func (th *RateLimitingThrottler) Stats() ThrottleStats {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.book.stats()
}

// Close implements RequestThrottler.
func (th *RateLimitingThrottler) Close() error {
	th.mu.Lock()
	defer th.mu.Unlock()

	if th.closed {
		return nil
	}
	th.closed = true
	if th.drainTimer != nil {
		th.drainTimer.Stop()
		th.drainTimer = nil
	}
	th.book.failQueued(errThrottlerClosed(RateLimiting))
	return nil
}
