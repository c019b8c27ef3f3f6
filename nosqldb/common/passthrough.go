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
)

// PassThroughThrottler is a RequestThrottler that admits every request
// immediately. It still keeps track of registered requests so that invalid
// signals are reported.
type PassThroughThrottler struct {
	mu     sync.Mutex
	book   admissionBook
	closed bool
}

// NewPassThroughThrottler creates a PassThroughThrottler.
func NewPassThroughThrottler(lgr *logger.Logger) *PassThroughThrottler {
	return &PassThroughThrottler{
		book: newAdmissionBook(PassThrough, 0, lgr),
	}
}

// Register implements RequestThrottler.
func (th *PassThroughThrottler) Register(t Throttled) {
	th.mu.Lock()
	defer th.mu.Unlock()

	if th.closed {
		th.book.reject(t, "closed", errThrottlerClosed(PassThrough))
		return
	}
	if th.book.rejectDuplicate(t) {
		return
	}
	th.book.admit(t, false)
}

// SignalSuccess implements RequestThrottler.
func (th *PassThroughThrottler) SignalSuccess(t Throttled) error {
	return th.release(t, "success")
}

// SignalError implements RequestThrottler.
func (th *PassThroughThrottler) SignalError(t Throttled, err error) error {
	return th.release(t, "error")
}

// SignalTimeout implements RequestThrottler.
func (th *PassThroughThrottler) SignalTimeout(t Throttled) error {
	return th.release(t, "timeout")
}

func (th *PassThroughThrottler) release(t Throttled, signal string) error {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.book.release(t, signal)
}

// Stats implements RequestThrottler.
func (th *PassThroughThrottler) Stats() ThrottleStats {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.book.stats()
}

// Close implements RequestThrottler.
func (th *PassThroughThrottler) Close() error {
	th.mu.Lock()
	defer th.mu.Unlock()
	th.closed = true
	return nil
}
