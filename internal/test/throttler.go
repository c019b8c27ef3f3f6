//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package test

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oracle/nosql-go-driver/nosqldb/common"
)

// Signal names recorded by RecordingThrottler.
const (
	SignalSuccess = "success"
	SignalError   = "error"
	SignalTimeout = "timeout"
)

type ticketRecord struct {
	wrapper  *recordedTicket
	rejected bool
	signals  []string
}

// recordedTicket stands for a registered request in the wrapped throttler,
// so that rejections can be recorded.
type recordedTicket struct {
	common.Throttled
	owner *RecordingThrottler
	key   common.Throttled
}

func (w *recordedTicket) OnThrottleFailure(err error) {
	w.owner.mu.Lock()
	w.owner.tickets[w.key].rejected = true
	w.owner.mu.Unlock()
	w.Throttled.OnThrottleFailure(err)
}

// RecordingThrottler wraps a RequestThrottler and records every registration
// and signal, so tests can check that each registered request is signalled
// exactly once.
type RecordingThrottler struct {
	common.RequestThrottler

	mu      sync.Mutex
	tickets map[common.Throttled]*ticketRecord
	order   []common.Throttled
}

// NewRecordingThrottler creates a RecordingThrottler that delegates to inner.
func NewRecordingThrottler(inner common.RequestThrottler) *RecordingThrottler {
	return &RecordingThrottler{
		RequestThrottler: inner,
		tickets:          make(map[common.Throttled]*ticketRecord),
	}
}

// Register implements common.RequestThrottler.
func (r *RecordingThrottler) Register(t common.Throttled) {
	w := &recordedTicket{Throttled: t, owner: r, key: t}
	r.mu.Lock()
	r.tickets[t] = &ticketRecord{wrapper: w}
	r.order = append(r.order, t)
	r.mu.Unlock()

	r.RequestThrottler.Register(w)
}

func (r *RecordingThrottler) record(t common.Throttled, signal string) common.Throttled {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tickets[t]
	if !ok {
		return t
	}
	rec.signals = append(rec.signals, signal)
	return rec.wrapper
}

// SignalSuccess implements common.RequestThrottler.
func (r *RecordingThrottler) SignalSuccess(t common.Throttled) error {
	return r.RequestThrottler.SignalSuccess(r.record(t, SignalSuccess))
}

// SignalError implements common.RequestThrottler.
func (r *RecordingThrottler) SignalError(t common.Throttled, err error) error {
	return r.RequestThrottler.SignalError(r.record(t, SignalError), err)
}

// SignalTimeout implements common.RequestThrottler.
func (r *RecordingThrottler) SignalTimeout(t common.Throttled) error {
	return r.RequestThrottler.SignalTimeout(r.record(t, SignalTimeout))
}

// Registered returns the number of requests registered so far.
func (r *RecordingThrottler) Registered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Rejected returns the number of registered requests that the throttler
// failed.
func (r *RecordingThrottler) Rejected() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, rec := range r.tickets {
		if rec.rejected {
			n++
		}
	}
	return n
}

// Signals returns the signals received so far, in registration order of the
// requests. Requests that received no signal are skipped.
func (r *RecordingThrottler) Signals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var signals []string
	for _, t := range r.order {
		signals = append(signals, r.tickets[t].signals...)
	}
	return signals
}

// Verify returns an error describing every registered request that was not
// signalled exactly once, or that was signalled after being rejected.
func (r *RecordingThrottler) Verify() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var problems []string
	for i, t := range r.order {
		rec := r.tickets[t]
		switch {
		case rec.rejected && len(rec.signals) > 0:
			problems = append(problems, fmt.Sprintf("request #%d was rejected but got signals %v", i+1, rec.signals))
		case !rec.rejected && len(rec.signals) != 1:
			problems = append(problems, fmt.Sprintf("request #%d got signals %v", i+1, rec.signals))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("throttler signals: %s", strings.Join(problems, "; "))
	}
	return nil
}
