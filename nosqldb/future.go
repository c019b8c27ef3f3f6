//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"context"
	"sync"

	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
)

// Future represents the pending outcome of a request submitted with
// Session.ExecuteAsync. It is resolved exactly once.
type Future struct {
	once   sync.Once
	done   chan struct{}
	result *Result
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolve sets the outcome of the future. It reports false if the future
// was already resolved, in which case the outcome is unchanged.
func (f *Future) resolve(res *Result, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.result, f.err = res, err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done returns a channel that is closed when the request completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the request completes and returns its outcome.
func (f *Future) Wait() (*Result, error) {
	<-f.done
	return f.result, f.err
}

// Get waits for the request to complete, or for ctx to be done. Giving up on
// waiting does not cancel the request; cancel the context passed to
// ExecuteAsync for that.
func (f *Future) Get(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, nosqlerr.NewWithCause(nosqlerr.RequestCancelled, ctx.Err(), "stopped waiting for the request")
	}
}

// Err returns the error of the request, or nil if the request succeeded or
// has not completed yet.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}
