//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oracle/nosql-go-driver/nosqldb"
)

// Behavior scripts how a node answers one attempt.
type Behavior func(ctx context.Context, node nosqldb.Node, msg *nosqldb.Message) (*nosqldb.Response, error)

// Fail returns a Behavior that fails the attempt with err.
func Fail(err error) Behavior {
	return func(ctx context.Context, node nosqldb.Node, msg *nosqldb.Message) (*nosqldb.Response, error) {
		return nil, err
	}
}

// Hang returns a Behavior that never answers. The attempt returns when it is
// cancelled.
func Hang() Behavior {
	return func(ctx context.Context, node nosqldb.Node, msg *nosqldb.Message) (*nosqldb.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// After returns a Behavior that waits d before behaving as b. The attempt
// returns early if it is cancelled.
func After(d time.Duration, b Behavior) Behavior {
	return func(ctx context.Context, node nosqldb.Node, msg *nosqldb.Message) (*nosqldb.Response, error) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return b(ctx, node, msg)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Gate returns a Behavior that waits until release is closed before behaving
// as b. The attempt returns early if it is cancelled.
func Gate(release <-chan struct{}, b Behavior) Behavior {
	return func(ctx context.Context, node nosqldb.Node, msg *nosqldb.Message) (*nosqldb.Response, error) {
		select {
		case <-release:
			return b(ctx, node, msg)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Call records an attempt received by a FakeTransport.
type Call struct {
	Node nosqldb.Node
	Msg  *nosqldb.Message
	At   time.Time
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// FakeTransport is a nosqldb.Transport whose nodes follow scripted
// behaviors. Each node plays its script in order and repeats the last
// behavior once the script is exhausted. Nodes without a script succeed.
type FakeTransport struct {
	mu       sync.Mutex
	scripts  map[string][]Behavior
	fallback Behavior
	calls    []Call

	inFlight  int32
	cancelled int32
	opened    int32
	closed    int32
}

// NewFakeTransport creates a FakeTransport.
func NewFakeTransport() *FakeTransport {
	t := &FakeTransport{
		scripts: make(map[string][]Behavior),
	}
	t.fallback = t.Succeed("ok")
	return t
}

// On sets the script of the node with the specified ID.
func (t *FakeTransport) On(nodeID string, script ...Behavior) *FakeTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scripts[nodeID] = script
	return t
}

// Succeed returns a Behavior that answers with payload. The response is
// counted until it is closed.
func (t *FakeTransport) Succeed(payload string) Behavior {
	return func(ctx context.Context, node nosqldb.Node, msg *nosqldb.Message) (*nosqldb.Response, error) {
		atomic.AddInt32(&t.opened, 1)
		return nosqldb.NewResponse([]byte(payload), closerFunc(func() error {
			atomic.AddInt32(&t.closed, 1)
			return nil
		})), nil
	}
}

func (t *FakeTransport) next(nodeID string) Behavior {
	t.mu.Lock()
	defer t.mu.Unlock()

	script := t.scripts[nodeID]
	switch len(script) {
	case 0:
		return t.fallback
	case 1:
		return script[0]
	default:
		t.scripts[nodeID] = script[1:]
		return script[0]
	}
}

// Execute implements nosqldb.Transport.
func (t *FakeTransport) Execute(ctx context.Context, node nosqldb.Node, msg *nosqldb.Message) (*nosqldb.Response, error) {
	t.mu.Lock()
	t.calls = append(t.calls, Call{Node: node, Msg: msg, At: time.Now()})
	t.mu.Unlock()

	atomic.AddInt32(&t.inFlight, 1)
	defer atomic.AddInt32(&t.inFlight, -1)

	resp, err := t.next(node.ID)(ctx, node, msg)
	if ctx.Err() != nil {
		atomic.AddInt32(&t.cancelled, 1)
	}
	return resp, err
}

// Calls returns the attempts received so far, in order.
func (t *FakeTransport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// CallsTo returns the number of attempts received by the specified node.
func (t *FakeTransport) CallsTo(nodeID string) int {
	n := 0
	for _, c := range t.Calls() {
		if c.Node.ID == nodeID {
			n++
		}
	}
	return n
}

// InFlight returns the number of attempts that have not returned yet.
func (t *FakeTransport) InFlight() int {
	return int(atomic.LoadInt32(&t.inFlight))
}

// Cancelled returns the number of attempts that returned after they were
// cancelled.
func (t *FakeTransport) Cancelled() int {
	return int(atomic.LoadInt32(&t.cancelled))
}

// OpenResponses returns the number of responses created by Succeed behaviors
// that have not been closed.
func (t *FakeTransport) OpenResponses() int {
	return int(atomic.LoadInt32(&t.opened) - atomic.LoadInt32(&t.closed))
}
