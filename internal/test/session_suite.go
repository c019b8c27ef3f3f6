//
// Copyright (C) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl
//
// Please see LICENSE.txt file included in the top-level directory of the
// appropriate download for a copy of the license and additional information.
//

package test

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/oracle/nosql-go-driver/nosqldb"
	"github.com/oracle/nosql-go-driver/nosqldb/common"
	"github.com/stretchr/testify/suite"
)

// SessionTestSuite provides a session over fake nodes, together with the
// fakes that observe it.
//
// It should be embedded into test suites that exercise request execution.
// Every test starts with a new FakeTransport, tracer and node list; the
// session is created by NewSession, and verified and closed on teardown.
type SessionTestSuite struct {
	suite.Suite

	Nodes     []nosqldb.Node
	Transport *FakeTransport
	Throttler *RecordingThrottler
	Tracer    *mocktracer.MockTracer
	Session   *nosqldb.Session
}

// Nodes returns n nodes with IDs "n1" to "n<n>".
func Nodes(n int) []nosqldb.Node {
	nodes := make([]nosqldb.Node, n)
	for i := range nodes {
		id := fmt.Sprintf("n%d", i+1)
		nodes[i] = nosqldb.Node{ID: id, Endpoint: "http://" + id + ":8080"}
	}
	return nodes
}

// This implements the suite.SetupTestSuite interface defined in testify package.
func (suite *SessionTestSuite) SetupTest() {
	suite.Nodes = Nodes(3)
	suite.Transport = NewFakeTransport()
	suite.Tracer = mocktracer.New()
	suite.Throttler = nil
	suite.Session = nil
}

// This implements the suite.TearDownTestSuite interface defined in testify package.
func (suite *SessionTestSuite) TearDownTest() {
	if suite.Session != nil {
		suite.NoError(suite.Session.Close())
	}
	if suite.Throttler != nil {
		suite.NoError(suite.Throttler.Verify())
	}
}

// NewSession creates the session of the test. The fake transport, tracer and
// nodes are used unless cfg sets them. The throttler of cfg, or a
// concurrency-limiting throttler allowing 100 requests, is wrapped in a
// RecordingThrottler.
func (suite *SessionTestSuite) NewSession(cfg nosqldb.Config) *nosqldb.Session {
	if cfg.Transport == nil {
		cfg.Transport = suite.Transport
	}
	if cfg.Tracer == nil {
		cfg.Tracer = suite.Tracer
	}
	if len(cfg.Nodes) == 0 && cfg.PlanSource == nil {
		cfg.Nodes = suite.Nodes
	}
	if cfg.Logger == nil {
		cfg.DisableLogging = true
	}

	inner := cfg.Throttler
	if inner == nil {
		var err error
		inner, err = common.NewConcurrencyLimitingThrottler(100, 100, nil)
		suite.Require().NoError(err)
	}
	suite.Throttler = NewRecordingThrottler(inner)
	cfg.Throttler = suite.Throttler

	s, err := nosqldb.NewSession(cfg)
	suite.Require().NoErrorf(err, "NewSession(): %v", err)
	suite.Session = s
	return s
}

// Execute executes req on the session of the test with a background context.
func (suite *SessionTestSuite) Execute(req *nosqldb.Request) (*nosqldb.Result, error) {
	return suite.Session.Execute(context.Background(), req)
}

// WaitFuture waits for f to be resolved, failing the test if it takes longer
// than WaitTimeout.
func (suite *SessionTestSuite) WaitFuture(f *nosqldb.Future) (*nosqldb.Result, error) {
	select {
	case <-f.Done():
		return f.Wait()
	case <-time.After(WaitTimeout):
		suite.FailNow("request did not complete in time")
		return nil, nil
	}
}

// AssertPending asserts that f is still not resolved after d.
func (suite *SessionTestSuite) AssertPending(f *nosqldb.Future, d time.Duration) bool {
	select {
	case <-f.Done():
		return suite.Fail("request completed unexpectedly")
	case <-time.After(d):
		return true
	}
}

// WaitCalls waits until the node with the specified ID has received n
// attempts.
func (suite *SessionTestSuite) WaitCalls(nodeID string, n int) bool {
	return suite.Eventuallyf(func() bool {
		return suite.Transport.CallsTo(nodeID) >= n
	}, WaitTimeout, PollInterval, "node %s did not receive %d attempt(s)", nodeID, n)
}

// WaitIdle waits until no attempt is in flight and every response created by
// the transport has been closed.
func (suite *SessionTestSuite) WaitIdle() bool {
	return suite.Eventually(func() bool {
		return suite.Transport.InFlight() == 0 && suite.Transport.OpenResponses() == 0
	}, WaitTimeout, PollInterval, "attempts or responses were not released")
}
