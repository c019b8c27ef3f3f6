//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/oracle/nosql-go-driver/internal/test"
	"github.com/oracle/nosql-go-driver/nosqldb"
	"github.com/oracle/nosql-go-driver/nosqldb/common"
	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
	"github.com/stretchr/testify/suite"
)

// fixedPlanSource returns the same plan for every request.
type fixedPlanSource []nosqldb.Node

func (s fixedPlanSource) NewQueryPlan(req *nosqldb.Request, keyspace string) nosqldb.QueryPlan {
	return nosqldb.NewQueryPlan(s...)
}

// decisionPolicy is a retry policy that always takes the same decision,
// optionally after a pause.
type decisionPolicy struct {
	decision nosqldb.RetryDecision
	pause    time.Duration
}

func (p decisionPolicy) OnError(info nosqldb.RetryInfo) nosqldb.RetryDecision {
	time.Sleep(p.pause)
	return p.decision
}

func (p decisionPolicy) Delay(numRetries uint, err error) time.Duration {
	return 0
}

func errCode(code nosqlerr.ErrorCode) error {
	return nosqlerr.New(code, "injected %s", code)
}

type SessionTestSuite struct {
	test.SessionTestSuite
}

func (suite *SessionTestSuite) n(i int) nosqldb.Node {
	return suite.Nodes[i-1]
}

func (suite *SessionTestSuite) ordered() nosqldb.PlanSource {
	return fixedPlanSource(suite.Nodes)
}

func (suite *SessionTestSuite) idempotent(stmt string) *nosqldb.Request {
	return &nosqldb.Request{Statement: stmt, Idempotent: nosqldb.Bool(true)}
}

func (suite *SessionTestSuite) TestSuccessOnFirstNode() {
	suite.Transport.On("n1", suite.Transport.Succeed("rows"))
	suite.NewSession(nosqldb.Config{PlanSource: suite.ordered(), Keyspace: "ks"})

	res, err := suite.Execute(&nosqldb.Request{Statement: "select * from t"})
	suite.Require().NoError(err)
	suite.Equal([]byte("rows"), res.Payload)
	suite.Equal("n1", res.ExecutionInfo.Coordinator.ID)
	suite.Equal(0, res.ExecutionInfo.NumRetries)
	suite.Equal(0, res.ExecutionInfo.SuccessfulExecutionIndex)
	suite.NotEmpty(res.ExecutionInfo.RequestID)
	suite.False(res.ExecutionInfo.ThrottleDelayed)
	suite.Equal([]string{test.SignalSuccess}, suite.Throttler.Signals())

	calls := suite.Transport.Calls()
	if suite.Len(calls, 1) {
		msg := calls[0].Msg
		suite.Equal("ks", msg.Keyspace)
		suite.Equal(res.ExecutionInfo.RequestID, msg.RequestID)
		suite.Equal(1, msg.Attempt)
		suite.False(msg.Idempotent)
	}
	suite.WaitIdle()
}

// A hung node holds the only admission slot until the request times out,
// then the queued request runs.
func (suite *SessionTestSuite) TestHungNodeReleasesQueuedRequest() {
	th, err := common.NewConcurrencyLimitingThrottler(1, 10, nil)
	suite.Require().NoError(err)
	suite.Transport.On("n1", test.Hang())
	suite.NewSession(nosqldb.Config{Throttler: th})

	n1, n2 := suite.n(1), suite.n(2)
	ctx := context.Background()
	first := suite.Session.ExecuteAsync(ctx, &nosqldb.Request{Statement: "a", Node: &n1, Timeout: 100 * time.Millisecond})
	second := suite.Session.ExecuteAsync(ctx, &nosqldb.Request{Statement: "b", Node: &n2, Timeout: time.Second})

	suite.WaitCalls("n1", 1)
	suite.Equal(common.ThrottleStats{Running: 1, Queued: 1, Outstanding: 2}, suite.Session.ThrottleStats())
	suite.AssertPending(second, 30*time.Millisecond)
	suite.Equal(0, suite.Transport.CallsTo("n2"), "the queued request must wait for admission")

	_, err = suite.WaitFuture(first)
	suite.Truef(nosqlerr.IsRequestTimeout(err), "first request got %v", err)

	res, err := suite.WaitFuture(second)
	suite.Require().NoError(err)
	suite.Equal("n2", res.ExecutionInfo.Coordinator.ID)
	suite.True(res.ExecutionInfo.ThrottleDelayed)

	suite.Equal([]string{test.SignalTimeout, test.SignalSuccess}, suite.Throttler.Signals())
	suite.Equal(common.ThrottleStats{}, suite.Session.ThrottleStats())
	suite.WaitIdle()
	suite.Equal(1, suite.Transport.Cancelled(), "the hung attempt must be cancelled")
}

func (suite *SessionTestSuite) TestRetryNextNode() {
	suite.Transport.On("n1", test.Fail(errCode(nosqlerr.Unavailable)))
	suite.Transport.On("n2", suite.Transport.Succeed("from n2"))
	suite.NewSession(nosqldb.Config{PlanSource: suite.ordered()})

	res, err := suite.Execute(suite.idempotent("select"))
	suite.Require().NoError(err)
	suite.Equal([]byte("from n2"), res.Payload)
	info := res.ExecutionInfo
	suite.Equal("n2", info.Coordinator.ID)
	suite.Equal(1, info.NumRetries)
	if suite.Len(info.Errors, 1) {
		suite.Equal("n1", info.Errors[0].Node.ID)
		suite.True(nosqlerr.Is(info.Errors[0].Err, nosqlerr.Unavailable))
	}
	suite.Equal(1, suite.Transport.CallsTo("n1"))
	suite.Equal(1, suite.Transport.CallsTo("n2"))
	suite.Equal(0, suite.Transport.CallsTo("n3"))
	suite.Equal([]string{test.SignalSuccess}, suite.Throttler.Signals())
}

func (suite *SessionTestSuite) TestRetrySameNode() {
	suite.Transport.On("n1", test.Fail(errCode(nosqlerr.ReadTimeout)), suite.Transport.Succeed("second try"))
	suite.NewSession(nosqldb.Config{
		PlanSource:    suite.ordered(),
		RequestConfig: nosqldb.RequestConfig{RetryInterval: 10 * time.Millisecond},
	})

	start := time.Now()
	res, err := suite.Execute(suite.idempotent("select"))
	suite.Require().NoError(err)
	suite.Equal("n1", res.ExecutionInfo.Coordinator.ID)
	suite.Equal(1, res.ExecutionInfo.NumRetries)
	suite.Equal(2, suite.Transport.CallsTo("n1"))
	suite.True(time.Since(start) >= 10*time.Millisecond, "the retry must wait for the retry interval")

	calls := suite.Transport.Calls()
	suite.Equal(calls[0].Msg.RequestID, calls[1].Msg.RequestID)
	suite.Equal(2, calls[1].Msg.Attempt)
}

func (suite *SessionTestSuite) TestAllNodesFail() {
	for _, n := range suite.Nodes {
		suite.Transport.On(n.ID, test.Fail(errCode(nosqlerr.Overloaded)))
	}
	suite.NewSession(nosqldb.Config{PlanSource: suite.ordered()})

	_, err := suite.Execute(suite.idempotent("select"))
	suite.Truef(nosqlerr.Is(err, nosqlerr.NoNodesAvailable), "got %v", err)
	suite.True(nosqlerr.Is(errors.Unwrap(err), nosqlerr.Overloaded), "the cause must be the last node error")
	for _, n := range suite.Nodes {
		suite.Equal(1, suite.Transport.CallsTo(n.ID))
	}
	suite.Equal([]string{test.SignalError}, suite.Throttler.Signals())
}

func (suite *SessionTestSuite) TestMaxRetries() {
	suite.Transport.On("n1", test.Fail(errCode(nosqlerr.WriteTimeout)))
	suite.NewSession(nosqldb.Config{
		PlanSource:    suite.ordered(),
		RequestConfig: nosqldb.RequestConfig{MaxRetries: 2, RetryInterval: time.Millisecond},
	})

	_, err := suite.Execute(suite.idempotent("update"))
	suite.Truef(nosqlerr.Is(err, nosqlerr.WriteTimeout), "got %v", err)
	suite.Equal(3, suite.Transport.CallsTo("n1"), "one attempt and two retries")
	suite.Equal([]string{test.SignalError}, suite.Throttler.Signals())
}

func (suite *SessionTestSuite) TestEmptyPlan() {
	suite.NewSession(nosqldb.Config{PlanSource: fixedPlanSource(nil)})

	_, err := suite.Execute(suite.idempotent("select"))
	suite.Truef(nosqlerr.Is(err, nosqlerr.NoNodesAvailable), "got %v", err)
	suite.Empty(suite.Transport.Calls())
	suite.Equal([]string{test.SignalError}, suite.Throttler.Signals())
}

func (suite *SessionTestSuite) TestSpeculativeExecution() {
	suite.Transport.On("n1", test.After(time.Second, suite.Transport.Succeed("slow")))
	suite.Transport.On("n2", suite.Transport.Succeed("fast"))
	suite.NewSession(nosqldb.Config{
		PlanSource: suite.ordered(),
		RequestConfig: nosqldb.RequestConfig{
			SpeculativeExecutionPolicy: nosqldb.ConstantSpeculation,
			SpeculativeMaxExecutions:   2,
			SpeculativeDelay:           50 * time.Millisecond,
		},
	})

	start := time.Now()
	res, err := suite.Execute(suite.idempotent("select"))
	elapsed := time.Since(start)
	suite.Require().NoError(err)
	suite.Equal([]byte("fast"), res.Payload)
	suite.Equal("n2", res.ExecutionInfo.Coordinator.ID)
	suite.Equal(1, res.ExecutionInfo.SpeculativeExecutions)
	suite.Equal(1, res.ExecutionInfo.SuccessfulExecutionIndex)
	suite.True(elapsed >= 50*time.Millisecond, "the speculative execution started after %v", elapsed)
	suite.True(elapsed < 500*time.Millisecond, "the request took %v", elapsed)
	suite.Equal(0, suite.Transport.CallsTo("n3"), "at most two executions")
	suite.Equal([]string{test.SignalSuccess}, suite.Throttler.Signals())

	suite.WaitIdle()
	suite.Equal(1, suite.Transport.Cancelled(), "the slow execution must be cancelled")
}

func (suite *SessionTestSuite) TestNoSpeculationForNonIdempotentRequest() {
	suite.Transport.On("n1", test.After(150*time.Millisecond, suite.Transport.Succeed("slow")))
	suite.NewSession(nosqldb.Config{
		PlanSource: suite.ordered(),
		RequestConfig: nosqldb.RequestConfig{
			SpeculativeExecutionPolicy: nosqldb.ConstantSpeculation,
			SpeculativeMaxExecutions:   3,
			SpeculativeDelay:           10 * time.Millisecond,
		},
	})

	res, err := suite.Execute(&nosqldb.Request{Statement: "insert"})
	suite.Require().NoError(err)
	suite.Equal("n1", res.ExecutionInfo.Coordinator.ID)
	suite.Equal(0, res.ExecutionInfo.SpeculativeExecutions)
	suite.Len(suite.Transport.Calls(), 1)
}

func (suite *SessionTestSuite) TestNonIdempotentRequestIsNotRetried() {
	for _, code := range []nosqlerr.ErrorCode{nosqlerr.Unavailable, nosqlerr.ReadTimeout, nosqlerr.ConnectionFailure} {
		suite.SetupTest()
		suite.Transport.On("n1", test.Fail(errCode(code)))
		policies := nosqldb.NewPolicyRegistry()
		suite.Require().NoError(policies.RegisterRetryPolicy("always", func(p *nosqldb.ExecutionProfile) (nosqldb.RetryPolicy, error) {
			return decisionPolicy{decision: nosqldb.RetryNext}, nil
		}))
		suite.NewSession(nosqldb.Config{
			PlanSource:    suite.ordered(),
			Policies:      policies,
			RequestConfig: nosqldb.RequestConfig{RetryPolicy: "always"},
		})

		_, err := suite.Execute(&nosqldb.Request{Statement: "insert", Idempotent: nosqldb.Bool(false)})
		suite.Truef(nosqlerr.Is(err, code), "%s: got %v", code, err)
		suite.Lenf(suite.Transport.Calls(), 1, "%s: a non idempotent request must not be retried", code)
		suite.Equal([]string{test.SignalError}, suite.Throttler.Signals())
		suite.TearDownTest()
	}
	suite.Session = nil
	suite.Throttler = nil
}

func (suite *SessionTestSuite) TestFatalErrorIsRethrown() {
	suite.Transport.On("n1", test.Fail(errCode(nosqlerr.SyntaxError)))
	suite.NewSession(nosqldb.Config{PlanSource: suite.ordered()})

	_, err := suite.Execute(suite.idempotent("selec"))
	suite.Truef(nosqlerr.Is(err, nosqlerr.SyntaxError), "got %v", err)
	suite.Len(suite.Transport.Calls(), 1)
}

func (suite *SessionTestSuite) TestTransportErrorIsConnectionFailure() {
	suite.Transport.On("n1", test.Fail(errors.New("connection reset by peer")))
	suite.Transport.On("n2", suite.Transport.Succeed("ok"))
	suite.NewSession(nosqldb.Config{PlanSource: suite.ordered()})

	res, err := suite.Execute(suite.idempotent("select"))
	suite.Require().NoError(err)
	suite.Equal("n2", res.ExecutionInfo.Coordinator.ID)
	if suite.Len(res.ExecutionInfo.Errors, 1) {
		suite.True(nosqlerr.Is(res.ExecutionInfo.Errors[0].Err, nosqlerr.ConnectionFailure))
	}
}

// The timeout fires while the retry policy is deciding; the retry it decides
// on must not be sent.
func (suite *SessionTestSuite) TestTimeoutDuringRetryDecision() {
	suite.Transport.On("n1", test.Fail(errCode(nosqlerr.ReadTimeout)))
	policies := nosqldb.NewPolicyRegistry()
	suite.Require().NoError(policies.RegisterRetryPolicy("slow", func(p *nosqldb.ExecutionProfile) (nosqldb.RetryPolicy, error) {
		return decisionPolicy{decision: nosqldb.RetrySame, pause: 150 * time.Millisecond}, nil
	}))
	suite.NewSession(nosqldb.Config{
		PlanSource: suite.ordered(),
		Policies:   policies,
		RequestConfig: nosqldb.RequestConfig{
			RetryPolicy:    "slow",
			RequestTimeout: 50 * time.Millisecond,
		},
	})

	_, err := suite.Execute(suite.idempotent("select"))
	suite.Truef(nosqlerr.IsRequestTimeout(err), "got %v", err)
	suite.True(nosqlerr.Is(errors.Unwrap(err), nosqlerr.ReadTimeout), "the cause must be the last node error")

	time.Sleep(50 * time.Millisecond)
	suite.Equal(1, suite.Transport.CallsTo("n1"), "no retry after the timeout")
	suite.Equal([]string{test.SignalTimeout}, suite.Throttler.Signals())
}

func (suite *SessionTestSuite) TestIgnoredErrorCompletesWithEmptyResult() {
	suite.Transport.On("n1", test.Fail(errCode(nosqlerr.WriteTimeout)))
	policies := nosqldb.NewPolicyRegistry()
	suite.Require().NoError(policies.RegisterRetryPolicy("ignore", func(p *nosqldb.ExecutionProfile) (nosqldb.RetryPolicy, error) {
		return decisionPolicy{decision: nosqldb.Ignore}, nil
	}))
	suite.NewSession(nosqldb.Config{
		PlanSource:    suite.ordered(),
		Policies:      policies,
		RequestConfig: nosqldb.RequestConfig{RetryPolicy: "ignore"},
	})

	res, err := suite.Execute(suite.idempotent("update"))
	suite.Require().NoError(err)
	suite.Empty(res.Payload)
	suite.Equal(-1, res.ExecutionInfo.SuccessfulExecutionIndex)
	suite.Len(res.ExecutionInfo.Errors, 1)
	suite.Equal([]string{test.SignalSuccess}, suite.Throttler.Signals())
}

func (suite *SessionTestSuite) TestTimeoutWhileQueued() {
	th, err := common.NewConcurrencyLimitingThrottler(1, 10, nil)
	suite.Require().NoError(err)
	suite.Transport.On("n1", test.Hang())
	suite.NewSession(nosqldb.Config{PlanSource: suite.ordered(), Throttler: th})

	ctx, cancel := context.WithCancel(context.Background())
	first := suite.Session.ExecuteAsync(ctx, &nosqldb.Request{Statement: "a", Timeout: test.OkTimeout})
	suite.WaitCalls("n1", 1)

	start := time.Now()
	_, err = suite.Execute(&nosqldb.Request{Statement: "b", Timeout: 50 * time.Millisecond})
	suite.Truef(nosqlerr.IsRequestTimeout(err), "queued request got %v", err)
	suite.True(time.Since(start) < time.Second)
	suite.Equal(common.ThrottleStats{Running: 1, Outstanding: 1}, suite.Session.ThrottleStats())

	cancel()
	_, err = suite.WaitFuture(first)
	suite.Truef(nosqlerr.Is(err, nosqlerr.RequestCancelled), "cancelled request got %v", err)
	suite.Equal([]string{test.SignalTimeout, test.SignalTimeout}, suite.Throttler.Signals())
	suite.Equal(1, suite.Transport.CallsTo("n1"), "the queued request never reached a node")
	suite.WaitIdle()
}

func (suite *SessionTestSuite) TestContextDeadline() {
	suite.Transport.On("n1", test.Hang())
	suite.NewSession(nosqldb.Config{PlanSource: suite.ordered()})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := suite.Session.Execute(ctx, &nosqldb.Request{Statement: "a"})
	suite.Truef(nosqlerr.IsRequestTimeout(err), "got %v", err)
	suite.True(errors.Is(err, context.DeadlineExceeded))
	suite.Equal([]string{test.SignalTimeout}, suite.Throttler.Signals())
	suite.WaitIdle()
}

func (suite *SessionTestSuite) TestCapacityExceeded() {
	th, err := common.NewConcurrencyLimitingThrottler(1, 0, nil)
	suite.Require().NoError(err)
	suite.Transport.On("n1", test.Hang())
	suite.NewSession(nosqldb.Config{PlanSource: suite.ordered(), Throttler: th})

	ctx, cancel := context.WithCancel(context.Background())
	first := suite.Session.ExecuteAsync(ctx, &nosqldb.Request{Statement: "a"})
	suite.WaitCalls("n1", 1)

	_, err = suite.Execute(&nosqldb.Request{Statement: "b"})
	suite.Truef(nosqlerr.Is(err, nosqlerr.CapacityExceeded), "got %v", err)
	suite.Equal(1, suite.Throttler.Rejected())

	cancel()
	_, err = suite.WaitFuture(first)
	suite.Error(err)
	suite.Equal([]string{test.SignalTimeout}, suite.Throttler.Signals())
}

func (suite *SessionTestSuite) TestClose() {
	th, err := common.NewConcurrencyLimitingThrottler(1, 10, nil)
	suite.Require().NoError(err)
	release := make(chan struct{})
	suite.Transport.On("n1", test.Gate(release, suite.Transport.Succeed("done")))
	suite.NewSession(nosqldb.Config{PlanSource: suite.ordered(), Throttler: th})

	ctx := context.Background()
	running := suite.Session.ExecuteAsync(ctx, &nosqldb.Request{Statement: "a"})
	suite.WaitCalls("n1", 1)
	queued := suite.Session.ExecuteAsync(ctx, &nosqldb.Request{Statement: "b"})
	suite.Eventually(func() bool {
		return suite.Session.ThrottleStats().Queued == 1
	}, test.WaitTimeout, test.PollInterval)

	suite.NoError(suite.Session.Close())
	_, err = suite.WaitFuture(queued)
	suite.Truef(nosqlerr.Is(err, nosqlerr.ClientClosed), "queued request got %v", err)

	_, err = suite.Execute(&nosqldb.Request{Statement: "c"})
	suite.Truef(nosqlerr.Is(err, nosqlerr.ClientClosed), "request after close got %v", err)

	close(release)
	res, err := suite.WaitFuture(running)
	suite.Require().NoError(err, "a running request completes after close")
	suite.Equal([]byte("done"), res.Payload)

	suite.Equal(2, suite.Throttler.Registered())
	suite.Equal(1, suite.Throttler.Rejected())
	suite.Equal([]string{test.SignalSuccess}, suite.Throttler.Signals())
}

func (suite *SessionTestSuite) TestInvalidRequests() {
	suite.NewSession(nosqldb.Config{
		Profiles: []nosqldb.ExecutionProfile{{Name: "olap"}},
	})

	_, err := suite.Execute(nil)
	suite.True(nosqlerr.IsIllegalArgument(err), "nil request got %v", err)

	_, err = suite.Execute(&nosqldb.Request{})
	suite.True(nosqlerr.IsIllegalArgument(err), "empty statement got %v", err)

	_, err = suite.Execute(&nosqldb.Request{Statement: "s", Timeout: test.BadTimeout})
	suite.True(nosqlerr.IsIllegalArgument(err), "timeout below 1ms got %v", err)

	_, err = suite.Execute(&nosqldb.Request{Statement: "s", ProfileName: "oltp"})
	suite.True(nosqlerr.Is(err, nosqlerr.ConfigurationError), "unknown profile got %v", err)

	//lint:ignore SA1012 a nil context is rejected
	_, err = suite.Session.Execute(nil, &nosqldb.Request{Statement: "s"})
	suite.True(nosqlerr.IsIllegalArgument(err), "nil context got %v", err)

	suite.Equal(0, suite.Throttler.Registered(), "invalid requests must not reach the throttler")
	suite.Empty(suite.Transport.Calls())
}

func (suite *SessionTestSuite) TestProfiles() {
	suite.NewSession(nosqldb.Config{
		Keyspace: "ks",
		Profiles: []nosqldb.ExecutionProfile{
			{Name: nosqldb.DefaultProfileName, PageSize: 10},
			{Name: "olap", PageSize: 1000, DefaultIdempotence: nosqldb.Bool(true)},
		},
	})

	_, err := suite.Execute(&nosqldb.Request{Statement: "a"})
	suite.Require().NoError(err)
	_, err = suite.Execute(&nosqldb.Request{Statement: "b", ProfileName: "olap", RoutingKeyspace: "other"})
	suite.Require().NoError(err)

	calls := suite.Transport.Calls()
	if suite.Len(calls, 2) {
		suite.Equal(10, calls[0].Msg.PageSize)
		suite.False(calls[0].Msg.Idempotent)
		suite.Equal("ks", calls[0].Msg.Keyspace)
		suite.Equal(1000, calls[1].Msg.PageSize)
		suite.True(calls[1].Msg.Idempotent)
		suite.Equal("other", calls[1].Msg.Keyspace)
	}

	ectx, err := suite.Session.ResolveExecutionContext(&nosqldb.Request{Statement: "c", ProfileName: "olap"})
	suite.Require().NoError(err)
	suite.True(ectx.Idempotent)
	suite.Equal([]string{nosqldb.DefaultProfileName, "olap"}, suite.Session.Profiles().Names())
	suite.Equal("ks", suite.Session.Keyspace())
}

func (suite *SessionTestSuite) TestTracing() {
	suite.Transport.On("n1", test.Fail(errCode(nosqlerr.Unavailable)))
	suite.NewSession(nosqldb.Config{PlanSource: suite.ordered()})

	parent := suite.Tracer.StartSpan("caller")
	ctx := opentracing.ContextWithSpan(context.Background(), parent)
	_, err := suite.Session.Execute(ctx, suite.idempotent("select"))
	suite.Require().NoError(err)
	parent.Finish()

	var request, attempts int
	spans := suite.Tracer.FinishedSpans()
	for _, span := range spans {
		switch span.OperationName {
		case "nosql.request":
			request++
			suite.Equal("success", span.Tag("request.outcome"))
			suite.Equal(1, span.Tag("request.retries"))
		case "nosql.attempt":
			attempts++
		}
	}
	suite.Equal(1, request)
	suite.Equal(2, attempts)
}

func (suite *SessionTestSuite) TestConcurrentRequests() {
	th, err := common.NewConcurrencyLimitingThrottler(4, 1000, nil)
	suite.Require().NoError(err)
	suite.Transport.On("n1", test.After(2*time.Millisecond, suite.Transport.Succeed("1")))
	suite.Transport.On("n2", test.Fail(errCode(nosqlerr.Overloaded)))
	suite.Transport.On("n3", test.After(time.Millisecond, suite.Transport.Succeed("3")))
	suite.NewSession(nosqldb.Config{Throttler: th})

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.Execute(suite.idempotent("select"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		suite.NoError(err)
	}
	suite.Equal(n, suite.Throttler.Registered())
	suite.Len(suite.Throttler.Signals(), n)
	suite.Equal(common.ThrottleStats{}, suite.Session.ThrottleStats())
	suite.WaitIdle()
}

func TestSession(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
