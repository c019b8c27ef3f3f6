//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package common

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

// ConcurrencyThrottlerTestSuite contains tests for ConcurrencyLimitingThrottler.
type ConcurrencyThrottlerTestSuite struct {
	suite.Suite
	log *admissionLog
	th  *ConcurrencyLimitingThrottler
}

func (suite *ConcurrencyThrottlerTestSuite) SetupTest() {
	var err error
	suite.log = &admissionLog{}
	suite.th, err = NewConcurrencyLimitingThrottler(2, 3, nil)
	suite.Require().NoError(err)
}

func (suite *ConcurrencyThrottlerTestSuite) register(name string) *testTicket {
	tk := newTicket(name, suite.log)
	suite.th.Register(tk)
	return tk
}

func (suite *ConcurrencyThrottlerTestSuite) TestInvalidArguments() {
	_, err := NewConcurrencyLimitingThrottler(0, 1, nil)
	suite.Truef(nosqlerr.IsIllegalArgument(err), "expect IllegalArgument error, got %v", err)
	_, err = NewConcurrencyLimitingThrottler(1, -1, nil)
	suite.Truef(nosqlerr.IsIllegalArgument(err), "expect IllegalArgument error, got %v", err)
}

func (suite *ConcurrencyThrottlerTestSuite) TestAdmitsImmediatelyBelowLimit() {
	t1 := suite.register("t1")
	t2 := suite.register("t2")
	suite.True(t1.isReady())
	suite.False(t1.delayed)
	suite.True(t2.isReady())
	assertAccounting(suite.T(), suite.th, 2, 0)
}

func (suite *ConcurrencyThrottlerTestSuite) TestFIFOAdmission() {
	t1 := suite.register("t1")
	suite.register("t2")
	r1 := suite.register("r1")
	r2 := suite.register("r2")
	r3 := suite.register("r3")
	suite.False(r1.isReady())
	assertAccounting(suite.T(), suite.th, 2, 3)

	suite.NoError(suite.th.SignalSuccess(t1))
	suite.Equal([]string{"t1", "t2", "r1"}, suite.log.names())
	suite.True(r1.delayed, "a queued request must be reported as delayed")
	assertAccounting(suite.T(), suite.th, 2, 2)

	suite.NoError(suite.th.SignalError(r1, errors.New("failed")))
	suite.Equal([]string{"t1", "t2", "r1", "r2"}, suite.log.names())
	assertAccounting(suite.T(), suite.th, 2, 1)

	suite.NoError(suite.th.SignalTimeout(r2))
	suite.Equal([]string{"t1", "t2", "r1", "r2", "r3"}, suite.log.names())
	suite.True(r3.isReady())
	assertAccounting(suite.T(), suite.th, 2, 0)
}

func (suite *ConcurrencyThrottlerTestSuite) TestTimeoutWhileQueued() {
	t1 := suite.register("t1")
	suite.register("t2")
	r1 := suite.register("r1")
	r2 := suite.register("r2")
	assertAccounting(suite.T(), suite.th, 2, 2)

	// A queued request that times out leaves the queue and is never admitted.
	suite.NoError(suite.th.SignalTimeout(r1))
	assertAccounting(suite.T(), suite.th, 2, 1)

	suite.NoError(suite.th.SignalSuccess(t1))
	suite.False(r1.isReady())
	suite.True(r2.isReady())
	assertAccounting(suite.T(), suite.th, 2, 0)
}

func (suite *ConcurrencyThrottlerTestSuite) TestCapacityExceeded() {
	for i := 0; i < 5; i++ {
		suite.register(fmt.Sprintf("t%d", i))
	}
	assertAccounting(suite.T(), suite.th, 2, 3)

	before := testutil.ToFloat64(metrics.rejected.WithLabelValues(ConcurrencyLimiting, "capacity"))
	over := suite.register("over")
	suite.False(over.isReady())
	suite.Truef(nosqlerr.Is(over.failure(), nosqlerr.CapacityExceeded),
		"expect CapacityExceeded error, got %v", over.failure())
	suite.Equal(before+1, testutil.ToFloat64(metrics.rejected.WithLabelValues(ConcurrencyLimiting, "capacity")))

	// A rejected request is not registered and cannot be signalled.
	assertAccounting(suite.T(), suite.th, 2, 3)
	err := suite.th.SignalError(over, over.failure())
	suite.Truef(nosqlerr.Is(err, nosqlerr.IllegalState), "expect IllegalState error, got %v", err)
}

func (suite *ConcurrencyThrottlerTestSuite) TestDoubleSignal() {
	t1 := suite.register("t1")
	suite.NoError(suite.th.SignalSuccess(t1))

	before := testutil.ToFloat64(metrics.doubleSignals.WithLabelValues(ConcurrencyLimiting))
	err := suite.th.SignalSuccess(t1)
	suite.Truef(nosqlerr.Is(err, nosqlerr.IllegalState), "expect IllegalState error, got %v", err)
	err = suite.th.SignalTimeout(t1)
	suite.Truef(nosqlerr.Is(err, nosqlerr.IllegalState), "expect IllegalState error, got %v", err)
	suite.Equal(before+2, testutil.ToFloat64(metrics.doubleSignals.WithLabelValues(ConcurrencyLimiting)))
	assertAccounting(suite.T(), suite.th, 0, 0)
}

func (suite *ConcurrencyThrottlerTestSuite) TestDuplicateRegister() {
	t1 := suite.register("t1")
	before := testutil.ToFloat64(metrics.rejected.WithLabelValues(ConcurrencyLimiting, "duplicate"))
	suite.th.Register(t1)
	suite.Truef(nosqlerr.Is(t1.failure(), nosqlerr.IllegalState),
		"expect IllegalState error, got %v", t1.failure())
	suite.Equal(before+1, testutil.ToFloat64(metrics.rejected.WithLabelValues(ConcurrencyLimiting, "duplicate")))
	assertAccounting(suite.T(), suite.th, 1, 0)

	// The first registration still holds its slot until it is signalled.
	suite.NoError(suite.th.SignalSuccess(t1))
	assertAccounting(suite.T(), suite.th, 0, 0)

	q1 := suite.register("q1")
	suite.register("q2")
	r1 := suite.register("r1")
	suite.th.Register(r1)
	suite.Truef(nosqlerr.Is(r1.failure(), nosqlerr.IllegalState),
		"expect IllegalState error, got %v", r1.failure())
	assertAccounting(suite.T(), suite.th, 2, 1)

	suite.NoError(suite.th.SignalSuccess(q1))
	suite.True(r1.isReady())
	assertAccounting(suite.T(), suite.th, 2, 0)
}

func (suite *ConcurrencyThrottlerTestSuite) TestClose() {
	t1 := suite.register("t1")
	suite.register("t2")
	r1 := suite.register("r1")
	r2 := suite.register("r2")

	suite.NoError(suite.th.Close())
	for _, r := range []*testTicket{r1, r2} {
		suite.False(r.isReady())
		suite.Truef(nosqlerr.Is(r.failure(), nosqlerr.ClientClosed), "expect ClientClosed error, got %v", r.failure())
	}
	assertAccounting(suite.T(), suite.th, 2, 0)

	late := suite.register("late")
	suite.Truef(nosqlerr.Is(late.failure(), nosqlerr.ClientClosed), "expect ClientClosed error, got %v", late.failure())

	// Running requests must still be signalled after close.
	suite.NoError(suite.th.SignalSuccess(t1))
	assertAccounting(suite.T(), suite.th, 1, 0)
	suite.NoError(suite.th.Close())
}

func (suite *ConcurrencyThrottlerTestSuite) TestConcurrentAccounting() {
	th, err := NewConcurrencyLimitingThrottler(4, 1000, nil)
	suite.Require().NoError(err)

	const n = 200
	tickets := make([]*testTicket, n)
	for i := range tickets {
		tickets[i] = newTicket(fmt.Sprintf("t%d", i), nil)
	}

	var wg sync.WaitGroup
	for _, tk := range tickets {
		wg.Add(1)
		go func(tk *testTicket) {
			defer wg.Done()
			th.Register(tk)
			st := th.Stats()
			suite.Equal(st.Running+st.Queued, st.Outstanding)
			suite.LessOrEqual(st.Running, 4)
		}(tk)
	}
	wg.Wait()
	assertAccounting(suite.T(), th, 4, n-4)

	// Signal every ticket, admitted or not, from many goroutines.
	for _, tk := range tickets {
		wg.Add(1)
		go func(tk *testTicket) {
			defer wg.Done()
			suite.NoError(th.SignalTimeout(tk))
		}(tk)
	}
	wg.Wait()
	assertAccounting(suite.T(), th, 0, 0)
}

func TestConcurrencyLimitingThrottler(t *testing.T) {
	suite.Run(t, new(ConcurrencyThrottlerTestSuite))
}
