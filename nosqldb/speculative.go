//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"time"

	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
)

// SpeculativeExecutionPolicy decides whether to start additional executions
// of a request while earlier ones are still outstanding.
//
// Speculative executions are only started for idempotent requests.
//
// Implementations of this interface must be safe for concurrent use.
type SpeculativeExecutionPolicy interface {
	// NextExecution returns how long to wait before starting another
	// execution of req, given that runningExecutions executions have been
	// started so far, the last one on node. A negative duration means that
	// no further execution is started.
	NextExecution(node Node, keyspace string, req *Request, runningExecutions int) time.Duration
}

// NoSpeculativeExecutionPolicy is a SpeculativeExecutionPolicy that never
// starts speculative executions.
type NoSpeculativeExecutionPolicy struct{}

// NextExecution implements SpeculativeExecutionPolicy.
func (NoSpeculativeExecutionPolicy) NextExecution(node Node, keyspace string, req *Request, runningExecutions int) time.Duration {
	return -1
}

// ConstantSpeculativeExecutionPolicy is a SpeculativeExecutionPolicy that
// starts executions at a constant interval, up to a maximum number of
// executions.
type ConstantSpeculativeExecutionPolicy struct {
	maxExecutions int
	delay         time.Duration
}

// NewConstantSpeculativeExecutionPolicy creates a policy that starts a new
// execution every delay, as long as fewer than maxExecutions executions,
// including the first one, have been started.
func NewConstantSpeculativeExecutionPolicy(maxExecutions int, delay time.Duration) (*ConstantSpeculativeExecutionPolicy, error) {
	if maxExecutions < 1 {
		return nil, nosqlerr.NewIllegalArgument("maxExecutions must be at least 1, got %d", maxExecutions)
	}
	if delay < 0 {
		return nil, nosqlerr.NewIllegalArgument("delay must not be negative, got %v", delay)
	}

	return &ConstantSpeculativeExecutionPolicy{
		maxExecutions: maxExecutions,
		delay:         delay,
	}, nil
}

// NextExecution implements SpeculativeExecutionPolicy.
func (p *ConstantSpeculativeExecutionPolicy) NextExecution(node Node, keyspace string, req *Request, runningExecutions int) time.Duration {
	if runningExecutions < p.maxExecutions {
		return p.delay
	}
	return -1
}
