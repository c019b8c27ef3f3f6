//
// Copyright (C) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl
//
// Please see LICENSE.txt file included in the top-level directory of the
// appropriate download for a copy of the license and additional information.
//

package nosqldb

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
)

// RetryDecision represents what the request handling system does with an
// attempt that failed with a recoverable error.
type RetryDecision int

const (
	// RetrySame retries the request on the same node, after the delay
	// returned by RetryPolicy.Delay.
	RetrySame RetryDecision = iota // 0

	// RetryNext retries the request immediately on the next node of the
	// query plan.
	RetryNext // 1

	// Rethrow makes the error the result of the request.
	Rethrow // 2

	// Ignore discards the error. The request keeps waiting for its other
	// executions, if any.
	Ignore // 3
)

// String returns the name of the decision.
func (d RetryDecision) String() string {
	switch d {
	case RetrySame:
		return "RetrySame"
	case RetryNext:
		return "RetryNext"
	case Rethrow:
		return "Rethrow"
	case Ignore:
		return "Ignore"
	default:
		return fmt.Sprintf("RetryDecision(%d)", int(d))
	}
}

// RetryInfo describes an attempt that failed with a recoverable error.
type RetryInfo struct {
	// Request is the failed request.
	Request *Request

	// Node is the node the attempt was sent to.
	Node Node

	// Err is the error returned by the attempt.
	Err error

	// Code is the error code of Err.
	Code nosqlerr.ErrorCode

	// Idempotent reports whether the request is idempotent.
	Idempotent bool

	// NumRetries is the number of times this execution of the request has
	// already been retried.
	NumRetries uint
}

// RetryPolicy decides what to do with attempts that fail with recoverable
// errors. The request handling system only consults the policy for
// idempotent requests; a recoverable error of a request that is not
// idempotent is always rethrown.
//
// Implementations of this interface must be safe for concurrent use, since a
// policy is shared by every request of an execution profile.
type RetryPolicy interface {
	// OnError returns the decision for the failed attempt described by info.
	OnError(info RetryInfo) RetryDecision

	// Delay returns how long to wait before the request is retried on the
	// same node, having already been retried numRetries times. It must not
	// block.
	Delay(numRetries uint, err error) time.Duration
}

// DefaultBackoffBase is the base delay of the exponential backoff used by
// DefaultRetryPolicy when no retry interval is configured.
const DefaultBackoffBase = 10 * time.Millisecond

// maxBackoffShift caps the exponent of the backoff delay.
const maxBackoffShift = 16

// DefaultRetryPolicy represents the default implementation of RetryPolicy.
//
// Timeouts reported by the coordinator are retried on the same node, since
// another coordinator would face the same replicas. Errors that are specific
// to a node, such as Unavailable, Overloaded or a connection failure, are
// retried on the next node. Every other error is rethrown, as is any error
// once the maximum number of retries has been reached.
type DefaultRetryPolicy struct {
	maxNumRetries uint
	retryInterval time.Duration
}

// NewDefaultRetryPolicy creates a DefaultRetryPolicy with the specified
// maximum number of retries and retry interval. If the retry interval is 0,
// an exponential backoff with jitter is used; otherwise it must be greater
// than or equal to 1 millisecond.
func NewDefaultRetryPolicy(maxNumRetries uint, retryInterval time.Duration) (*DefaultRetryPolicy, error) {
	if retryInterval != 0 && retryInterval < time.Millisecond {
		return nil, nosqlerr.NewIllegalArgument("retry interval must be greater than or equal to 1 millisecond")
	}

	return &DefaultRetryPolicy{
		maxNumRetries: maxNumRetries,
		retryInterval: retryInterval,
	}, nil
}

// MaxNumRetries returns the maximum number of retries that this policy will
// allow before the error is reported to the application.
func (r DefaultRetryPolicy) MaxNumRetries() uint {
	return r.maxNumRetries
}

// OnError implements RetryPolicy.
func (r DefaultRetryPolicy) OnError(info RetryInfo) RetryDecision {
	if !info.Idempotent || info.NumRetries >= r.maxNumRetries {
		return Rethrow
	}

	switch info.Code {
	case nosqlerr.ReadTimeout, nosqlerr.WriteTimeout:
		return RetrySame
	case nosqlerr.Unavailable, nosqlerr.Overloaded, nosqlerr.ServerError,
		nosqlerr.IsBootstrapping, nosqlerr.ConnectionFailure:
		return RetryNext
	default:
		return Rethrow
	}
}

// Delay implements RetryPolicy.
//
// If a non-zero retryInterval is configured for the policy, this method
// returns it. Otherwise, it uses an exponential backoff algorithm to compute
// the delay.
func (r DefaultRetryPolicy) Delay(numRetries uint, err error) time.Duration {
	if r.retryInterval > 0 {
		return r.retryInterval
	}
	return computeBackoffDelay(numRetries+1, DefaultBackoffBase)
}

// FallthroughRetryPolicy is a RetryPolicy that never retries.
type FallthroughRetryPolicy struct{}

// OnError implements RetryPolicy.
func (FallthroughRetryPolicy) OnError(info RetryInfo) RetryDecision {
	return Rethrow
}

// Delay implements RetryPolicy.
func (FallthroughRetryPolicy) Delay(numRetries uint, err error) time.Duration {
	return 0
}

// Use an exponential backoff algorithm to compute time of delay.
//
// Assumption: numRetries starts with 1
// Delay = 2^(numRetries-1) * baseDelay + random jitter in [0, baseDelay)
func computeBackoffDelay(numRetries uint, baseDelay time.Duration) time.Duration {
	if numRetries < 1 {
		return baseDelay
	}
	shift := numRetries - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	d := (1 << shift) * baseDelay
	if baseDelay > 0 {
		d += time.Duration(rand.Int63n(int64(baseDelay)))
	}
	return d
}
