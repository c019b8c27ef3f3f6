//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"fmt"
	"time"
)

// Result represents the result of a request.
type Result struct {
	// Payload is the response payload returned by the node.
	Payload []byte

	// Warnings are the warnings returned by the node, if any.
	Warnings []string

	// PagingState is the position from which to resume a paged query, or nil
	// if there are no more pages.
	PagingState []byte

	// ExecutionInfo describes how the request was executed.
	ExecutionInfo ExecutionInfo
}

// ExecutionInfo describes how a request was executed.
type ExecutionInfo struct {
	// RequestID is the identifier assigned to the request.
	RequestID string

	// Coordinator is the node that returned the result. It is the zero Node
	// if no attempt succeeded.
	Coordinator Node

	// NumRetries is the number of retries across all executions.
	NumRetries int

	// SpeculativeExecutions is the number of speculative executions that
	// were started.
	SpeculativeExecutions int

	// SuccessfulExecutionIndex is the index of the execution that returned
	// the result: 0 for the first execution, 1 for the first speculative
	// execution, and so on. It is -1 if no execution succeeded.
	SuccessfulExecutionIndex int

	// Errors are the errors returned by the failed attempts, in the order
	// they were received.
	Errors []NodeError

	// ThrottleDelayed reports whether the request had to wait for admission.
	ThrottleDelayed bool

	// Elapsed is the time between the submission of the request and its
	// completion.
	Elapsed time.Duration
}

// NodeError represents the error returned by an attempt sent to a node.
type NodeError struct {
	Node Node
	Err  error
}

func (e NodeError) String() string {
	return fmt.Sprintf("%s: %v", e.Node, e.Err)
}
