//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"context"
	"io"
	"sync"

	"github.com/oracle/nosql-go-driver/nosqldb/types"
)

// Transport sends one attempt of a request to a node.
//
// Implementations must be safe for concurrent use.
type Transport interface {
	// Execute sends msg to node and waits for the response.
	//
	// Errors reported by the node must be returned as *nosqlerr.Error values
	// with the matching code. Any other error is treated as a connection
	// failure.
	//
	// The attempt is cancelled by cancelling ctx. Execute should then return
	// promptly; a response returned after cancellation is released by the
	// caller.
	Execute(ctx context.Context, node Node, msg *Message) (*Response, error)
}

// Message represents one attempt of a request, resolved against its
// execution context.
type Message struct {
	RequestID         string            `json:"requestId"`
	Attempt           int               `json:"attempt"`
	Statement         string            `json:"statement"`
	Values            []interface{}     `json:"values,omitempty"`
	Keyspace          string            `json:"keyspace,omitempty"`
	Consistency       types.Consistency `json:"consistency"`
	SerialConsistency types.Consistency `json:"serialConsistency"`
	PageSize          int               `json:"pageSize,omitempty"`
	PagingState       []byte            `json:"pagingState,omitempty"`
	RoutingKey        []byte            `json:"routingKey,omitempty"`
	Timestamp         int64             `json:"timestamp,omitempty"`
	Tracing           bool              `json:"tracing,omitempty"`
	CustomPayload     map[string][]byte `json:"customPayload,omitempty"`
	Idempotent        bool              `json:"idempotent"`
}

// Response represents the response of a node to an attempt.
//
// A Response may hold resources of the transport until it is closed.
type Response struct {
	Payload     []byte
	Warnings    []string
	PagingState []byte

	closer    io.Closer
	closeOnce sync.Once
	closeErr  error
}

// NewResponse creates a Response. The optional closer is closed when the
// response is closed.
func NewResponse(payload []byte, closer io.Closer) *Response {
	return &Response{
		Payload: payload,
		closer:  closer,
	}
}

// Close releases the resources held by the response. It is safe to call
// Close more than once.
func (r *Response) Close() error {
	if r == nil {
		return nil
	}

	r.closeOnce.Do(func() {
		if r.closer != nil {
			r.closeErr = r.closer.Close()
		}
	})
	return r.closeErr
}
