//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"time"

	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
	"github.com/oracle/nosql-go-driver/nosqldb/types"
)

// Request represents a logical request: a statement together with the
// options that control how it is executed.
//
// A Request must not be modified after it has been passed to
// Session.Execute or Session.ExecuteAsync.
//
// Zero values of the optional fields mean "not set"; the value is then taken
// from the execution profile of the request, or from the session defaults.
type Request struct {
	// Statement specifies the statement to execute. It is required.
	Statement string

	// Values specifies the values bound to the statement's markers.
	Values []interface{}

	// Profile optionally specifies an execution profile for this request.
	// If set, it takes precedence over ProfileName.
	Profile *ExecutionProfile

	// ProfileName optionally specifies the name of a profile configured for
	// the session. An empty name selects the default profile.
	ProfileName string

	// Idempotent optionally specifies whether the request is idempotent,
	// that is, whether it can be applied more than once without changing the
	// outcome. If nil, the default idempotence of the profile is used.
	//
	// Use the Bool function to set this field.
	Idempotent *bool

	// Timeout optionally specifies the request timeout. It covers the whole
	// execution, including the time spent waiting for admission and all
	// retries.
	Timeout time.Duration

	// Consistency optionally specifies the consistency level.
	Consistency types.Consistency

	// SerialConsistency optionally specifies the serial consistency level of a
	// conditional request. It must be types.Serial or types.LocalSerial.
	SerialConsistency types.Consistency

	// PageSize optionally specifies the number of rows returned per page.
	PageSize int

	// RoutingKey optionally specifies the partition key used by the plan
	// source to order the candidate nodes.
	RoutingKey []byte

	// RoutingKeyspace optionally specifies the keyspace of the request. If
	// not set, the keyspace of the session is used.
	RoutingKeyspace string

	// Tracing specifies whether to ask the coordinator to trace the request.
	Tracing bool

	// PagingState optionally specifies the position from which to resume a
	// paged query. It is returned in Result.PagingState.
	PagingState []byte

	// Timestamp optionally specifies the client-side timestamp of the
	// request, in microseconds since the epoch.
	Timestamp int64

	// Node optionally specifies the node the request must be sent to. If set,
	// the query plan of the request contains only this node.
	Node *Node

	// CustomPayload optionally specifies opaque key/value pairs passed to the
	// node with the request.
	CustomPayload map[string][]byte
}

// Bool returns a pointer to b. It is a helper for setting Request.Idempotent
// and ExecutionProfile.DefaultIdempotence.
func Bool(b bool) *bool {
	return &b
}

func (r *Request) validate() error {
	if r == nil {
		return errNilRequest
	}

	if r.Statement == "" {
		return nosqlerr.NewIllegalArgument("Statement must be non-empty")
	}

	if r.Timeout != 0 && r.Timeout < time.Millisecond {
		return nosqlerr.NewIllegalArgument("Timeout must be greater than or equal to 1 millisecond, got %v", r.Timeout)
	}

	if r.PageSize < 0 {
		return nosqlerr.NewIllegalArgument("PageSize must not be negative, got %d", r.PageSize)
	}

	if r.Consistency != 0 && !r.Consistency.IsSet() {
		return nosqlerr.NewIllegalArgument("invalid Consistency %v", r.Consistency)
	}

	if r.SerialConsistency != 0 && !r.SerialConsistency.IsSerial() {
		return nosqlerr.NewIllegalArgument("SerialConsistency must be SERIAL or LOCAL_SERIAL, got %v",
			r.SerialConsistency)
	}

	if r.Node != nil && r.Node.ID == "" {
		return nosqlerr.NewIllegalArgument("the target Node must have an ID")
	}

	if r.Profile != nil {
		if err := r.Profile.validate(); err != nil {
			return err
		}
	}

	return nil
}
