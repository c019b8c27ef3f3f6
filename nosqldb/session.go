//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/oracle/nosql-go-driver/nosqldb/common"
	"github.com/oracle/nosql-go-driver/nosqldb/httputil"
	"github.com/oracle/nosql-go-driver/nosqldb/logger"
	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
)

var (
	errNilRequest = nosqlerr.NewIllegalArgument("request must be non-nil")
	errNilContext = nosqlerr.NewIllegalArgument("context must be non-nil")
)

// Session executes requests against the nodes of a cluster.
//
// A Session is safe for concurrent use by multiple goroutines. Applications
// should create one Session per cluster and close it when it is no longer
// needed.
type Session struct {
	config Config

	logger     *logger.Logger
	transport  Transport
	planSource PlanSource
	throttler  common.RequestThrottler
	tracer     opentracing.Tracer
	profiles   *ProfileTable
	httpClient *httputil.HTTPClient

	closed    int32
	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a Session with the specified configuration.
//
// The configuration is copied, so later changes to cfg have no effect on the
// Session.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	profiles, err := NewProfileTable(cfg.Profiles...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		config:     cfg,
		logger:     cfg.Logger,
		transport:  cfg.Transport,
		planSource: cfg.PlanSource,
		throttler:  cfg.Throttler,
		tracer:     cfg.Tracer,
		profiles:   profiles,
	}

	if s.transport == nil {
		s.httpClient, err = httputil.NewHTTPClient(cfg.HTTPConfig)
		if err != nil {
			return nil, err
		}
		s.transport = NewHTTPTransport(s.httpClient, s.logger)
	}

	if s.throttler == nil {
		s.throttler, err = cfg.Throttling.newThrottler(s.logger)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("session created with %d node(s), %s throttler, profiles %v",
		len(cfg.Nodes), cfg.Throttling.Kind, profiles.Names())
	return s, nil
}

// Execute executes the request and waits for its outcome.
//
// The request is abandoned when ctx is done. The error returned is then a
// RequestCancelled error, or a RequestTimeout error if the context deadline
// was exceeded.
func (s *Session) Execute(ctx context.Context, req *Request) (*Result, error) {
	return s.ExecuteAsync(ctx, req).Wait()
}

// ExecuteAsync submits the request and returns a Future that is resolved
// with its outcome.
//
// The request is validated and its execution profile resolved before it is
// submitted to the throttler; an invalid request or an unknown profile
// resolves the Future immediately.
func (s *Session) ExecuteAsync(ctx context.Context, req *Request) *Future {
	if ctx == nil {
		return resolvedFuture(errNilContext)
	}
	if s.isClosed() {
		return resolvedFuture(nosqlerr.New(nosqlerr.ClientClosed, "the session is closed"))
	}
	if err := req.validate(); err != nil {
		return resolvedFuture(err)
	}

	ectx, err := resolveExecutionContext(req, s.profiles, &s.config.RequestConfig,
		s.config.Keyspace, s.config.Policies)
	if err != nil {
		return resolvedFuture(err)
	}

	h := newRequestHandler(s, uuid.NewString(), req, ectx)
	h.start(ctx)
	return h.future
}

func resolvedFuture(err error) *Future {
	f := newFuture()
	f.resolve(nil, err)
	return f
}

// ResolveExecutionContext returns the execution context the session would
// use for the request, without executing it.
func (s *Session) ResolveExecutionContext(req *Request) (*ExecutionContext, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return resolveExecutionContext(req, s.profiles, &s.config.RequestConfig,
		s.config.Keyspace, s.config.Policies)
}

// ThrottleStats returns a snapshot of the throttler's bookkeeping.
func (s *Session) ThrottleStats() common.ThrottleStats {
	return s.throttler.Stats()
}

// Profiles returns the execution profiles of the session.
func (s *Session) Profiles() *ProfileTable {
	return s.profiles
}

// Keyspace returns the keyspace of the session.
func (s *Session) Keyspace() string {
	return s.config.Keyspace
}

// Close closes the session. Requests waiting for admission fail with a
// ClientClosed error, as do requests submitted afterwards. Requests that are
// already executing run to completion.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.closed, 1)
		s.closeErr = s.throttler.Close()
		if s.httpClient != nil {
			s.httpClient.CloseIdleConnections()
		}
		s.logger.Info("session closed")
	})
	return s.closeErr
}

func (s *Session) isClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}
