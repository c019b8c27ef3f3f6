//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/oracle/nosql-go-driver/nosqldb/logger"
	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
)

// requestState is the lifecycle state of a logical request.
type requestState int32

const (
	stateCreated requestState = iota
	stateThrottleWait
	stateExecuting
	stateSucceeded
	stateFailed
	stateTimedOut
)

func (s requestState) String() string {
	switch s {
	case stateCreated:
		return "Created"
	case stateThrottleWait:
		return "ThrottleWait"
	case stateExecuting:
		return "Executing"
	case stateSucceeded:
		return "Succeeded"
	case stateFailed:
		return "Failed"
	case stateTimedOut:
		return "TimedOut"
	default:
		return fmt.Sprintf("requestState(%d)", int32(s))
	}
}

// validTransitions lists the states each state may move to.
var validTransitions = map[requestState][]requestState{
	stateCreated:      {stateThrottleWait, stateFailed},
	stateThrottleWait: {stateExecuting, stateFailed, stateTimedOut},
	stateExecuting:    {stateSucceeded, stateFailed, stateTimedOut},
}

// An execution is one independent chain of attempts of a request. The first
// execution has index 0; speculative executions follow.
type execution struct {
	index   int
	retries uint
}

// An attempt is a single transmission of the request to one node.
type attempt struct {
	exec   *execution
	node   Node
	number int
	cancel context.CancelFunc
	span   opentracing.Span
}

// attemptResult describes the outcome of an attempt. Every started attempt
// produces exactly one attemptResult.
type attemptResult struct {
	attempt *attempt
	resp    *Response
	err     error
}

type retryTask struct {
	exec *execution
	node Node
}

// requestHandler drives one logical request from admission to its terminal
// state.
//
// All the fields below the channels are owned by the event loop goroutine
// started by run, except state, which may be read concurrently.
type requestHandler struct {
	id        string
	req       *Request
	ectx      *ExecutionContext
	session   *Session
	future    *Future
	logger    *logger.Logger
	span      opentracing.Span
	submitted time.Time
	deadline  time.Time
	timeout   *time.Timer

	state int32

	// admitted is closed by OnThrottleReady, after wasDelayed is set.
	admitted   chan struct{}
	wasDelayed bool

	// rejected receives the error passed to OnThrottleFailure.
	rejected chan error

	completions chan attemptResult
	retryDue    chan retryTask

	// done is closed once the request reached its terminal state.
	done chan struct{}

	plan           QueryPlan
	attemptBase    context.Context
	executions     []*execution
	inflight       map[*attempt]struct{}
	pendingRetries int
	attempts       int
	specTimer      *time.Timer
	lastErr        error
	throttleFailed bool
	info           ExecutionInfo
}

func newRequestHandler(s *Session, id string, req *Request, ectx *ExecutionContext) *requestHandler {
	now := time.Now()
	h := &requestHandler{
		id:          id,
		req:         req,
		ectx:        ectx,
		session:     s,
		future:      newFuture(),
		logger:      s.logger.With("request", id),
		submitted:   now,
		deadline:    now.Add(ectx.Timeout),
		timeout:     time.NewTimer(ectx.Timeout),
		admitted:    make(chan struct{}),
		rejected:    make(chan error, 1),
		completions: make(chan attemptResult),
		retryDue:    make(chan retryTask),
		done:        make(chan struct{}),
		inflight:    make(map[*attempt]struct{}),
		info: ExecutionInfo{
			RequestID:                id,
			SuccessfulExecutionIndex: -1,
		},
	}
	return h
}

// OnThrottleReady implements common.Throttled.
func (h *requestHandler) OnThrottleReady(wasDelayed bool) {
	h.wasDelayed = wasDelayed
	close(h.admitted)
}

// OnThrottleFailure implements common.Throttled.
func (h *requestHandler) OnThrottleFailure(err error) {
	select {
	case h.rejected <- err:
	default:
	}
}

func (h *requestHandler) currentState() requestState {
	return requestState(atomic.LoadInt32(&h.state))
}

// transition moves the request to the specified state. It returns false, and
// leaves the state unchanged, if the move is not allowed.
func (h *requestHandler) transition(to requestState) bool {
	from := h.currentState()
	for _, s := range validTransitions[from] {
		if s == to {
			atomic.StoreInt32(&h.state, int32(to))
			h.logger.Fine("request state %s -> %s", from, to)
			return true
		}
	}
	h.logger.Error("invalid request state transition %s -> %s", from, to)
	return false
}

// start registers the request with the throttler and starts the event loop.
func (h *requestHandler) start(ctx context.Context) {
	h.span = h.session.tracer.StartSpan("nosql.request",
		opentracing.ChildOf(spanContext(ctx)),
		opentracing.StartTime(h.submitted))
	ext.SpanKindRPCClient.Set(h.span)
	h.span.SetTag("request.id", h.id)
	h.span.SetTag("request.idempotent", h.ectx.Idempotent)
	h.span.SetTag("request.profile", h.ectx.Profile.Name)
	h.span.SetTag("db.instance", h.ectx.Keyspace)
	ext.DBStatement.Set(h.span, h.req.Statement)

	metrics.inFlight.Inc()
	h.transition(stateThrottleWait)
	h.session.throttler.Register(h)
	go h.run(ctx)
}

func spanContext(ctx context.Context) opentracing.SpanContext {
	if parent := opentracing.SpanFromContext(ctx); parent != nil {
		return parent.Context()
	}
	return nil
}

func (h *requestHandler) run(ctx context.Context) {
	defer h.timeout.Stop()

	select {
	case <-h.admitted:
	case err := <-h.rejected:
		h.failThrottle(err)
		return
	case <-h.timeout.C:
		if err := h.pendingRejection(); err != nil {
			h.failThrottle(err)
			return
		}
		h.timedOut()
		return
	case <-ctx.Done():
		if err := h.pendingRejection(); err != nil {
			h.failThrottle(err)
			return
		}
		h.cancelled(ctx.Err())
		return
	}

	h.info.ThrottleDelayed = h.wasDelayed
	h.span.SetTag("throttle.delayed", h.wasDelayed)
	h.transition(stateExecuting)

	h.attemptBase = opentracing.ContextWithSpan(context.WithoutCancel(ctx), h.span)
	h.plan = h.newPlan()
	node, ok := h.plan.Next()
	if !ok {
		h.fail(nosqlerr.New(nosqlerr.NoNodesAvailable,
			"no node is available to execute request %s", h.id))
		return
	}
	h.startExecution(node)

	for {
		var specC <-chan time.Time
		if h.specTimer != nil {
			specC = h.specTimer.C
		}

		select {
		case r := <-h.completions:
			delete(h.inflight, r.attempt)
			if h.onCompletion(r) {
				return
			}

		case <-specC:
			h.specTimer = nil
			if h.deadlinePassed() {
				h.timedOut()
				return
			}
			h.startSpeculativeExecution()

		case t := <-h.retryDue:
			h.pendingRetries--
			if h.deadlinePassed() {
				h.timedOut()
				return
			}
			h.startAttempt(t.exec, t.node)

		case <-h.timeout.C:
			h.timedOut()
			return

		case <-ctx.Done():
			h.cancelled(ctx.Err())
			return
		}
	}
}

// pendingRejection reports a throttle failure that raced with a timeout or a
// cancellation.
func (h *requestHandler) pendingRejection() error {
	select {
	case err := <-h.rejected:
		return err
	default:
		return nil
	}
}

func (h *requestHandler) newPlan() QueryPlan {
	if h.req.Node != nil {
		return NewQueryPlan(*h.req.Node)
	}
	if p := h.session.planSource.NewQueryPlan(h.req, h.ectx.Keyspace); p != nil {
		return p
	}
	return NewQueryPlan()
}

func (h *requestHandler) deadlinePassed() bool {
	return !time.Now().Before(h.deadline)
}

// live returns the number of attempts that are in flight or waiting to be
// retried.
func (h *requestHandler) live() int {
	return len(h.inflight) + h.pendingRetries
}

func (h *requestHandler) startExecution(node Node) {
	exec := &execution{index: len(h.executions)}
	h.executions = append(h.executions, exec)
	h.startAttempt(exec, node)
	h.armSpeculativeTimer(node)
}

func (h *requestHandler) armSpeculativeTimer(node Node) {
	if !h.ectx.Idempotent {
		return
	}

	delay := h.ectx.SpeculativePolicy.NextExecution(node, h.ectx.Keyspace, h.req, len(h.executions))
	if delay < 0 {
		return
	}
	h.specTimer = time.NewTimer(delay)
}

func (h *requestHandler) startSpeculativeExecution() {
	node, ok := h.plan.Next()
	if !ok {
		h.logger.Trace("no node left for a speculative execution")
		return
	}

	h.info.SpeculativeExecutions++
	metrics.speculative.Inc()
	h.logger.Debug("starting speculative execution #%d on node %s", len(h.executions), node)
	h.startExecution(node)
}

func (h *requestHandler) startAttempt(exec *execution, node Node) {
	h.attempts++
	span := h.session.tracer.StartSpan("nosql.attempt", opentracing.ChildOf(h.span.Context()))
	ext.SpanKindRPCClient.Set(span)
	ext.PeerService.Set(span, node.ID)
	ext.PeerAddress.Set(span, node.Endpoint)
	span.SetTag("attempt.number", h.attempts)
	span.SetTag("attempt.execution", exec.index)

	ctx, cancel := context.WithCancel(opentracing.ContextWithSpan(h.attemptBase, span))
	a := &attempt{
		exec:   exec,
		node:   node,
		number: h.attempts,
		cancel: cancel,
		span:   span,
	}
	h.inflight[a] = struct{}{}

	msg := h.message(a)
	h.logger.Trace("sending attempt #%d to node %s", a.number, node)
	transport := h.session.transport
	go func() {
		resp, err := transport.Execute(ctx, node, msg)
		h.completions <- attemptResult{attempt: a, resp: resp, err: err}
	}()
}

func (h *requestHandler) message(a *attempt) *Message {
	return &Message{
		RequestID:         h.id,
		Attempt:           a.number,
		Statement:         h.req.Statement,
		Values:            h.req.Values,
		Keyspace:          h.ectx.Keyspace,
		Consistency:       h.ectx.Consistency,
		SerialConsistency: h.ectx.SerialConsistency,
		PageSize:          h.ectx.PageSize,
		PagingState:       h.req.PagingState,
		RoutingKey:        h.req.RoutingKey,
		Timestamp:         h.req.Timestamp,
		Tracing:           h.req.Tracing,
		CustomPayload:     h.req.CustomPayload,
		Idempotent:        h.ectx.Idempotent,
	}
}

func (a *attempt) finish(err error) {
	a.cancel()
	if err != nil {
		ext.Error.Set(a.span, true)
		a.span.LogKV("event", "error", "message", err.Error())
	}
	a.span.Finish()
}

// onCompletion handles the outcome of an attempt. It returns true if the
// request reached its terminal state.
func (h *requestHandler) onCompletion(r attemptResult) bool {
	a := r.attempt
	if r.err == nil {
		a.finish(nil)
		metrics.attempts.WithLabelValues("success").Inc()
		h.succeed(a, r.resp)
		return true
	}

	// An attempt that fails after returning a response still owns it.
	r.resp.Close()

	err := classifyError(r.err)
	a.finish(err)
	code := nosqlerr.CodeOf(err)
	metrics.attempts.WithLabelValues(code.String()).Inc()
	h.info.Errors = append(h.info.Errors, NodeError{Node: a.node, Err: err})
	h.lastErr = err

	var decision RetryDecision
	switch {
	case !nosqlerr.IsRecoverable(err), !h.ectx.Idempotent:
		decision = Rethrow
	default:
		decision = h.ectx.RetryPolicy.OnError(RetryInfo{
			Request:    h.req,
			Node:       a.node,
			Err:        err,
			Code:       code,
			Idempotent: h.ectx.Idempotent,
			NumRetries: a.exec.retries,
		})
	}
	metrics.retries.WithLabelValues(decision.String()).Inc()
	h.logger.Debug("attempt #%d on node %s failed: %v, decision: %s", a.number, a.node, err, decision)

	if h.deadlinePassed() {
		h.timedOut()
		return true
	}

	switch decision {
	case RetrySame:
		delay := h.ectx.RetryPolicy.Delay(a.exec.retries, err)
		a.exec.retries++
		h.info.NumRetries++
		if delay <= 0 {
			h.startAttempt(a.exec, a.node)
		} else {
			h.scheduleRetry(a.exec, a.node, delay)
		}

	case RetryNext:
		if node, ok := h.plan.Next(); ok {
			a.exec.retries++
			h.info.NumRetries++
			h.startAttempt(a.exec, node)
		} else if h.live() == 0 {
			h.fail(nosqlerr.NewWithCause(nosqlerr.NoNodesAvailable, err,
				"all nodes tried for request %s failed", h.id))
			return true
		}

	case Ignore:
		if h.live() == 0 {
			h.succeedEmpty()
			return true
		}

	default:
		h.fail(err)
		return true
	}

	return false
}

// classifyError returns err if it carries an error code. Any other error comes
// from the transport and is a connection failure.
func classifyError(err error) error {
	if nosqlerr.Is(err) {
		return err
	}
	return nosqlerr.NewWithCause(nosqlerr.ConnectionFailure, err, "attempt failed")
}

func (h *requestHandler) scheduleRetry(exec *execution, node Node, delay time.Duration) {
	h.pendingRetries++
	task := retryTask{exec: exec, node: node}
	time.AfterFunc(delay, func() {
		select {
		case h.retryDue <- task:
		case <-h.done:
		}
	})
}

func (h *requestHandler) succeed(a *attempt, resp *Response) {
	h.info.Coordinator = a.node
	h.info.SuccessfulExecutionIndex = a.exec.index

	res := &Result{}
	if resp != nil {
		res.Payload = resp.Payload
		res.Warnings = resp.Warnings
		res.PagingState = resp.PagingState
		if err := resp.Close(); err != nil {
			h.logger.Debug("cannot close response from node %s: %v", a.node, err)
		}
	}
	h.complete(stateSucceeded, res, nil)
}

func (h *requestHandler) succeedEmpty() {
	h.complete(stateSucceeded, &Result{}, nil)
}

func (h *requestHandler) fail(err error) {
	h.complete(stateFailed, nil, err)
}

func (h *requestHandler) failThrottle(err error) {
	h.throttleFailed = true
	h.complete(stateFailed, nil, err)
}

func (h *requestHandler) timedOut() {
	err := nosqlerr.NewWithCause(nosqlerr.RequestTimeout, h.lastErr,
		"request %s timed out after %v", h.id, h.ectx.Timeout)
	h.complete(stateTimedOut, nil, err)
}

func (h *requestHandler) cancelled(cause error) {
	code := nosqlerr.RequestCancelled
	if errors.Is(cause, context.DeadlineExceeded) {
		code = nosqlerr.RequestTimeout
	}
	h.complete(stateTimedOut, nil, nosqlerr.NewWithCause(code, cause, "request %s was abandoned", h.id))
}

// complete moves the request to its terminal state, releases everything it
// holds and resolves its future. The throttler is signalled before the future
// is resolved.
func (h *requestHandler) complete(state requestState, res *Result, err error) {
	if !h.transition(state) {
		return
	}
	close(h.done)

	if h.specTimer != nil {
		h.specTimer.Stop()
		h.specTimer = nil
	}
	for a := range h.inflight {
		a.cancel()
	}
	if n := len(h.inflight); n > 0 {
		go h.drain(n)
	}

	h.signalThrottler(state, err)

	h.info.Elapsed = time.Since(h.submitted)
	if res != nil {
		res.ExecutionInfo = h.info
	}

	outcome := h.outcome(state, err)
	metrics.requests.WithLabelValues(outcome).Inc()
	metrics.latency.Observe(h.info.Elapsed.Seconds())
	metrics.inFlight.Dec()

	h.span.SetTag("request.outcome", outcome)
	h.span.SetTag("request.retries", h.info.NumRetries)
	if err != nil {
		ext.Error.Set(h.span, true)
		h.span.LogKV("event", "error", "message", err.Error())
		h.logger.Debug("request failed after %v: %v", h.info.Elapsed, err)
	} else {
		h.logger.Fine("request succeeded on node %s after %v", h.info.Coordinator, h.info.Elapsed)
	}
	h.span.Finish()

	h.future.resolve(res, err)
}

func (h *requestHandler) signalThrottler(state requestState, err error) {
	if h.throttleFailed {
		return
	}

	th := h.session.throttler
	var serr error
	switch state {
	case stateSucceeded:
		serr = th.SignalSuccess(h)
	case stateFailed:
		serr = th.SignalError(h, err)
	default:
		serr = th.SignalTimeout(h)
	}
	if serr == nil {
		return
	}

	// The throttler may have failed the request while it was queued, just
	// before the timeout fired.
	if h.pendingRejection() != nil {
		return
	}
	h.logger.Error("cannot signal the throttler: %v", serr)
}

func (h *requestHandler) outcome(state requestState, err error) string {
	switch {
	case state == stateSucceeded:
		return "success"
	case h.throttleFailed:
		return "rejected"
	case nosqlerr.Is(err, nosqlerr.RequestCancelled):
		return "cancelled"
	case state == stateTimedOut:
		return "timeout"
	default:
		return "error"
	}
}

// drain consumes the completions of the n attempts that were outstanding when
// the request completed, and releases their responses.
func (h *requestHandler) drain(n int) {
	for ; n > 0; n-- {
		r := <-h.completions
		r.attempt.finish(nil)
		if r.resp != nil {
			metrics.lateResponses.Inc()
			if err := r.resp.Close(); err != nil {
				h.logger.Trace("cannot close late response from node %s: %v", r.attempt.node, err)
			}
		}
	}
}
