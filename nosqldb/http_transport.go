//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/oracle/nosql-go-driver/nosqldb/httputil"
	"github.com/oracle/nosql-go-driver/nosqldb/internal/sdkutil"
	"github.com/oracle/nosql-go-driver/nosqldb/logger"
	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
)

// HTTPTransport is a Transport that posts each attempt as a JSON document to
// the execute endpoint of the node.
//
// A successful response has status 200 and a body of the form:
//
//	{"payload": "<base64>", "warnings": ["..."], "pagingState": "<base64>"}
//
// An error response carries the error code and message reported by the node:
//
//	{"code": 104, "message": "..."}
//
// Error responses without a body are classified by their status code.
type HTTPTransport struct {
	executor httputil.RequestExecutor
	logger   *logger.Logger
}

// NewHTTPTransport creates an HTTPTransport that sends requests with the
// specified executor, typically an *httputil.HTTPClient.
func NewHTTPTransport(executor httputil.RequestExecutor, lgr *logger.Logger) *HTTPTransport {
	return &HTTPTransport{
		executor: executor,
		logger:   lgr,
	}
}

type httpResponseBody struct {
	Payload     []byte   `json:"payload"`
	Warnings    []string `json:"warnings,omitempty"`
	PagingState []byte   `json:"pagingState,omitempty"`
}

type httpErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Execute implements Transport.
func (t *HTTPTransport) Execute(ctx context.Context, node Node, msg *Message) (*Response, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, nosqlerr.NewIllegalArgument("cannot encode request %s: %v", msg.RequestID, err)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   sdkutil.UserAgent(),
		"X-Request-Id": msg.RequestID,
	}

	url := strings.TrimRight(node.Endpoint, "/") + sdkutil.ExecuteURI
	resp, err := httputil.ExecuteRequest(ctx, t.executor, http.MethodPost, url, data, headers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, httputil.ErrResponseTooLarge) {
			return nil, nosqlerr.NewWithCause(nosqlerr.ProtocolError, err,
				"node %s returned a response larger than %d bytes", node, httputil.MaxResponseSize)
		}
		return nil, nosqlerr.NewWithCause(nosqlerr.ConnectionFailure, err,
			"cannot send request %s to node %s", msg.RequestID, node)
	}

	if resp.Code != http.StatusOK {
		return nil, t.wrapResponseError(node, resp)
	}

	var body httpResponseBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, nosqlerr.NewWithCause(nosqlerr.ProtocolError, err,
			"node %s returned an invalid response", node)
	}

	return &Response{
		Payload:     body.Payload,
		Warnings:    body.Warnings,
		PagingState: body.PagingState,
	}, nil
}

// wrapResponseError converts an error response into an error with the code
// reported by the node, or with a code derived from the HTTP status.
func (t *HTTPTransport) wrapResponseError(node Node, resp *httputil.Response) error {
	var body httpErrorBody
	if len(resp.Body) > 0 && json.Unmarshal(resp.Body, &body) == nil && body.Code != 0 {
		code := nosqlerr.ErrorCode(body.Code)
		if !code.IsKnown() {
			t.logger.Debug("node %s returned unknown error code %d", node, body.Code)
			code = nosqlerr.UnknownError
		}
		return nosqlerr.New(code, "%s", body.Message)
	}

	var code nosqlerr.ErrorCode
	switch resp.Code {
	case http.StatusServiceUnavailable:
		code = nosqlerr.Unavailable
	case http.StatusTooManyRequests:
		code = nosqlerr.Overloaded
	case http.StatusGatewayTimeout, http.StatusBadGateway:
		code = nosqlerr.ConnectionFailure
	case http.StatusUnauthorized:
		code = nosqlerr.AuthenticationError
	case http.StatusForbidden:
		code = nosqlerr.Unauthorized
	case http.StatusBadRequest:
		code = nosqlerr.InvalidQuery
	default:
		if resp.Code >= 500 {
			code = nosqlerr.ServerError
		} else {
			code = nosqlerr.ProtocolError
		}
	}
	return nosqlerr.New(code, "error response from node %s: %d %s",
		node, resp.Code, http.StatusText(resp.Code))
}
