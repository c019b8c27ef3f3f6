//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package httputil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
)

// RequestExecutor represents an interface used to execute an HTTP request.
type RequestExecutor interface {
	// Do is used to send an http request to server, returns an http response
	// and an error if occurred during execution.
	Do(req *http.Request) (*http.Response, error)
}

// Response represents a response that contains the content and status code
// of an http.Response returned from server.
type Response struct {
	Body []byte // HTTP response body.
	Code int    // HTTP response status code.
}

// MaxResponseSize is the largest response body ExecuteRequest reads.
const MaxResponseSize = 64 << 20

// ErrResponseTooLarge is returned by ExecuteRequest when a response body
// exceeds MaxResponseSize.
var ErrResponseTooLarge = errors.New("httputil: response body too large")

// ExecuteRequest sends an HTTP request with the specified method, url, body
// and headers through executor. The request is bound to ctx, so cancelling
// ctx aborts it.
//
// The response body is read in full and closed before ExecuteRequest
// returns. Status codes are not interpreted.
func ExecuteRequest(ctx context.Context, executor RequestExecutor, method string, url string,
	data []byte, headers map[string]string) (*Response, error) {

	var body io.Reader
	if len(data) > 0 {
		body = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := executor.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(respBody) > MaxResponseSize {
		return nil, ErrResponseTooLarge
	}

	return &Response{
		Code: httpResp.StatusCode,
		Body: respBody,
	}, nil
}
