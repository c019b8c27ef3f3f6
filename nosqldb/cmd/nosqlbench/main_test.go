//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oracle/nosql-go-driver/nosqldb"
	"github.com/oracle/nosql-go-driver/nosqldb/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagValidation(t *testing.T) {
	tests := []struct {
		args    []string
		wantErr string
	}{
		{nil, "one of --config or --nodes is required"},
		{[]string{"--nodes", "h:8080", "--requests", "0"}, "must be positive"},
		{[]string{"--nodes", "h:8080", "--concurrency", "-1"}, "must be positive"},
		{[]string{"--nodes", "h:8080", "extra"}, "unknown command"},
		{[]string{"--nodes", "h:8080", "--queue", "-2"}, "--queue must be -1 or greater"},
	}

	for _, r := range tests {
		cmd := newRootCommand(&options{}, &bytes.Buffer{})
		cmd.SetArgs(r.args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		err := cmd.Execute()
		if assert.Errorf(t, err, "%v should have failed", r.args) {
			assert.Containsf(t, err.Error(), r.wantErr, "%v got unexpected error", r.args)
		}
	}
}

func TestIdempotentFlag(t *testing.T) {
	tests := []struct {
		args []string
		want *bool
	}{
		{[]string{"--nodes", "h:8080"}, nil},
		{[]string{"--nodes", "h:8080", "--idempotent"}, nosqldb.Bool(true)},
		{[]string{"--nodes", "h:8080", "--idempotent=false"}, nosqldb.Bool(false)},
	}

	for _, r := range tests {
		opts := &options{}
		cmd := newRootCommand(opts, &bytes.Buffer{})
		cmd.RunE = func(*cobra.Command, []string) error { return nil }
		cmd.SetArgs(r.args)
		require.NoErrorf(t, cmd.Execute(), "%v", r.args)
		assert.Equalf(t, r.want, opts.request().Idempotent, "%v", r.args)
	}
}

func TestSessionConfig(t *testing.T) {
	opts := &options{
		nodes:      []string{"http://h1:8080", "h2:9000"},
		keyspace:   "ks",
		timeout:    time.Second,
		maxRunning: 8,
		queueSize:  16,
		logLevel:   "off",
	}
	cfg, err := opts.sessionConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Nodes, 2)
	assert.Equal(t, "ks", cfg.Keyspace)
	assert.Equal(t, time.Second, cfg.RequestTimeout)
	assert.Equal(t, common.ConcurrencyLimiting, cfg.Throttling.Kind)
	assert.Equal(t, 8, cfg.Throttling.MaxConcurrentRequests)
	assert.Equal(t, 16, cfg.Throttling.MaxQueueSize)
	assert.True(t, cfg.DisableLogging)

	opts.logLevel = "debug"
	cfg, err = opts.sessionConfig()
	require.NoError(t, err)
	assert.NotNil(t, cfg.Logger)

	opts.logLevel = "loud"
	_, err = opts.sessionConfig()
	assert.Error(t, err)

	opts.logLevel = "off"
	opts.queueSize = nosqldb.NoQueue
	cfg, err = opts.sessionConfig()
	require.NoError(t, err)
	assert.Equal(t, nosqldb.NoQueue, cfg.Throttling.MaxQueueSize)
}

func TestRunMetricsAddress(t *testing.T) {
	opts := &options{
		nodes:       []string{"http://127.0.0.1:1"},
		requests:    1,
		concurrency: 1,
		logLevel:    "off",
		metricsAddr: "127.0.0.1:-1",
	}
	err := run(context.Background(), opts, &bytes.Buffer{})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "cannot serve metrics")
	}
}

func TestRun(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1)%5 == 0 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":51,"message":"bad syntax"}`))
			return
		}
		w.Write([]byte(`{"payload":"b2s="}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	opts := &options{
		nodes:       []string{srv.URL},
		statement:   "select 1",
		requests:    20,
		concurrency: 4,
		logLevel:    "off",
	}
	require.NoError(t, run(context.Background(), opts, &out))

	assert.Equal(t, int32(20), atomic.LoadInt32(&calls))
	assert.Contains(t, out.String(), "requests: 20 in")
	assert.Regexp(t, `OK\s+16`, out.String())
	assert.Regexp(t, `SyntaxError\s+4`, out.String())
	assert.Contains(t, out.String(), "latency: p50=")
}
