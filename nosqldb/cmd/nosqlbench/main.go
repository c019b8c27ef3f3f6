//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Command nosqlbench sends a stream of requests to a cluster through a
// session and reports how they completed.
//
// The cluster is given either with a configuration file:
//
//	nosqlbench --config session.yaml --requests 10000 --concurrency 64
//
// or with a list of node endpoints:
//
//	nosqlbench --nodes http://10.0.0.1:8080,http://10.0.0.2:8080 \
//	  --statement "select * from t where id = 1" --idempotent
//
// When --metrics-addr is set, the session metrics are served on /metrics for
// the duration of the run.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/oracle/nosql-go-driver/nosqldb"
	"github.com/oracle/nosql-go-driver/nosqldb/common"
	"github.com/oracle/nosql-go-driver/nosqldb/logger"
	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type options struct {
	configFile  string
	nodes       []string
	keyspace    string
	profile     string
	statement   string
	idempotent  *bool
	requests    int
	concurrency int
	maxRunning  int
	queueSize   int
	timeout     time.Duration
	logLevel    string
	metricsAddr string
}

func main() {
	if err := newRootCommand(&options{}, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nosqlbench:", err)
		os.Exit(1)
	}
}

func newRootCommand(opts *options, out io.Writer) *cobra.Command {
	var idempotent bool

	cmd := &cobra.Command{
		Use:   "nosqlbench",
		Short: "Send requests through a session and report their outcomes",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.configFile == "" && len(opts.nodes) == 0 {
				return fmt.Errorf("one of --config or --nodes is required")
			}
			if opts.requests < 1 || opts.concurrency < 1 {
				return fmt.Errorf("--requests and --concurrency must be positive")
			}
			if opts.queueSize < nosqldb.NoQueue {
				return fmt.Errorf("--queue must be %d or greater", nosqldb.NoQueue)
			}
			if cmd.Flags().Changed("idempotent") {
				opts.idempotent = nosqldb.Bool(idempotent)
			}
			return nil
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "session configuration file (.yaml, .yml or .properties)")
	f.StringSliceVar(&opts.nodes, "nodes", nil, "comma separated node endpoints")
	f.StringVar(&opts.keyspace, "keyspace", "", "keyspace of the requests")
	f.StringVar(&opts.profile, "profile", "", "execution profile of the requests")
	f.StringVar(&opts.statement, "statement", "select * from system.local", "statement to execute")
	f.BoolVar(&idempotent, "idempotent", false, "mark the requests idempotent (not set uses the profile default)")
	f.IntVar(&opts.requests, "requests", 1000, "number of requests to send")
	f.IntVar(&opts.concurrency, "concurrency", 16, "number of requests submitted at a time")
	f.IntVar(&opts.maxRunning, "max-running", 0, "maximum number of admitted requests (0 keeps the configured value)")
	f.IntVar(&opts.queueSize, "queue", 0, "maximum number of queued requests (0 keeps the configured value, -1 disables the queue)")
	f.DurationVar(&opts.timeout, "timeout", 0, "request timeout (0 keeps the configured value)")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level of the session, or OFF")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "address to serve metrics on")

	return cmd
}

func (opts *options) sessionConfig() (nosqldb.Config, error) {
	var cfg nosqldb.Config
	if opts.configFile != "" {
		fileCfg, err := nosqldb.LoadConfigFile(opts.configFile)
		if err != nil {
			return cfg, err
		}
		cfg = *fileCfg
	}

	for _, ep := range opts.nodes {
		cfg.Nodes = append(cfg.Nodes, nosqldb.Node{Endpoint: ep})
	}
	if opts.keyspace != "" {
		cfg.Keyspace = opts.keyspace
	}
	if opts.timeout > 0 {
		cfg.RequestTimeout = opts.timeout
	}
	if opts.maxRunning > 0 {
		cfg.Throttling.Kind = common.ConcurrencyLimiting
		cfg.Throttling.MaxConcurrentRequests = opts.maxRunning
	}
	if opts.queueSize != 0 {
		cfg.Throttling.MaxQueueSize = opts.queueSize
	}

	level, err := logger.ParseLevel(opts.logLevel)
	if err != nil {
		return cfg, err
	}
	if level == logger.Off {
		cfg.DisableLogging = true
	} else {
		cfg.Logger = logger.New(os.Stderr, level, false)
	}
	return cfg, nil
}

type report struct {
	mu          sync.Mutex
	outcomes    map[string]int
	latencies   []time.Duration
	retries     int
	speculative int
	delayed     int
}

func (r *report) add(res *nosqldb.Result, err error, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latencies = append(r.latencies, elapsed)
	if err != nil {
		r.outcomes[nosqlerr.CodeOf(err).String()]++
		return
	}
	r.outcomes["OK"]++
	r.retries += res.ExecutionInfo.NumRetries
	r.speculative += res.ExecutionInfo.SpeculativeExecutions
	if res.ExecutionInfo.ThrottleDelayed {
		r.delayed++
	}
}

func (r *report) print(out io.Writer, total time.Duration) {
	sort.Slice(r.latencies, func(i, j int) bool { return r.latencies[i] < r.latencies[j] })
	pct := func(p float64) time.Duration {
		if len(r.latencies) == 0 {
			return 0
		}
		return r.latencies[int(p*float64(len(r.latencies)-1))]
	}

	codes := make([]string, 0, len(r.outcomes))
	for code := range r.outcomes {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	fmt.Fprintf(out, "requests: %d in %v (%.0f/s)\n", len(r.latencies), total.Round(time.Millisecond),
		float64(len(r.latencies))/total.Seconds())
	for _, code := range codes {
		fmt.Fprintf(out, "  %-20s %d\n", code, r.outcomes[code])
	}
	fmt.Fprintf(out, "retries: %d, speculative executions: %d, throttle delayed: %d\n", r.retries, r.speculative, r.delayed)
	fmt.Fprintf(out, "latency: p50=%v p90=%v p99=%v max=%v\n", pct(0.5), pct(0.9), pct(0.99), pct(1))
}

// request returns a request built from the options. The idempotence is left
// to the execution profile unless --idempotent was given.
func (opts *options) request() *nosqldb.Request {
	return &nosqldb.Request{
		Statement:   opts.statement,
		ProfileName: opts.profile,
		Idempotent:  opts.idempotent,
	}
}

func run(ctx context.Context, opts *options, out io.Writer) error {
	cfg, err := opts.sessionConfig()
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		ln, err := net.Listen("tcp", opts.metricsAddr)
		if err != nil {
			return fmt.Errorf("cannot serve metrics: %w", err)
		}
		srv := &http.Server{Handler: promhttp.Handler()}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintln(os.Stderr, "nosqlbench: metrics server:", err)
			}
		}()
		defer srv.Close()
	}

	session, err := nosqldb.NewSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	rep := &report{outcomes: make(map[string]int)}
	slots := make(chan struct{}, opts.concurrency)
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < opts.requests && ctx.Err() == nil; i++ {
		req := opts.request()
		slots <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-slots
				wg.Done()
			}()
			t := time.Now()
			res, err := session.Execute(ctx, req)
			rep.add(res, err, time.Since(t))
		}()
	}
	wg.Wait()

	rep.print(out, time.Since(start))
	return nil
}
