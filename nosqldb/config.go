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
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/oracle/nosql-go-driver/nosqldb/common"
	"github.com/oracle/nosql-go-driver/nosqldb/httputil"
	"github.com/oracle/nosql-go-driver/nosqldb/logger"
	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
	"github.com/oracle/nosql-go-driver/nosqldb/types"
)

const (
	// The default timeout value for requests.
	defaultRequestTimeout = 2 * time.Second

	// The default Consistency value.
	defaultConsistency = types.LocalOne

	// The default serial Consistency value.
	defaultSerialConsistency = types.Serial

	// The default number of rows per page.
	defaultPageSize = 5000

	// The default maximum number of retries of the "default" retry policy.
	defaultMaxRetries = 3

	// The default maximum number of requests running at the same time.
	defaultMaxConcurrentRequests = 10000

	// The default maximum number of requests waiting for admission.
	defaultMaxQueueSize = 10000
)

// NoQueue is the ThrottlerConfig.MaxQueueSize value of a throttler that
// queues no request.
const NoQueue = -1

// Config represents a group of configuration parameters for a Session.
//
// When creating a Session, the Config instance is copied so modifications on
// the instance have no effect on the existing Session.
//
// Most of the configuration parameters are optional and have default values
// if not specified. Either Nodes or PlanSource must be specified.
type Config struct {
	// Nodes specifies the nodes of the cluster. Each endpoint must conform to
	// the syntax:
	//
	//   [http[s]://]host[:port]
	//
	// If port is omitted, the endpoint defaults to 443 for https and 8080 for
	// http. If protocol is omitted, the endpoint uses https if the port is
	// 443, and http in all other cases. A node without an ID is identified by
	// its host and port.
	Nodes []Node

	// Keyspace specifies the keyspace of requests that do not set
	// Request.RoutingKeyspace.
	Keyspace string

	// Configurations for requests.
	RequestConfig

	// Configurations for the request throttler.
	Throttling ThrottlerConfig

	// Configurations for HTTP client.
	httputil.HTTPConfig

	// Configurations for logging.
	LoggingConfig

	// Profiles specifies named execution profiles. A profile named "default"
	// applies to requests that name no profile.
	Profiles []ExecutionProfile

	// Transport specifies the transport used to send attempts to nodes.
	// If not specified, an HTTPTransport is used.
	Transport Transport

	// PlanSource specifies the source of query plans.
	// If not specified, a RoundRobinPlanSource over Nodes is used.
	PlanSource PlanSource

	// Throttler specifies the request throttler. If specified, the Throttling
	// configurations are ignored.
	Throttler common.RequestThrottler

	// Policies specifies the registry used to build the retry and speculative
	// execution policies named by profiles.
	// If not specified, a registry with the built-in policies is used.
	Policies *PolicyRegistry

	// Tracer specifies the tracer used to create request spans.
	// If not specified, the global tracer is used.
	Tracer opentracing.Tracer
}

// RequestConfig represents a group of configuration parameters for requests.
// They apply to requests whose execution profile does not set them.
type RequestConfig struct {
	// RequestTimeout specifies a timeout value for requests.
	// If set, it must be greater than or equal to 1 millisecond.
	// The default is 2 seconds.
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	// Consistency specifies the consistency level of requests.
	// The default is types.LocalOne.
	Consistency types.Consistency `yaml:"consistency"`

	// SerialConsistency specifies the serial consistency level of
	// conditional requests. The default is types.Serial.
	SerialConsistency types.Consistency `yaml:"serialConsistency"`

	// PageSize specifies the number of rows returned per page.
	// The default is 5000.
	PageSize int `yaml:"pageSize"`

	// DefaultIdempotence specifies whether requests are idempotent unless
	// told otherwise.
	DefaultIdempotence bool `yaml:"defaultIdempotence"`

	// RetryPolicy specifies the name of the retry policy.
	// The default is "default".
	RetryPolicy string `yaml:"retryPolicy"`

	// MaxRetries specifies the maximum number of retries per execution for
	// the "default" retry policy. The default is 3.
	MaxRetries uint `yaml:"maxRetries"`

	// RetryInterval specifies the delay before a request is retried on the
	// same node. If not set, an exponential backoff is used.
	RetryInterval time.Duration `yaml:"retryInterval"`

	// SpeculativeExecutionPolicy specifies the name of the speculative
	// execution policy. The default is "none".
	SpeculativeExecutionPolicy string `yaml:"speculativeExecutionPolicy"`

	// SpeculativeMaxExecutions and SpeculativeDelay configure the "constant"
	// speculative execution policy.
	SpeculativeMaxExecutions int           `yaml:"speculativeMaxExecutions"`
	SpeculativeDelay         time.Duration `yaml:"speculativeDelay"`
}

// DefaultRequestTimeout returns the default timeout value for requests.
// If there is no configured timeout or it is configured as 0, a default value
// (defaultRequestTimeout) of 2 seconds is used.
func (r *RequestConfig) DefaultRequestTimeout() time.Duration {
	if r == nil || r.RequestTimeout == 0 {
		return defaultRequestTimeout
	}
	return r.RequestTimeout
}

// DefaultConsistency returns the default Consistency value. If there is a
// configured Consistency it is returned. Otherwise a default value
// (defaultConsistency) of types.LocalOne is used.
func (r *RequestConfig) DefaultConsistency() types.Consistency {
	if r == nil || r.Consistency == 0 {
		return defaultConsistency
	}
	return r.Consistency
}

func (r *RequestConfig) setDefaults() {
	r.RequestTimeout = r.DefaultRequestTimeout()
	r.Consistency = r.DefaultConsistency()
	if r.SerialConsistency == 0 {
		r.SerialConsistency = defaultSerialConsistency
	}
	if r.PageSize == 0 {
		r.PageSize = defaultPageSize
	}
	if r.RetryPolicy == "" {
		r.RetryPolicy = DefaultRetry
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = defaultMaxRetries
	}
	if r.SpeculativeExecutionPolicy == "" {
		r.SpeculativeExecutionPolicy = NoSpeculation
	}
}

func (r *RequestConfig) validate() error {
	if r.RequestTimeout < time.Millisecond {
		return nosqlerr.NewIllegalArgument("RequestTimeout must be greater than or equal to 1 millisecond, got %v",
			r.RequestTimeout)
	}
	p := r.profile()
	return p.validate()
}

// profile returns the request configurations as an execution profile.
func (r *RequestConfig) profile() ExecutionProfile {
	return ExecutionProfile{
		Name:                       DefaultProfileName,
		RequestTimeout:             r.RequestTimeout,
		Consistency:                r.Consistency,
		SerialConsistency:          r.SerialConsistency,
		PageSize:                   r.PageSize,
		DefaultIdempotence:         Bool(r.DefaultIdempotence),
		RetryPolicy:                r.RetryPolicy,
		MaxRetries:                 r.MaxRetries,
		RetryInterval:              r.RetryInterval,
		SpeculativeExecutionPolicy: r.SpeculativeExecutionPolicy,
		SpeculativeMaxExecutions:   r.SpeculativeMaxExecutions,
		SpeculativeDelay:           r.SpeculativeDelay,
	}
}

// ThrottlerConfig represents the configuration of the request throttler.
type ThrottlerConfig struct {
	// Kind specifies the throttler: "concurrency-limiting", "rate-limiting"
	// or "pass-through". The default is "concurrency-limiting".
	Kind string `yaml:"kind"`

	// MaxConcurrentRequests specifies the maximum number of requests running
	// at the same time, for the concurrency-limiting throttler.
	// The default is 10000.
	MaxConcurrentRequests int `yaml:"maxConcurrentRequests"`

	// MaxRequestsPerSecond specifies the maximum number of requests started
	// per second, for the rate-limiting throttler. It is required for that
	// throttler.
	MaxRequestsPerSecond int `yaml:"maxRequestsPerSecond"`

	// MaxQueueSize specifies the maximum number of requests waiting for
	// admission. The default is 10000. Set it to NoQueue to fail requests
	// with CapacityExceeded as soon as the throttler is at capacity.
	MaxQueueSize int `yaml:"maxQueueSize"`

	// DrainInterval specifies how often the rate-limiting throttler admits
	// queued requests. The default is 10 milliseconds.
	DrainInterval time.Duration `yaml:"drainInterval"`
}

func (t *ThrottlerConfig) setDefaults() {
	if t.Kind == "" {
		t.Kind = common.ConcurrencyLimiting
	}
	if t.MaxConcurrentRequests == 0 {
		t.MaxConcurrentRequests = defaultMaxConcurrentRequests
	}
	if t.MaxQueueSize == 0 {
		t.MaxQueueSize = defaultMaxQueueSize
	}
	if t.DrainInterval == 0 {
		t.DrainInterval = common.DefaultDrainInterval
	}
}

// queueSize returns the queue bound passed to the throttler constructors.
func (t *ThrottlerConfig) queueSize() int {
	if t.MaxQueueSize == NoQueue {
		return 0
	}
	return t.MaxQueueSize
}

// newThrottler creates the throttler described by the configuration.
func (t *ThrottlerConfig) newThrottler(lgr *logger.Logger) (common.RequestThrottler, error) {
	switch t.Kind {
	case common.ConcurrencyLimiting:
		return common.NewConcurrencyLimitingThrottler(t.MaxConcurrentRequests, t.queueSize(), lgr)
	case common.RateLimiting:
		return common.NewRateLimitingThrottler(t.MaxRequestsPerSecond, t.queueSize(), t.DrainInterval, lgr)
	case common.PassThrough:
		return common.NewPassThroughThrottler(lgr), nil
	default:
		return nil, nosqlerr.NewIllegalArgument("unknown throttler %q", t.Kind)
	}
}

// LoggingConfig represents logging configurations.
type LoggingConfig struct {

	// Configurations for the logger.
	// If this is not set, use logger.DefaultLogger unless DisableLogging is set.
	*logger.Logger

	// DisableLogging represents whether logging is disabled.
	DisableLogging bool
}

// setDefaults fills the configurations that are not set with their default
// values, then validates the result.
func (c *Config) setDefaults() error {
	c.RequestConfig.setDefaults()
	c.Throttling.setDefaults()

	if c.DisableLogging {
		c.Logger = nil
	} else if c.Logger == nil {
		c.Logger = logger.DefaultLogger
	}

	nodes := make([]Node, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		protocol, host, port, err := parseEndpoint(n.Endpoint)
		if err != nil {
			return nosqlerr.NewWithCause(nosqlerr.IllegalArgument, err, "invalid node endpoint %q", n.Endpoint)
		}
		n.Endpoint = protocol + "://" + net.JoinHostPort(host, port)
		if protocol == "https" {
			c.UseHTTPS = true
		}
		if n.ID == "" {
			n.ID = net.JoinHostPort(host, port)
		}
		nodes = append(nodes, n)
	}
	c.Nodes = nodes

	if c.PlanSource == nil {
		if len(c.Nodes) == 0 {
			return nosqlerr.NewIllegalArgument("either Nodes or PlanSource must be specified")
		}
		c.PlanSource = NewRoundRobinPlanSource(c.Nodes...)
	}
	if c.Policies == nil {
		c.Policies = NewPolicyRegistry()
	}
	if c.Tracer == nil {
		c.Tracer = opentracing.GlobalTracer()
	}

	return c.validate()
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if seen[n.ID] {
			return nosqlerr.NewIllegalArgument("duplicate node %q", n.ID)
		}
		seen[n.ID] = true
	}

	if err := c.RequestConfig.validate(); err != nil {
		return err
	}

	if c.Throttler == nil {
		if c.Throttling.MaxConcurrentRequests < 0 || c.Throttling.MaxQueueSize < NoQueue {
			return nosqlerr.NewIllegalArgument("throttler limits must not be negative")
		}
	}

	return nil
}

func parseEndpoint(endpoint string) (protocol, host, port string, err error) {
	if endpoint == "" {
		err = errors.New("endpoint must be specified")
		return
	}

	if idx := strings.Index(endpoint, "://"); idx == -1 {
		host = endpoint
	} else {
		protocol = strings.ToLower(endpoint[:idx])
		if protocol != "https" && protocol != "http" {
			return "", "", "", fmt.Errorf("the specified protocol %q is not supported. "+
				"Must use \"https\" or \"http\"", protocol)
		}
		host = endpoint[idx+3:]
	}

	// Strip the ending slashes.
	host = strings.TrimRight(host, "/")

	bracket := strings.IndexByte(host, ']')
	colon := strings.LastIndexByte(host, ':')
	if colon > bracket {
		host, port, err = net.SplitHostPort(host)
		if err != nil {
			return "", "", "", err
		}
		if port != "" {
			portNum, err := strconv.Atoi(port)
			if err != nil || portNum < 0 {
				return "", "", "", fmt.Errorf("invalid port number %s", port)
			}
		}
	} else if bracket > 0 && host[0] == '[' {
		host = host[1:bracket]
	}

	if host == "" {
		return "", "", "", fmt.Errorf("invalid endpoint %q", endpoint)
	}

	switch {
	case protocol == "" && port == "":
		protocol = "https"
		port = "443"

	case protocol == "":
		if port == "443" {
			protocol = "https"
		} else {
			protocol = "http"
		}

	case port == "":
		if protocol == "https" {
			port = "443"
		} else {
			port = "8080"
		}
	}

	return
}
