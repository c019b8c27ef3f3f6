//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oracle/nosql-go-driver/nosqldb/httputil"
	"github.com/oracle/nosql-go-driver/nosqldb/internal/sdkutil"
	"github.com/oracle/nosql-go-driver/nosqldb/logger"
	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
	"github.com/oracle/nosql-go-driver/nosqldb/types"
	"gopkg.in/yaml.v3"
)

// fileConfig is the part of Config that can be read from a file.
type fileConfig struct {
	Nodes        []Node              `yaml:"nodes"`
	Keyspace     string              `yaml:"keyspace"`
	Request      RequestConfig       `yaml:",inline"`
	Throttling   ThrottlerConfig     `yaml:"throttling"`
	HTTP         httputil.HTTPConfig `yaml:"http"`
	Profiles     []ExecutionProfile  `yaml:"profiles"`
	LogLevel     string              `yaml:"logLevel"`
	UseLocalTime bool                `yaml:"useLocalTime"`
}

func (fc *fileConfig) toConfig() (*Config, error) {
	cfg := &Config{
		Nodes:         fc.Nodes,
		Keyspace:      fc.Keyspace,
		RequestConfig: fc.Request,
		Throttling:    fc.Throttling,
		HTTPConfig:    fc.HTTP,
		Profiles:      fc.Profiles,
	}

	if fc.LogLevel != "" {
		level, err := logger.ParseLevel(fc.LogLevel)
		if err != nil {
			return nil, nosqlerr.NewIllegalArgument("%v", err)
		}
		if level == logger.Off {
			cfg.DisableLogging = true
		} else {
			cfg.Logger = logger.New(os.Stderr, level, fc.UseLocalTime)
		}
	}
	return cfg, nil
}

// LoadConfigFile reads a Config from the specified file. Files with a ".yaml"
// or ".yml" extension are read as YAML documents; other files are read as
// properties files made of name=value lines.
//
// The YAML document mirrors the Config fields:
//
//	nodes:
//	  - endpoint: http://10.0.0.1:8080
//	    datacenter: dc1
//	keyspace: ks1
//	requestTimeout: 2s
//	consistency: LOCAL_QUORUM
//	throttling:
//	  kind: concurrency-limiting
//	  maxConcurrentRequests: 512
//	profiles:
//	  - name: olap
//	    requestTimeout: 30s
//	    defaultIdempotence: true
//
// In a properties file, nodes are a comma separated list of endpoints, and
// profile options are named "profile.<name>.<option>":
//
//	nodes=http://10.0.0.1:8080,http://10.0.0.2:8080
//	requestTimeout=2s
//	throttling.maxConcurrentRequests=512
//	profile.olap.requestTimeout=30s
//
// Only the options that can be written in a file are read; the returned
// Config may be completed by the application before creating a Session.
func LoadConfigFile(file string) (*Config, error) {
	path, err := sdkutil.ExpandPath(file)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAMLConfig(path)
	default:
		return loadPropertiesConfig(path)
	}
}

func loadYAMLConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, nosqlerr.NewWithCause(nosqlerr.IllegalArgument, err, "invalid configuration file %s", path)
	}
	return fc.toConfig()
}

func loadPropertiesConfig(path string) (*Config, error) {
	p, err := sdkutil.ReadProperties(path)
	if err != nil {
		return nil, nosqlerr.NewWithCause(nosqlerr.IllegalArgument, err, "invalid configuration file %s", path)
	}

	var fc fileConfig
	profiles := make(map[string]*ExecutionProfile)
	var profileNames []string

	for _, key := range p.Keys() {
		value, _ := p.Get(key)

		if strings.HasPrefix(key, "profile.") {
			rest := strings.TrimPrefix(key, "profile.")
			idx := strings.LastIndex(rest, ".")
			if idx <= 0 {
				return nil, nosqlerr.NewIllegalArgument("invalid profile property %q at %s:%d", key, path, p.Line(key))
			}
			name := rest[:idx]
			prof, ok := profiles[name]
			if !ok {
				prof = &ExecutionProfile{Name: name}
				profiles[name] = prof
				profileNames = append(profileNames, name)
			}
			if err := setProfileOption(prof, rest[idx+1:], value); err != nil {
				return nil, nosqlerr.NewWithCause(nosqlerr.IllegalArgument, err, "invalid property %q at %s:%d", key, path, p.Line(key))
			}
			continue
		}

		if err := setFileOption(&fc, key, value); err != nil {
			return nil, nosqlerr.NewWithCause(nosqlerr.IllegalArgument, err, "invalid property %q at %s:%d", key, path, p.Line(key))
		}
	}

	for _, name := range profileNames {
		fc.Profiles = append(fc.Profiles, *profiles[name])
	}
	return fc.toConfig()
}

func setFileOption(fc *fileConfig, key, value string) (err error) {
	switch key {
	case "nodes":
		for _, ep := range strings.Split(value, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				fc.Nodes = append(fc.Nodes, Node{Endpoint: ep})
			}
		}
	case "keyspace":
		fc.Keyspace = value
	case "logLevel":
		fc.LogLevel = value
	case "useLocalTime":
		fc.UseLocalTime, err = strconv.ParseBool(value)
	case "defaultIdempotence":
		fc.Request.DefaultIdempotence, err = strconv.ParseBool(value)
	case "throttling.kind":
		fc.Throttling.Kind = value
	case "throttling.maxConcurrentRequests":
		fc.Throttling.MaxConcurrentRequests, err = strconv.Atoi(value)
	case "throttling.maxRequestsPerSecond":
		fc.Throttling.MaxRequestsPerSecond, err = strconv.Atoi(value)
	case "throttling.maxQueueSize":
		fc.Throttling.MaxQueueSize, err = strconv.Atoi(value)
	case "throttling.drainInterval":
		fc.Throttling.DrainInterval, err = time.ParseDuration(value)
	default:
		// Request options share their names with profile options.
		prof := fc.Request.profile()
		if err = setProfileOption(&prof, key, value); err != nil {
			return err
		}
		fc.Request = RequestConfig{
			RequestTimeout:             prof.RequestTimeout,
			Consistency:                prof.Consistency,
			SerialConsistency:          prof.SerialConsistency,
			PageSize:                   prof.PageSize,
			DefaultIdempotence:         fc.Request.DefaultIdempotence,
			RetryPolicy:                prof.RetryPolicy,
			MaxRetries:                 prof.MaxRetries,
			RetryInterval:              prof.RetryInterval,
			SpeculativeExecutionPolicy: prof.SpeculativeExecutionPolicy,
			SpeculativeMaxExecutions:   prof.SpeculativeMaxExecutions,
			SpeculativeDelay:           prof.SpeculativeDelay,
		}
	}
	return err
}

func setProfileOption(p *ExecutionProfile, option, value string) (err error) {
	switch option {
	case "requestTimeout":
		p.RequestTimeout, err = time.ParseDuration(value)
	case "consistency":
		p.Consistency, err = types.ParseConsistency(value)
	case "serialConsistency":
		p.SerialConsistency, err = types.ParseConsistency(value)
	case "pageSize":
		p.PageSize, err = strconv.Atoi(value)
	case "defaultIdempotence":
		var b bool
		b, err = strconv.ParseBool(value)
		p.DefaultIdempotence = Bool(b)
	case "retryPolicy":
		p.RetryPolicy = value
	case "maxRetries":
		var n uint64
		n, err = strconv.ParseUint(value, 10, 32)
		p.MaxRetries = uint(n)
	case "retryInterval":
		p.RetryInterval, err = time.ParseDuration(value)
	case "speculativeExecutionPolicy":
		p.SpeculativeExecutionPolicy = value
	case "speculativeMaxExecutions":
		p.SpeculativeMaxExecutions, err = strconv.Atoi(value)
	case "speculativeDelay":
		p.SpeculativeDelay, err = time.ParseDuration(value)
	default:
		return nosqlerr.NewIllegalArgument("unknown option %q", option)
	}
	return err
}
