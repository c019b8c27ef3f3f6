//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"sync"

	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
)

// Names of the built-in policies.
const (
	DefaultRetry        = "default"
	FallthroughRetry    = "fallthrough"
	NoSpeculation       = "none"
	ConstantSpeculation = "constant"
)

// RetryPolicyFactory builds a RetryPolicy from the options of an execution
// profile.
type RetryPolicyFactory func(p *ExecutionProfile) (RetryPolicy, error)

// SpeculativeExecutionPolicyFactory builds a SpeculativeExecutionPolicy from
// the options of an execution profile.
type SpeculativeExecutionPolicyFactory func(p *ExecutionProfile) (SpeculativeExecutionPolicy, error)

// PolicyRegistry maps the policy names carried by execution profiles to the
// factories that build them.
//
// A registry created with NewPolicyRegistry knows the built-in policies:
// "default" and "fallthrough" retry policies, "none" and "constant"
// speculative execution policies.
type PolicyRegistry struct {
	mu          sync.RWMutex
	retry       map[string]RetryPolicyFactory
	speculative map[string]SpeculativeExecutionPolicyFactory
}

// NewPolicyRegistry creates a PolicyRegistry with the built-in policies.
func NewPolicyRegistry() *PolicyRegistry {
	r := &PolicyRegistry{
		retry:       make(map[string]RetryPolicyFactory),
		speculative: make(map[string]SpeculativeExecutionPolicyFactory),
	}

	r.retry[DefaultRetry] = func(p *ExecutionProfile) (RetryPolicy, error) {
		return NewDefaultRetryPolicy(p.MaxRetries, p.RetryInterval)
	}
	r.retry[FallthroughRetry] = func(p *ExecutionProfile) (RetryPolicy, error) {
		return FallthroughRetryPolicy{}, nil
	}
	r.speculative[NoSpeculation] = func(p *ExecutionProfile) (SpeculativeExecutionPolicy, error) {
		return NoSpeculativeExecutionPolicy{}, nil
	}
	r.speculative[ConstantSpeculation] = func(p *ExecutionProfile) (SpeculativeExecutionPolicy, error) {
		return NewConstantSpeculativeExecutionPolicy(p.SpeculativeMaxExecutions, p.SpeculativeDelay)
	}

	return r
}

// RegisterRetryPolicy registers a retry policy under the specified name,
// replacing any policy already registered under that name.
func (r *PolicyRegistry) RegisterRetryPolicy(name string, f RetryPolicyFactory) error {
	if name == "" || f == nil {
		return nosqlerr.NewIllegalArgument("a retry policy needs a name and a factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.retry[name] = f
	return nil
}

// RegisterSpeculativeExecutionPolicy registers a speculative execution policy
// under the specified name, replacing any policy already registered under
// that name.
func (r *PolicyRegistry) RegisterSpeculativeExecutionPolicy(name string, f SpeculativeExecutionPolicyFactory) error {
	if name == "" || f == nil {
		return nosqlerr.NewIllegalArgument("a speculative execution policy needs a name and a factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.speculative[name] = f
	return nil
}

func (r *PolicyRegistry) newRetryPolicy(p *ExecutionProfile) (RetryPolicy, error) {
	r.mu.RLock()
	f, ok := r.retry[p.RetryPolicy]
	r.mu.RUnlock()
	if !ok {
		return nil, nosqlerr.NewConfigurationError("unknown retry policy %q", p.RetryPolicy)
	}

	rp, err := f(p)
	if err != nil {
		return nil, nosqlerr.NewWithCause(nosqlerr.ConfigurationError, err,
			"cannot create retry policy %q", p.RetryPolicy)
	}
	return rp, nil
}

func (r *PolicyRegistry) newSpeculativeExecutionPolicy(p *ExecutionProfile) (SpeculativeExecutionPolicy, error) {
	r.mu.RLock()
	f, ok := r.speculative[p.SpeculativeExecutionPolicy]
	r.mu.RUnlock()
	if !ok {
		return nil, nosqlerr.NewConfigurationError("unknown speculative execution policy %q",
			p.SpeculativeExecutionPolicy)
	}

	sp, err := f(p)
	if err != nil {
		return nil, nosqlerr.NewWithCause(nosqlerr.ConfigurationError, err,
			"cannot create speculative execution policy %q", p.SpeculativeExecutionPolicy)
	}
	return sp, nil
}
