//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"sort"
	"time"

	"github.com/oracle/nosql-go-driver/nosqldb/nosqlerr"
	"github.com/oracle/nosql-go-driver/nosqldb/types"
)

// DefaultProfileName is the name of the profile used by requests that do not
// name one.
const DefaultProfileName = "default"

// ExecutionProfile represents a named group of execution options.
//
// Zero values mean "not set" and are filled from the session's RequestConfig
// when a request is resolved.
type ExecutionProfile struct {
	// Name specifies the profile name.
	Name string `yaml:"name"`

	// RequestTimeout specifies the request timeout.
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	// Consistency specifies the consistency level.
	Consistency types.Consistency `yaml:"consistency"`

	// SerialConsistency specifies the serial consistency level.
	SerialConsistency types.Consistency `yaml:"serialConsistency"`

	// PageSize specifies the number of rows returned per page.
	PageSize int `yaml:"pageSize"`

	// DefaultIdempotence specifies whether requests that do not set
	// Request.Idempotent are idempotent.
	DefaultIdempotence *bool `yaml:"defaultIdempotence"`

	// RetryPolicy specifies the name of the retry policy, as registered in
	// the session's PolicyRegistry.
	RetryPolicy string `yaml:"retryPolicy"`

	// MaxRetries specifies the maximum number of retries per execution for
	// the "default" retry policy. Use the "fallthrough" policy to disable
	// retries.
	MaxRetries uint `yaml:"maxRetries"`

	// RetryInterval specifies the delay before a request is retried on the
	// same node. If not set, an exponential backoff is used.
	RetryInterval time.Duration `yaml:"retryInterval"`

	// SpeculativeExecutionPolicy specifies the name of the speculative
	// execution policy, as registered in the session's PolicyRegistry.
	SpeculativeExecutionPolicy string `yaml:"speculativeExecutionPolicy"`

	// SpeculativeMaxExecutions specifies the maximum number of executions,
	// including the first one, for the "constant" speculative execution
	// policy.
	SpeculativeMaxExecutions int `yaml:"speculativeMaxExecutions"`

	// SpeculativeDelay specifies the delay between executions for the
	// "constant" speculative execution policy.
	SpeculativeDelay time.Duration `yaml:"speculativeDelay"`
}

func (p *ExecutionProfile) validate() error {
	switch {
	case p.RequestTimeout != 0 && p.RequestTimeout < time.Millisecond:
		return nosqlerr.NewIllegalArgument("profile %q: RequestTimeout must be greater than or equal to 1 millisecond, got %v",
			p.Name, p.RequestTimeout)
	case p.Consistency != 0 && !p.Consistency.IsSet():
		return nosqlerr.NewIllegalArgument("profile %q: invalid Consistency %v", p.Name, p.Consistency)
	case p.SerialConsistency != 0 && !p.SerialConsistency.IsSerial():
		return nosqlerr.NewIllegalArgument("profile %q: SerialConsistency must be SERIAL or LOCAL_SERIAL, got %v",
			p.Name, p.SerialConsistency)
	case p.PageSize < 0:
		return nosqlerr.NewIllegalArgument("profile %q: PageSize must not be negative", p.Name)
	case p.RetryInterval < 0:
		return nosqlerr.NewIllegalArgument("profile %q: RetryInterval must not be negative", p.Name)
	case p.SpeculativeMaxExecutions < 0:
		return nosqlerr.NewIllegalArgument("profile %q: SpeculativeMaxExecutions must not be negative", p.Name)
	case p.SpeculativeDelay < 0:
		return nosqlerr.NewIllegalArgument("profile %q: SpeculativeDelay must not be negative", p.Name)
	}
	return nil
}

// mergeFrom fills the fields of p that are not set from base.
func (p *ExecutionProfile) mergeFrom(base *ExecutionProfile) {
	if p.RequestTimeout == 0 {
		p.RequestTimeout = base.RequestTimeout
	}
	if p.Consistency == 0 {
		p.Consistency = base.Consistency
	}
	if p.SerialConsistency == 0 {
		p.SerialConsistency = base.SerialConsistency
	}
	if p.PageSize == 0 {
		p.PageSize = base.PageSize
	}
	if p.DefaultIdempotence == nil {
		p.DefaultIdempotence = base.DefaultIdempotence
	}
	if p.RetryPolicy == "" {
		p.RetryPolicy = base.RetryPolicy
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = base.MaxRetries
	}
	if p.RetryInterval == 0 {
		p.RetryInterval = base.RetryInterval
	}
	if p.SpeculativeExecutionPolicy == "" {
		p.SpeculativeExecutionPolicy = base.SpeculativeExecutionPolicy
	}
	if p.SpeculativeMaxExecutions == 0 {
		p.SpeculativeMaxExecutions = base.SpeculativeMaxExecutions
	}
	if p.SpeculativeDelay == 0 {
		p.SpeculativeDelay = base.SpeculativeDelay
	}
}

// ProfileTable holds the execution profiles of a session by name.
// It is immutable once created.
type ProfileTable struct {
	profiles map[string]*ExecutionProfile
}

// NewProfileTable creates a ProfileTable with the specified profiles. Profile
// names must be unique and non-empty. A profile named DefaultProfileName,
// if any, is the default profile.
func NewProfileTable(profiles ...ExecutionProfile) (*ProfileTable, error) {
	t := &ProfileTable{
		profiles: make(map[string]*ExecutionProfile, len(profiles)),
	}

	for i := range profiles {
		p := profiles[i]
		if p.Name == "" {
			return nil, nosqlerr.NewIllegalArgument("execution profile #%d has no name", i+1)
		}
		if _, ok := t.profiles[p.Name]; ok {
			return nil, nosqlerr.NewIllegalArgument("duplicate execution profile %q", p.Name)
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		t.profiles[p.Name] = &p
	}

	return t, nil
}

// Lookup returns the profile with the specified name. An empty name selects
// the default profile, and returns nil if the table has no default profile.
// A name that is not in the table is a ConfigurationError.
func (t *ProfileTable) Lookup(name string) (*ExecutionProfile, error) {
	if name == "" {
		if t == nil {
			return nil, nil
		}
		return t.profiles[DefaultProfileName], nil
	}

	if t != nil {
		if p, ok := t.profiles[name]; ok {
			return p, nil
		}
	}
	return nil, nosqlerr.NewConfigurationError("unknown execution profile %q", name)
}

// Names returns the sorted names of the profiles in the table.
func (t *ProfileTable) Names() []string {
	if t == nil {
		return nil
	}

	names := make([]string, 0, len(t.profiles))
	for name := range t.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecutionContext is the resolved, immutable configuration of one request.
type ExecutionContext struct {
	// Profile is the effective profile, with every option that was not set
	// filled from the session defaults.
	Profile ExecutionProfile

	Idempotent        bool
	Timeout           time.Duration
	Consistency       types.Consistency
	SerialConsistency types.Consistency
	PageSize          int
	Keyspace          string

	RetryPolicy       RetryPolicy
	SpeculativePolicy SpeculativeExecutionPolicy
}

// resolveExecutionContext merges the options of req with its execution
// profile and the session defaults.
//
// The profile is the inline profile of the request if there is one, else the
// named profile (the default profile when the name is empty), else the
// session defaults alone. Options the request sets explicitly override the
// profile. Idempotence is the value set on the request, else the default
// idempotence of the profile.
func resolveExecutionContext(req *Request, table *ProfileTable, defaults *RequestConfig,
	keyspace string, registry *PolicyRegistry) (*ExecutionContext, error) {

	var chosen *ExecutionProfile
	if req.Profile != nil {
		chosen = req.Profile
	} else {
		p, err := table.Lookup(req.ProfileName)
		if err != nil {
			return nil, err
		}
		chosen = p
	}

	base := defaults.profile()
	eff := base
	if chosen != nil {
		eff = *chosen
		eff.mergeFrom(&base)
	}

	retryPolicy, err := registry.newRetryPolicy(&eff)
	if err != nil {
		return nil, err
	}
	specPolicy, err := registry.newSpeculativeExecutionPolicy(&eff)
	if err != nil {
		return nil, err
	}

	ctx := &ExecutionContext{
		Profile:           eff,
		Timeout:           eff.RequestTimeout,
		Consistency:       eff.Consistency,
		SerialConsistency: eff.SerialConsistency,
		PageSize:          eff.PageSize,
		Keyspace:          keyspace,
		RetryPolicy:       retryPolicy,
		SpeculativePolicy: specPolicy,
	}

	if req.Idempotent != nil {
		ctx.Idempotent = *req.Idempotent
	} else if eff.DefaultIdempotence != nil {
		ctx.Idempotent = *eff.DefaultIdempotence
	}

	if req.Timeout > 0 {
		ctx.Timeout = req.Timeout
	}
	if req.Consistency != 0 {
		ctx.Consistency = req.Consistency
	}
	if req.SerialConsistency != 0 {
		ctx.SerialConsistency = req.SerialConsistency
	}
	if req.PageSize > 0 {
		ctx.PageSize = req.PageSize
	}
	if req.RoutingKeyspace != "" {
		ctx.Keyspace = req.RoutingKeyspace
	}

	return ctx, nil
}
