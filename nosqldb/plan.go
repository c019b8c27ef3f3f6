//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	"sync/atomic"
)

// Node represents a node of the cluster.
type Node struct {
	// ID uniquely identifies the node.
	ID string `yaml:"id"`

	// Endpoint specifies the address the transport uses to reach the node.
	Endpoint string `yaml:"endpoint"`

	// Datacenter optionally specifies the datacenter of the node.
	Datacenter string `yaml:"datacenter"`
}

func (n Node) String() string {
	if n.Endpoint == "" || n.Endpoint == n.ID {
		return n.ID
	}
	return n.ID + "(" + n.Endpoint + ")"
}

// QueryPlan is the ordered sequence of candidate nodes for one request.
//
// A plan is consumed once: Next returns each node at most once, and once it
// has returned false it keeps returning false. A plan is owned by a single
// request and is not safe for concurrent use.
type QueryPlan interface {
	// Next returns the next candidate node, or false if the plan is
	// exhausted.
	Next() (Node, bool)
}

// PlanSource produces the query plan of each request.
//
// Implementations must be safe for concurrent use.
type PlanSource interface {
	// NewQueryPlan returns the query plan for req, whose effective keyspace
	// is keyspace.
	NewQueryPlan(req *Request, keyspace string) QueryPlan
}

type sliceQueryPlan struct {
	nodes []Node
	pos   int
}

// NewQueryPlan returns a QueryPlan over the specified nodes, in order.
// Nodes whose ID appeared earlier in the list are skipped.
func NewQueryPlan(nodes ...Node) QueryPlan {
	seen := make(map[string]struct{}, len(nodes))
	p := &sliceQueryPlan{nodes: make([]Node, 0, len(nodes))}
	for _, n := range nodes {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		p.nodes = append(p.nodes, n)
	}
	return p
}

func (p *sliceQueryPlan) Next() (Node, bool) {
	if p.pos >= len(p.nodes) {
		return Node{}, false
	}
	n := p.nodes[p.pos]
	p.pos++
	return n, true
}

// RoundRobinPlanSource is a PlanSource that rotates the starting node of each
// plan over a fixed list of nodes.
type RoundRobinPlanSource struct {
	nodes []Node
	next  uint32
}

// NewRoundRobinPlanSource creates a RoundRobinPlanSource over the specified
// nodes.
func NewRoundRobinPlanSource(nodes ...Node) *RoundRobinPlanSource {
	return &RoundRobinPlanSource{
		nodes: append([]Node(nil), nodes...),
	}
}

// NewQueryPlan implements PlanSource.
func (s *RoundRobinPlanSource) NewQueryPlan(req *Request, keyspace string) QueryPlan {
	n := len(s.nodes)
	if n == 0 {
		return NewQueryPlan()
	}

	start := int((atomic.AddUint32(&s.next, 1) - 1) % uint32(n))
	nodes := make([]Node, 0, n)
	nodes = append(nodes, s.nodes[start:]...)
	nodes = append(nodes, s.nodes[:start]...)
	return NewQueryPlan(nodes...)
}
