//
// Copyright (C) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl
//
// Please see LICENSE.txt file included in the top-level directory of the
// appropriate download for a copy of the license and additional information.
//

package types

import (
	"fmt"
	"strings"
)

// Consistency is used to provide consistency guarantees for operations. It
// specifies how many replicas must acknowledge a read or a write before the
// coordinator node reports success.
//
// The zero value means "not set" and is replaced by the configured default
// when a request is resolved against its execution profile.
//
// Serial and LocalSerial are only valid as the serial consistency of a
// conditional (lightweight transaction) request.
type Consistency int

const (
	// Any allows a write to succeed once a hint has been stored.
	Any Consistency = iota + 1 // 1

	// One requires one replica.
	One // 2

	// Two requires two replicas.
	Two // 3

	// Three requires three replicas.
	Three // 4

	// Quorum requires a majority of replicas across all datacenters.
	Quorum // 5

	// All requires every replica.
	All // 6

	// LocalQuorum requires a majority of replicas in the local datacenter.
	LocalQuorum // 7

	// EachQuorum requires a majority of replicas in each datacenter.
	EachQuorum // 8

	// Serial is the serial consistency for conditional requests across datacenters.
	Serial // 9

	// LocalSerial is the serial consistency for conditional requests in the local datacenter.
	LocalSerial // 10

	// LocalOne requires one replica in the local datacenter.
	LocalOne // 11
)

var consistencyNames = [...]string{
	Any:         "ANY",
	One:         "ONE",
	Two:         "TWO",
	Three:       "THREE",
	Quorum:      "QUORUM",
	All:         "ALL",
	LocalQuorum: "LOCAL_QUORUM",
	EachQuorum:  "EACH_QUORUM",
	Serial:      "SERIAL",
	LocalSerial: "LOCAL_SERIAL",
	LocalOne:    "LOCAL_ONE",
}

// String returns the protocol name of the consistency level, such as "LOCAL_QUORUM".
func (c Consistency) String() string {
	if c > 0 && int(c) < len(consistencyNames) {
		return consistencyNames[c]
	}
	return fmt.Sprintf("Consistency(%d)", int(c))
}

// GoString defines the Go syntax for the Consistency value.
//
// This implements the fmt.GoStringer interface.
func (c Consistency) GoString() string {
	return "\"" + c.String() + "\""
}

// IsSet reports whether c is a known consistency level.
func (c Consistency) IsSet() bool {
	return c > 0 && int(c) < len(consistencyNames)
}

// IsSerial reports whether c may be used as a serial consistency.
func (c Consistency) IsSerial() bool {
	return c == Serial || c == LocalSerial
}

// ParseConsistency parses a consistency name. Matching is case-insensitive and
// accepts both "LOCAL_QUORUM" and "local-quorum" spellings.
func ParseConsistency(s string) (Consistency, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for i, n := range consistencyNames {
		if i > 0 && n == name {
			return Consistency(i), nil
		}
	}
	return 0, fmt.Errorf("unknown consistency level %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler so that consistency levels
// can be written by name in configuration files.
func (c *Consistency) UnmarshalText(text []byte) error {
	v, err := ParseConsistency(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Consistency) MarshalText() ([]byte, error) {
	if !c.IsSet() {
		return nil, fmt.Errorf("cannot marshal %v", c.String())
	}
	return []byte(c.String()), nil
}
