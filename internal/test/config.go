//
// Copyright (C) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl
//
// Please see LICENSE.txt file included in the top-level directory of the
// appropriate download for a copy of the license and additional information.
//

// Package test provides fakes, configurations and utility functions for
// session tests.
package test

import (
	"flag"
	"strings"
	"sync"
	"time"

	"github.com/oracle/nosql-go-driver/nosqldb"
)

var (
	liveConfigOnce sync.Once
	liveConfig     *nosqldb.Config
	liveConfigErr  error
)

const (
	// OkTimeout represents a request timeout long enough for any test
	// scenario to complete.
	OkTimeout = 5 * time.Second

	// BadTimeout represents an invalid value for the request timeout that is
	// less than 1 millisecond.
	BadTimeout = time.Millisecond - 1

	// WaitTimeout represents how long tests wait for an asynchronous
	// condition to hold.
	WaitTimeout = 2 * time.Second

	// PollInterval represents how often tests check an asynchronous
	// condition.
	PollInterval = 2 * time.Millisecond
)

// findConfigFile returns the file specified on the command line of the form:
//
//	testConfig=<path to configuration file>
func findConfigFile() string {
	if !flag.Parsed() {
		flag.Parse()
	}

	const key = "testConfig="
	for _, arg := range flag.Args() {
		if strings.HasPrefix(arg, key) {
			return arg[len(key):]
		}
	}
	return ""
}

// LiveConfig returns the session configuration read from the file specified
// by the testConfig argument, for tests that run against a live cluster.
// It returns nil if no file is specified.
func LiveConfig() (*nosqldb.Config, error) {
	liveConfigOnce.Do(func() {
		file := findConfigFile()
		if file == "" {
			return
		}
		liveConfig, liveConfigErr = nosqldb.LoadConfigFile(file)
	})
	if liveConfig == nil {
		return nil, liveConfigErr
	}

	cfg := *liveConfig
	return &cfg, liveConfigErr
}
