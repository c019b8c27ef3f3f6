//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates.  All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

/*
Package nosqldb provides the request execution core of the driver.

A Session accepts logical requests and drives each of them to exactly one
outcome. Every request is first resolved against an execution profile,
which decides its timeout, consistency, idempotence and the retry and
speculative execution policies that apply to it. It is then admitted by the
session's RequestThrottler, walks the query plan produced by a PlanSource,
and sends attempts to nodes through a Transport.

# Execution

A request is executed by a single goroutine that reacts to attempt
completions, retry and speculative execution timers, the request timeout
and the caller's context. The first attempt that succeeds, or the first
error the retry policy decides to rethrow, becomes the result of the
request; every other outstanding attempt is cancelled and its late response
is released.

# Idempotence

Requests that are not idempotent are never retried after a recoverable
error and are never executed speculatively, since a second attempt could
apply a write twice.

# Configuration

Sessions are configured with a Config, which may also be read from a YAML or
properties file with LoadConfigFile.
*/
package nosqldb
