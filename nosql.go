//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

/*
This is the Go driver for multi-node NoSQL clusters.

# Packages

The nosqldb package holds the Session, which executes requests against the
nodes of a cluster with retries, speculative executions and admission
throttling. The throttlers themselves live in nosqldb/common, the error
codes in nosqldb/nosqlerr and the consistency levels in nosqldb/types.

# Configuration

A session is configured with a nosqldb.Config, built in code or loaded from a
YAML or properties file with nosqldb.LoadConfigFile.

# Benchmark

The nosqldb/cmd/nosqlbench command sends a stream of requests through a
session and reports their outcomes and latencies.
*/
package nosql
