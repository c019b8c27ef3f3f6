//
// Copyright (C) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl
//
// Please see LICENSE.txt file included in the top-level directory of the
// appropriate download for a copy of the license and additional information.
//

package sdkutil

import (
	"fmt"
	"runtime"
)

const (
	// Major, minor and patch versions for the driver.
	major = 1
	minor = 0
	patch = 0

	// ExecuteURI is the path nodes serve requests on.
	ExecuteURI = "/v1/execute"
)

var driverVersion, userAgent string

// Sets driverVersion and userAgent in package init function
func init() {
	driverVersion = fmt.Sprintf("%d.%d.%d", major, minor, patch)
	// A sample User-Agent header: NoSQL-GoDriver/1.0.0 (go1.22; linux/amd64)
	userAgent = fmt.Sprintf("NoSQL-GoDriver/%s (%s; %s/%s)",
		driverVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// DriverVersion returns the driver version.
func DriverVersion() string {
	return driverVersion
}

// UserAgent returns a descriptive string that can be set in the "User-Agent"
// header of HTTP requests.
func UserAgent() string {
	return userAgent
}
