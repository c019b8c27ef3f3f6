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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConsistency(t *testing.T) {
	tests := []struct {
		in      string
		want    Consistency
		wantErr bool
	}{
		{"ONE", One, false},
		{"local_quorum", LocalQuorum, false},
		{"local-serial", LocalSerial, false},
		{" Quorum ", Quorum, false},
		{"", 0, true},
		{"TWELVE", 0, true},
	}

	for _, r := range tests {
		c, err := ParseConsistency(r.in)
		if r.wantErr {
			assert.Errorf(t, err, "ParseConsistency(%q) should have failed", r.in)
			continue
		}
		if assert.NoErrorf(t, err, "ParseConsistency(%q)", r.in) {
			assert.Equalf(t, r.want, c, "ParseConsistency(%q)", r.in)
		}
	}
}

func TestConsistencyString(t *testing.T) {
	assert.Equal(t, "LOCAL_ONE", LocalOne.String())
	assert.Equal(t, "Consistency(0)", Consistency(0).String())
	assert.False(t, Consistency(0).IsSet())
	assert.True(t, Serial.IsSerial())
	assert.False(t, Quorum.IsSerial())

	var c Consistency
	if assert.NoError(t, c.UnmarshalText([]byte("each_quorum"))) {
		assert.Equal(t, EachQuorum, c)
	}
	b, err := c.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "EACH_QUORUM", string(b))
}
