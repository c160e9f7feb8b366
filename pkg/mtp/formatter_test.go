// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value float64
		unit  string
		want  string
	}{
		{math.NaN(), "C", "NaN"},
		{21.6249, "C", "21.62°C"},
		{475, "ohm", "475.00 Ω"},
		{-11.712, "V", "-11.712 V"},
		{13003, "counts", "13003"},
		{1.5, "hPa", "1.500 hPa"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.value, tt.unit))
		})
	}
}

func TestFormatRecord(t *testing.T) {
	rec := Record{
		Time:        time.Date(2010, 11, 3, 14, 30, 12, 0, time.UTC),
		Status:      StatusStepperMoving,
		StatusValid: true,
		Variables: map[string]Variable{
			"TNC": {Name: "TNC", Raw: Missing, Value: math.NaN(), Unit: "C"},
		},
	}

	out := FormatRecord(rec)
	assert.Contains(t, out, "[14:30:12.000] RECORD vars=1 status=stepping (0x2)")
	assert.Contains(t, out, "TNC      = NaN (raw missing)")
}

func TestFormatRawLine(t *testing.T) {
	assert.Equal(t, `cmd="\x03" "^C"`, FormatRawLine(RawLine{Command: CmdAbort, Data: []byte("^C"), Terminated: true}))
	assert.Equal(t, `cmd=- "MTP" (timeout)`, FormatRawLine(RawLine{Data: []byte("MTP")}))
}
