// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSample(t *testing.T, text string) Record {
	t.Helper()
	return NewDecoder(DefaultCalibrationTable(), CalibrationOptions{}).Decode(parseSample(t, text))
}

func TestValidateRecord_SensorFault(t *testing.T) {
	rec := decodeSample(t, sampleRecord)

	issues := ValidateRecord(rec, DefaultCalibrationTable())
	require.Len(t, issues, 1)
	assert.Equal(t, AnomalySensorFault, issues[0].Type)
	assert.Equal(t, "TNC", issues[0].Variable)
	assert.Equal(t, 4095, issues[0].Details["raw"])
}

func TestValidateRecord_Missing(t *testing.T) {
	text := strings.Replace(sampleRecord, "E 012001 012002 012003 013001 013002 013003\n", "", 1)
	rec := decodeSample(t, text)

	missing := 0
	for _, issue := range ValidateRecord(rec, DefaultCalibrationTable()) {
		if issue.Type == AnomalyMissing {
			missing++
		}
	}
	assert.Equal(t, AuxCount, missing)
}

func TestValidateRecord_OutOfRange(t *testing.T) {
	text := strings.Replace(sampleRecord, "M02: 2010 1848", "M02: 2010 0010", 1)
	rec := decodeSample(t, text)

	var found *QualityIssue
	issues := ValidateRecord(rec, DefaultCalibrationTable())
	for i := range issues {
		if issues[i].Variable == "TDAT" {
			found = &issues[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, AnomalyOutOfRange, found.Type)
	assert.Contains(t, found.Error(), "TDAT=")
}

func TestValidateRecord_SynthesizerUnlocked(t *testing.T) {
	text := strings.Replace(sampleRecord, "ST:02", "ST:04", 1)
	rec := decodeSample(t, text)

	issues := ValidateRecord(rec, DefaultCalibrationTable())
	require.NotEmpty(t, issues)
	last := issues[len(issues)-1]
	assert.Equal(t, AnomalySynthesizerUnlocked, last.Type)
	assert.Equal(t, "synth-unlocked", last.Type.String())
}

func TestValidateRecord_IgnoresUnknownVariables(t *testing.T) {
	rec := Record{Variables: map[string]Variable{"EXTRA": {Name: "EXTRA", Raw: Missing}}}
	assert.Empty(t, ValidateRecord(rec, DefaultCalibrationTable()))
}
