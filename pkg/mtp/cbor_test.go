// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRecord(t *testing.T) {
	rec := Record{
		Time:        time.Unix(1288794612, 500),
		Status:      StatusIntegratorBusy,
		StatusValid: true,
		Variables: map[string]Variable{
			"TAIR": {Name: "TAIR", Raw: 2048, Factor: 1, Value: 21.62, Unit: "C"},
			"TNC":  {Name: "TNC", Raw: 4095, Factor: 1, Value: math.NaN(), Unit: "C"},
		},
	}

	data, err := EncodeRecord(rec)
	require.NoError(t, err)

	got, err := DecodeRecord(data)
	require.NoError(t, err)

	assert.True(t, rec.Time.Equal(got.Time))
	assert.Equal(t, rec.Status, got.Status)
	assert.True(t, got.StatusValid)
	assert.Equal(t, rec.Variables["TAIR"], got.Variables["TAIR"])
	assert.Equal(t, 4095, got.Variables["TNC"].Raw)
	assert.True(t, math.IsNaN(got.Variables["TNC"].Value), "NaN survives the archive")
}

func TestDecodeRecord_Garbage(t *testing.T) {
	_, err := DecodeRecord([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestArchiveStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewArchiveWriter(&buf)

	dec := NewDecoder(DefaultCalibrationTable(), CalibrationOptions{})
	first := dec.Decode(parseSample(t, sampleRecord))
	second := dec.Decode(NewRawScanPosition())
	require.NoError(t, w.Write(first))
	require.NoError(t, w.Write(second))

	var got []Record
	require.NoError(t, ReadArchive(&buf, func(r Record) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 2)

	assert.Equal(t, first.Names(), got[0].Names())
	assert.Equal(t, first.Variables["VM08"], got[0].Variables["VM08"])
	assert.False(t, got[1].Variables["VM08"].Valid())
}
