// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecord = `A 20101103T143012 +01.23 -00.45 ST:02
B 018012 019003 019545 018101 019021 019600 018200 019100 019650 018300 019200 019700 018400 019300 019750 018500 019400 019800 018600 019500 019850 018700 019600 019900 018800 019700 019950 018900 019800 020000
M01: 2928 2321 2898 3082 1923 2921 2432 2944
M02: 2010 1848 1880 2084 1999 2051 4095 1967
Pt: 002173 013809 013817 012340 012015 012200 012100 022130
E 012001 012002 012003 013001 013002 013003
`

func TestRawScanPosition_ParseLine(t *testing.T) {
	pos := NewRawScanPosition()
	for _, line := range strings.Split(sampleRecord, "\n") {
		pos.ParseLine(line)
	}

	assert.Equal(t, "20101103T143012 +01.23 -00.45 ST:02", pos.Attitude)
	assert.True(t, pos.StatusValid)
	assert.True(t, pos.Status.StepperBusy())

	assert.Equal(t, 18012, pos.Brightness[0])
	assert.Equal(t, 20000, pos.Brightness[BrightnessCount-1])
	assert.Equal(t, 2928, pos.Count(GroupM01, 0))
	assert.Equal(t, 4095, pos.Count(GroupM02, 6))
	assert.Equal(t, 2173, pos.Count(GroupPt, 0))
	assert.Equal(t, 13003, pos.Count(GroupAux, 5))
	assert.Equal(t, Missing, pos.Count(GroupAux, 6))
	assert.Equal(t, Missing, pos.Count(Group("X"), 0))
}

func TestRawScanPosition_ShortAndUnknownLines(t *testing.T) {
	pos := NewRawScanPosition()

	assert.True(t, pos.ParseLine("M01: 2928 2321 bogus"))
	assert.False(t, pos.ParseLine("IWG1,20101103T143012,39.91,-105.11"))
	assert.False(t, pos.ParseLine(""))

	assert.Equal(t, [MuxCount]int{2928, 2321, Missing, Missing, Missing, Missing, Missing, Missing}, pos.M01)
	assert.Equal(t, Missing, pos.Pt[0], "untouched groups stay missing")
}

func TestRawScanPosition_Lines(t *testing.T) {
	pos := NewRawScanPosition()
	pos.ParseLine("A 20101103T143012")
	pos.ParseLine("M01: 2928 2321")
	pos.ParseLine("E 1 2 3 4 5 6")

	lines := pos.Lines()
	require.Len(t, lines, 6)
	assert.Equal(t, "A 20101103T143012", lines[0])
	assert.Equal(t, "M01: 2928 2321 ---- ---- ---- ---- ---- ----", lines[2])
	assert.Equal(t, "E 000001 000002 000003 000004 000005 000006", lines[5])

	again := NewRawScanPosition()
	for _, l := range lines {
		again.ParseLine(l)
	}
	assert.Equal(t, pos, again)
}

func TestReadRawRecords(t *testing.T) {
	input := "garbage before first record\n" +
		sampleRecord +
		"IWG1,20101103T143013,39.91,-105.11\n" +
		"A 20101103T143030 ST:00\n" +
		"M01: 1 2 3 4 5 6 7 8\n"

	var got []RawScanPosition
	err := ReadRawRecords(strings.NewReader(input), func(p RawScanPosition) error {
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 2928, got[0].M01[0])
	assert.Equal(t, 1, got[1].M01[0])
	assert.Equal(t, Missing, got[1].Pt[0])
	assert.Equal(t, StatusWord(0), got[1].Status)
}

func TestReadRawRecords_CallbackStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := ReadRawRecords(strings.NewReader(sampleRecord+sampleRecord), func(RawScanPosition) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
