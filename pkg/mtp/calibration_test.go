// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDecodeTemperature(t *testing.T) {
	assert.InDelta(t, 21.62, DecodeTemperature(2048), 0.01)

	for _, raw := range []int{Missing, 0, 4095, 4096, 16383} {
		assert.True(t, math.IsNaN(DecodeTemperature(raw)), "raw %d", raw)
	}
}

func TestDecodeTemperature_FiniteInsideRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.IntRange(1, 4094).Draw(t, "raw")
		v := DecodeTemperature(raw)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("raw %d decoded to %v", raw, v)
		}
	})
}

func TestDecodeTemperature_Monotonic(t *testing.T) {
	// More counts means higher thermistor resistance, so lower temperature.
	prev := DecodeTemperature(1)
	for raw := 2; raw < 4095; raw++ {
		v := DecodeTemperature(raw)
		assert.Less(t, v, prev, "raw %d", raw)
		prev = v
	}
}

func TestDecodeVoltage(t *testing.T) {
	assert.InDelta(t, 5.0, DecodeVoltage(2000, 2.5), 1e-12)
	assert.InDelta(t, -8.0, DecodeVoltage(2000, -4), 1e-12)
	assert.True(t, math.IsNaN(DecodeVoltage(Missing, 2.5)))
}

func TestDecodeResistance_Anchors(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		low := rapid.IntRange(0, 20000).Draw(t, "low")
		high := rapid.IntRange(0, 20000).Filter(func(h int) bool { return h != low }).Draw(t, "high")
		lowR := rapid.Float64Range(1, 1000).Draw(t, "lowR")
		highR := rapid.Float64Range(1, 1000).Draw(t, "highR")

		if got := DecodeResistance(low, low, lowR, high, highR); got != lowR {
			t.Fatalf("low anchor decoded to %v, want %v", got, lowR)
		}
		if got := DecodeResistance(high, low, lowR, high, highR); got != highR {
			t.Fatalf("high anchor decoded to %v, want %v", got, highR)
		}
	})
}

func TestDecodeResistance_Interpolates(t *testing.T) {
	assert.InDelta(t, 475.0, DecodeResistance(1500, 1000, 350, 2000, 600), 1e-9)
	assert.True(t, math.IsNaN(DecodeResistance(Missing, 1000, 350, 2000, 600)))
	assert.True(t, math.IsNaN(DecodeResistance(1500, Missing, 350, 2000, 600)))
	assert.True(t, math.IsNaN(DecodeResistance(1500, 1000, 350, Missing, 600)))
}

func TestDecodeResistance_CoincidentAnchors(t *testing.T) {
	for _, raw := range []int{1000, 999, 1001} {
		assert.True(t, math.IsNaN(DecodeResistance(raw, 1000, 350, 1000, 600)), "raw %d", raw)
	}

	counts := [PtCount]int{1000, 1200, 1400, 1500, 1600, 1800, 1900, 1000}
	for i, ohms := range CalibratePt(counts) {
		assert.True(t, math.IsNaN(ohms), "slot %d", i)
	}
}

func TestCalibratePt(t *testing.T) {
	counts := [PtCount]int{1000, 1200, 1400, 1500, 1600, 1800, Missing, 2000}
	ohms := CalibratePt(counts)

	assert.Equal(t, PtLowReference, ohms[0])
	assert.Equal(t, PtHighReference, ohms[7])
	assert.InDelta(t, 475.0, ohms[3], 1e-9)
	assert.True(t, math.IsNaN(ohms[6]))
}

func TestCalibrationOptions_LegacyFilter(t *testing.T) {
	var opts CalibrationOptions
	assert.True(t, opts.IsMissing(Missing))
	assert.False(t, opts.IsMissing(LegacyOverflowCount), "legacy filter is off by default")

	opts.LegacyOverflowFilter = true
	assert.True(t, opts.IsMissing(LegacyOverflowCount))
	assert.False(t, opts.IsMissing(16382))
}
