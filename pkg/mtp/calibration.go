// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import "math"

// Missing marks a raw count that was absent from the telemetry line.
const Missing = -1

// 12-bit converter fault sentinels: an open or shorted thermistor pins the
// count at either rail.
const (
	countShorted = 0
	countOpen    = 4095
)

// LegacyOverflowCount was once filtered as "not available". The filter is
// disabled because it confused users; see CalibrationOptions.
const LegacyOverflowCount = 16383

// Thermistor bridge model
const (
	thermistorFullScale = 4096.0
	thermistorBridge    = 34800.0 // ohms

	thermistorA = 0.0009376
	thermistorB = 0.0002208
	thermistorC = 0.0000001276

	kelvinOffset = 273.15
)

// Platinum RTD reference resistors, read on the first and last Pt slots.
const (
	PtLowReference  = 350.0 // ohms
	PtHighReference = 600.0 // ohms
)

// CalibrationOptions tweaks decode behaviour for edge cases.
type CalibrationOptions struct {
	// LegacyOverflowFilter treats LegacyOverflowCount as missing.
	LegacyOverflowFilter bool
}

// IsMissing reports whether raw should decode to NaN before any model runs.
func (o CalibrationOptions) IsMissing(raw int) bool {
	if raw == Missing {
		return true
	}
	return o.LegacyOverflowFilter && raw == LegacyOverflowCount
}

// DecodeVoltage scales a millivolt count by factor. Missing counts give NaN.
func DecodeVoltage(raw int, factor float64) float64 {
	if raw == Missing {
		return math.NaN()
	}
	return factor * (float64(raw) / 1000.0)
}

// DecodeResistance applies a two-point linear calibration anchored at
// (lowCount, lowResistance) and (highCount, highResistance).
// Coincident anchors cannot be told apart and give NaN for every count.
func DecodeResistance(raw, lowCount int, lowResistance float64, highCount int, highResistance float64) float64 {
	if raw == Missing || lowCount == Missing || highCount == Missing {
		return math.NaN()
	}
	if lowCount == highCount {
		return math.NaN()
	}
	if raw == lowCount {
		return lowResistance
	}
	if raw == highCount {
		return highResistance
	}
	span := float64(highCount - lowCount)
	return lowResistance + (highResistance-lowResistance)*float64(raw-lowCount)/span
}

// DecodeTemperature converts a 12-bit thermistor count to degrees Celsius.
// The rails (0 and 4095) are open/short sentinels and give NaN, as do
// counts outside the converter range.
func DecodeTemperature(raw int) float64 {
	if raw <= countShorted || raw >= countOpen {
		return math.NaN()
	}
	cnt := thermistorFullScale - float64(raw)
	rr := thermistorFullScale/cnt - 1
	rt := thermistorBridge * rr
	if rt <= 0 {
		return math.NaN()
	}
	lnRt := math.Log(rt)
	return 1/(thermistorA+thermistorB*lnRt+thermistorC*lnRt*lnRt*lnRt) - kelvinOffset
}

// CalibratePt converts a Pt line to ohms. Slots 0 and 7 hold the reference
// resistor counts and anchor the six inner channels; the anchors themselves
// decode to their reference values.
func CalibratePt(counts [PtCount]int) [PtCount]float64 {
	var out [PtCount]float64
	low := counts[0]
	high := counts[PtCount-1]
	for i, c := range counts {
		out[i] = DecodeResistance(c, low, PtLowReference, high, PtHighReference)
	}
	return out
}
