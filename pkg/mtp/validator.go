// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"fmt"
	"math"
)

// AnomalyType classifies a telemetry data-quality issue
type AnomalyType int

const (
	AnomalyMissing AnomalyType = iota
	AnomalySensorFault
	AnomalyOutOfRange
	AnomalySynthesizerUnlocked
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyMissing:
		return "missing"
	case AnomalySensorFault:
		return "sensor-fault"
	case AnomalyOutOfRange:
		return "out-of-range"
	case AnomalySynthesizerUnlocked:
		return "synth-unlocked"
	}
	return "unknown"
}

// QualityIssue describes one suspicious value in a record. Issues are
// reported, never fatal.
type QualityIssue struct {
	Type     AnomalyType
	Variable string
	Message  string
	Details  map[string]interface{}
}

// Error implements the error interface
func (q *QualityIssue) Error() string {
	return q.Message
}

// Plausible value ranges per kind
var kindLimits = map[Kind][2]float64{
	KindTemperature: {-90, 80},    // °C
	KindResistance:  {300, 650},   // ohms
	KindVoltage:     {-30, 30},    // V
	KindCount:       {0, 1 << 20}, // counts
}

// ValidateRecord lists data-quality issues in rec using table to know each
// variable's kind.
func ValidateRecord(rec Record, table CalibrationTable) []QualityIssue {
	issues := []QualityIssue{}

	for _, name := range rec.Names() {
		v := rec.Variables[name]
		e, ok := table[name]
		if !ok {
			continue
		}

		if math.IsNaN(v.Value) {
			if v.Raw == Missing {
				issues = append(issues, QualityIssue{
					Type:     AnomalyMissing,
					Variable: name,
					Message:  fmt.Sprintf("%s missing", name),
					Details:  map[string]interface{}{"raw": v.Raw},
				})
			} else {
				issues = append(issues, QualityIssue{
					Type:     AnomalySensorFault,
					Variable: name,
					Message:  fmt.Sprintf("%s sensor fault (raw=%d)", name, v.Raw),
					Details:  map[string]interface{}{"raw": v.Raw},
				})
			}
			continue
		}

		limits, ok := kindLimits[e.Kind]
		if !ok {
			continue
		}
		if v.Value < limits[0] || v.Value > limits[1] {
			issues = append(issues, QualityIssue{
				Type:     AnomalyOutOfRange,
				Variable: name,
				Message:  fmt.Sprintf("%s=%.2f%s outside %.0f..%.0f", name, v.Value, v.Unit, limits[0], limits[1]),
				Details:  map[string]interface{}{"value": v.Value, "min": limits[0], "max": limits[1]},
			})
		}
	}

	if rec.StatusValid && rec.Status.SynthesizerUnlocked() {
		issues = append(issues, QualityIssue{
			Type:    AnomalySynthesizerUnlocked,
			Message: "synthesizer unlocked during scan",
			Details: map[string]interface{}{"status": uint8(rec.Status)},
		})
	}

	return issues
}
