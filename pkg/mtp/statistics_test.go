// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatistics(t *testing.T) {
	stats := NewStatistics()

	rec := Record{Variables: map[string]Variable{
		"A": {Value: 1},
		"B": {Value: math.NaN()},
		"C": {Value: math.NaN()},
	}}
	stats.RecordPosition(rec, []QualityIssue{{Type: AnomalySensorFault}})
	stats.RecordPosition(rec, nil)
	stats.RecordAbort()

	stats.RecordTransition(StateUnknown, StateResponding)
	stats.RecordTransition(StateResponding, StateRecovering)
	stats.RecordTransition(StateRecovering, StateResponding)
	stats.RecordTransition(StateRecovering, StatePowerCycleRequired)

	c := stats.Snapshot()
	assert.Equal(t, uint64(2), c.Positions)
	assert.Equal(t, uint64(4), c.NaNValues)
	assert.Equal(t, uint64(1), c.QualityIssues)
	assert.Equal(t, uint64(1), c.AbortedScans)
	assert.Equal(t, uint64(1), c.Recoveries)
	assert.Equal(t, uint64(1), c.PowerCycleEvents)
	assert.Equal(t, StatePowerCycleRequired, c.LastState)
	assert.Greater(t, c.PositionRate, 0.0)
	assert.Greater(t, c.AbortRate, 0.0)

	assert.Contains(t, c.String(), "Positions: 2")
	assert.Contains(t, c.String(), "POWER_CYCLE_REQUIRED")
	assert.Contains(t, c.String(), fmt.Sprintf("Aborted scans: 1 (%.2f/hour)", c.AbortRate))
}
