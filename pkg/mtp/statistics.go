// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Counters is a point-in-time copy of session statistics
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	Positions        uint64
	AbortedScans     uint64
	Recoveries       uint64 // transitions Recovering -> Responding
	PowerCycleEvents uint64
	NaNValues        uint64
	QualityIssues    uint64

	LastState SessionState

	// Rates (calculated)
	PositionRate float64 // positions/min
	AbortRate    float64 // aborts/hour
}

// Statistics tracks scan and link statistics. Safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{c: Counters{StartTime: now, LastUpdateTime: now}}
}

// RecordPosition counts a decoded position and its quality issues.
func (s *Statistics) RecordPosition(rec Record, issues []QualityIssue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Positions++
	for _, v := range rec.Variables {
		if !v.Valid() {
			s.c.NaNValues++
		}
	}
	s.c.QualityIssues += uint64(len(issues))
	s.c.LastUpdateTime = time.Now()
}

// RecordAbort counts an aborted scan.
func (s *Statistics) RecordAbort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.AbortedScans++
	s.c.LastUpdateTime = time.Now()
}

// RecordTransition counts session state transitions. It matches the
// signature of SessionConfig.OnStateChange.
func (s *Statistics) RecordTransition(from, to SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.LastState = to
	switch {
	case from == StateRecovering && to == StateResponding:
		s.c.Recoveries++
	case to == StatePowerCycleRequired:
		s.c.PowerCycleEvents++
	}
	s.c.LastUpdateTime = time.Now()
}

// Snapshot calculates rates and returns a copy of the counters.
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.c.StartTime)
	if elapsed > 0 {
		s.c.PositionRate = float64(s.c.Positions) / elapsed.Minutes()
		s.c.AbortRate = float64(s.c.AbortedScans) / elapsed.Hours()
	}
	return s.c
}

// String formats the counters for text output
func (c Counters) String() string {
	var b strings.Builder
	uptime := time.Since(c.StartTime).Round(time.Second)

	b.WriteString("=== MTP Session Statistics ===\n")
	b.WriteString(fmt.Sprintf("Uptime: %v   State: %s\n", uptime, c.LastState))
	b.WriteString(fmt.Sprintf("Positions: %d (%.1f/min)\n", c.Positions, c.PositionRate))
	b.WriteString(fmt.Sprintf("Aborted scans: %d (%.2f/hour)   Recoveries: %d   Power cycle events: %d\n",
		c.AbortedScans, c.AbortRate, c.Recoveries, c.PowerCycleEvents))
	b.WriteString(fmt.Sprintf("NaN values: %d   Quality issues: %d\n", c.NaNValues, c.QualityIssues))
	return b.String()
}
