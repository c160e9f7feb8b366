// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"strconv"
	"strings"
)

// StatusWord is the probe status bitfield. Only the low three bits carry
// meaning; spare bits are masked off, never rejected.
type StatusWord uint8

// Status bits
const (
	StatusIntegratorBusy      StatusWord = 1 << 0
	StatusStepperMoving       StatusWord = 1 << 1
	StatusSynthesizerUnlocked StatusWord = 1 << 2

	statusMask = StatusIntegratorBusy | StatusStepperMoving | StatusSynthesizerUnlocked
)

// statusToken prefixes the status field in V replies and attitude lines.
const statusToken = "ST:"

// IntegratorBusy reports bit 0.
func IntegratorBusy(status int) bool {
	return StatusWord(status&int(statusMask)).IntegratorBusy()
}

// StepperBusy reports bit 1.
func StepperBusy(status int) bool {
	return StatusWord(status&int(statusMask)).StepperBusy()
}

// SynthesizerUnlocked reports bit 2.
func SynthesizerUnlocked(status int) bool {
	return StatusWord(status&int(statusMask)).SynthesizerUnlocked()
}

// Masked drops the spare bits.
func (s StatusWord) Masked() StatusWord {
	return s & statusMask
}

// IntegratorBusy returns true while an integration is in progress
func (s StatusWord) IntegratorBusy() bool {
	return s&StatusIntegratorBusy != 0
}

// StepperBusy returns true while the mirror stepper is moving
func (s StatusWord) StepperBusy() bool {
	return s&StatusStepperMoving != 0
}

// SynthesizerUnlocked returns true when the local oscillator has lost lock
func (s StatusWord) SynthesizerUnlocked() bool {
	return s&StatusSynthesizerUnlocked != 0
}

// String lists the set flags, or "ready" when none are set.
func (s StatusWord) String() string {
	s = s.Masked()
	if s == 0 {
		return "ready"
	}
	flags := []string{}
	if s.IntegratorBusy() {
		flags = append(flags, "integrating")
	}
	if s.StepperBusy() {
		flags = append(flags, "stepping")
	}
	if s.SynthesizerUnlocked() {
		flags = append(flags, "synth-unlocked")
	}
	return strings.Join(flags, ",")
}

// ParseStatusToken finds an "ST:<n>" field in text and returns the masked
// status word. ok is false when no parsable token is present.
func ParseStatusToken(text string) (StatusWord, bool) {
	idx := strings.Index(text, statusToken)
	if idx < 0 {
		return 0, false
	}
	rest := text[idx+len(statusToken):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(rest[:end])
	if err != nil || v < 0 {
		return 0, false
	}
	return StatusWord(v & 0xFF).Masked(), true
}
