// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mtp implements the command protocol and telemetry decode for the
// Microwave Temperature Profiler (MTP) probe.
//
// The probe speaks a line-oriented ASCII protocol over a half-duplex serial
// link. This package provides the command channel framing, the
// Change-frequency/Integrate/Read (CIR) scan cycle, the link establishment
// and recovery state machine, status word decoding and the calibration math
// that turns raw counts into engineering units.
package mtp

import "time"

// Line framing
const (
	LineTerminator = "\r\n"
	LineDelimiter  = '\n'
)

// Command vocabulary
const (
	CmdVersion   = "V"
	CmdFrequency = "C"
	CmdIntegrate = "I 40"
	CmdRead      = "R"
	CmdNoiseOn   = "N 1"
	CmdNoiseOff  = "N 0"

	// CmdAbort is Ctrl-C; it interrupts a stuck move command.
	CmdAbort = "\x03"
)

// Reply line counts per command
const (
	linesPerCommand = 2
	linesPerProbe   = 3
)

// Link detection markers
const (
	DefaultBootBanner  = "MTPH_Control"
	DefaultAbortMarker = "^C"
)

// Serial link defaults
const (
	DefaultBaudRate = 9600
	DefaultDevice   = "COM6"
)

// Protocol timings
const (
	// DefaultQuietInterval is the minimum gap between two writes. The probe
	// corrupts its input buffer when commands arrive closer together.
	DefaultQuietInterval = 250 * time.Millisecond

	// DefaultSettleTime stands in for the integrator-busy acknowledgment.
	DefaultSettleTime = 350 * time.Millisecond

	// DefaultLineTimeout is the per-line read timeout.
	DefaultLineTimeout = 150 * time.Millisecond

	// DefaultRecoveryBackoff is the wait between establish attempts once the
	// probe needs a power cycle.
	DefaultRecoveryBackoff = 10 * time.Second
)

// FrequencyCode is an opaque synthesizer calibration code sent with the C
// command. The three codes select the channel local-oscillator frequencies.
type FrequencyCode string

// Channel frequency codes, in scan order. Channel identity downstream depends
// on this order.
//
// The third code is the value used on the working instrument. Old notes
// question whether it should start with 229; it is kept as-is until checked
// against hardware.
const (
	FrequencyLow  FrequencyCode = "28182"
	FrequencyMid  FrequencyCode = "28805"
	FrequencyHigh FrequencyCode = "29940"
)

// DefaultFrequencies is the fixed CIR triple order.
var DefaultFrequencies = [3]FrequencyCode{FrequencyLow, FrequencyMid, FrequencyHigh}

// Raw record group sizes
const (
	BrightnessCount = 30
	MuxCount        = 8
	PtCount         = 8
	AuxCount        = 6
)

// Raw record line prefixes
const (
	PrefixAttitude   = "A"
	PrefixBrightness = "B"
	PrefixM01        = "M01:"
	PrefixM02        = "M02:"
	PrefixPt         = "Pt:"
	PrefixAux        = "E"
)
