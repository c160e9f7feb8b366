// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"
)

// Datum is the raw reply to one R command.
type Datum []byte

// Count extracts the integrated count from the datum: the last numeric
// field on the last line that has one. Missing if there is none.
func (d Datum) Count() int {
	lines := bytes.Split(bytes.TrimRight(d, LineTerminator), []byte(LineTerminator))
	for i := len(lines) - 1; i >= 0; i-- {
		fields := strings.FieldsFunc(string(lines[i]), func(r rune) bool {
			return r == ' ' || r == ':' || r == ',' || r == '\t'
		})
		for j := len(fields) - 1; j >= 0; j-- {
			if v, err := strconv.Atoi(fields[j]); err == nil && v >= 0 {
				return v
			}
		}
	}
	return Missing
}

// Triple holds the datums of one CIR triple in frequency order.
type Triple struct {
	Datums [3]Datum
}

// Bytes concatenates the datums in frequency order.
func (t Triple) Bytes() []byte {
	var buf bytes.Buffer
	for _, d := range t.Datums {
		buf.Write(d)
	}
	return buf.Bytes()
}

// Counts returns the per-frequency counts.
func (t Triple) Counts() [3]int {
	var out [3]int
	for i, d := range t.Datums {
		out[i] = d.Count()
	}
	return out
}

// Position is the noise-diode pair measured at one mirror position. The
// off triple always precedes the on triple.
type Position struct {
	Off Triple
	On  Triple
}

// Bytes concatenates the off triple and then the on triple.
func (p Position) Bytes() []byte {
	return append(p.Off.Bytes(), p.On.Bytes()...)
}

// Counts returns off f1..f3 followed by on f1..f3, the layout of the
// auxiliary E line.
func (p Position) Counts() [AuxCount]int {
	var out [AuxCount]int
	off := p.Off.Counts()
	on := p.On.Counts()
	copy(out[:3], off[:])
	copy(out[3:], on[:])
	return out
}

// ScanConfig holds scan cycle settings.
type ScanConfig struct {
	// SettleTime is waited after I 40 in place of polling the
	// integrator-busy bit.
	SettleTime  time.Duration
	Frequencies [3]FrequencyCode
}

func (c ScanConfig) withDefaults() ScanConfig {
	if c.SettleTime == 0 {
		c.SettleTime = DefaultSettleTime
	}
	if c.Frequencies == ([3]FrequencyCode{}) {
		c.Frequencies = DefaultFrequencies
	}
	return c
}

// ScanCycle issues the CIR command sequence. Only Session calls it.
type ScanCycle struct {
	ch  *Channel
	cfg ScanConfig
}

// NewScanCycle builds a scan cycle over ch.
func NewScanCycle(ch *Channel, cfg ScanConfig) *ScanCycle {
	return &ScanCycle{ch: ch, cfg: cfg.withDefaults()}
}

// SetFrequency tunes the synthesizer.
func (s *ScanCycle) SetFrequency(ctx context.Context, code FrequencyCode) error {
	_, err := s.ch.Exchange(ctx, CmdFrequency+string(code), linesPerCommand)
	return err
}

// Integrate starts an integration and waits the settle time before reading
// the acknowledgment. The busy bit is not polled.
func (s *ScanCycle) Integrate(ctx context.Context) error {
	_, err := s.ch.ExchangeWait(ctx, CmdIntegrate, linesPerCommand, s.cfg.SettleTime)
	return err
}

// ReadDatum reads the integrated value.
func (s *ScanCycle) ReadDatum(ctx context.Context) (Datum, error) {
	lines, err := s.ch.Exchange(ctx, CmdRead, linesPerCommand)
	if err != nil {
		return nil, err
	}
	var d Datum
	for _, l := range lines {
		d = append(d, l.Raw()...)
	}
	return d, nil
}

// CIR runs change-frequency, integrate, read at one frequency.
func (s *ScanCycle) CIR(ctx context.Context, code FrequencyCode) (Datum, error) {
	if err := s.SetFrequency(ctx, code); err != nil {
		return nil, err
	}
	if err := s.Integrate(ctx); err != nil {
		return nil, err
	}
	return s.ReadDatum(ctx)
}

// CIRTriple runs CIR at the three frequencies in their fixed order.
func (s *ScanCycle) CIRTriple(ctx context.Context) (Triple, error) {
	var t Triple
	for i, code := range s.cfg.Frequencies {
		d, err := s.CIR(ctx, code)
		if err != nil {
			return Triple{}, err
		}
		t.Datums[i] = d
	}
	return t, nil
}

// SetNoise switches the noise diode.
func (s *ScanCycle) SetNoise(ctx context.Context, on bool) error {
	cmd := CmdNoiseOff
	if on {
		cmd = CmdNoiseOn
	}
	_, err := s.ch.Exchange(ctx, cmd, linesPerCommand)
	return err
}

// ScanPosition measures the current mirror position: noise off, triple,
// noise on, triple, noise off. Calibration downstream differences the two
// triples, so the order is fixed.
func (s *ScanCycle) ScanPosition(ctx context.Context) (Position, error) {
	var p Position
	var err error

	if err = s.SetNoise(ctx, false); err != nil {
		return Position{}, err
	}
	if p.Off, err = s.CIRTriple(ctx); err != nil {
		return Position{}, err
	}
	if err = s.SetNoise(ctx, true); err != nil {
		return Position{}, err
	}
	if p.On, err = s.CIRTriple(ctx); err != nil {
		return Position{}, err
	}
	if err = s.SetNoise(ctx, false); err != nil {
		return Position{}, err
	}
	return p, nil
}
