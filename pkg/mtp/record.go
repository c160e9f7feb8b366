// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Kind selects the calibration model applied to a variable.
type Kind string

// Variable kinds
const (
	KindCount       Kind = "count"
	KindVoltage     Kind = "voltage"
	KindTemperature Kind = "temperature"
	KindResistance  Kind = "resistance"
)

// TableEntry locates a variable in the raw record and says how to
// calibrate it.
type TableEntry struct {
	Group  Group   `yaml:"group" json:"group"`
	Index  int     `yaml:"index" json:"index"`
	Factor float64 `yaml:"factor" json:"factor"`
	Unit   string  `yaml:"unit" json:"unit"`
	Kind   Kind    `yaml:"kind" json:"kind"`
}

// CalibrationTable maps variable names to their table entries. Factors are
// per project; only the Pt references and thermistor constants are fixed.
type CalibrationTable map[string]TableEntry

// Validate checks every entry refers to a real group slot and a kind that
// fits the group.
func (t CalibrationTable) Validate() error {
	for _, name := range t.names() {
		e := t[name]
		size := e.Group.Size()
		if size == 0 {
			return fmt.Errorf("variable %s: unknown group %q", name, e.Group)
		}
		if e.Index < 0 || e.Index >= size {
			return fmt.Errorf("variable %s: index %d out of range for group %s (size %d)", name, e.Index, e.Group, size)
		}
		switch e.Kind {
		case KindCount, KindVoltage, KindTemperature:
		case KindResistance:
			if e.Group != GroupPt {
				return fmt.Errorf("variable %s: resistance is only calibrated on the Pt line", name)
			}
		default:
			return fmt.Errorf("variable %s: unknown kind %q", name, e.Kind)
		}
	}
	return nil
}

// Subset returns the entries that read from one of groups.
func (t CalibrationTable) Subset(groups ...Group) CalibrationTable {
	out := CalibrationTable{}
	for name, e := range t {
		for _, g := range groups {
			if e.Group == g {
				out[name] = e
				break
			}
		}
	}
	return out
}

func (t CalibrationTable) names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultCalibrationTable covers the engineering multiplexers, the Pt line
// and the noise-diode counts with unit factors.
func DefaultCalibrationTable() CalibrationTable {
	t := CalibrationTable{}

	m01 := []struct {
		name   string
		factor float64
	}{
		{"VM08", -4}, {"VVID", 1}, {"VP08", 4}, {"VMTR", 4},
		{"VSYN", 4}, {"VP15", 6}, {"VP05", 2}, {"VM15", -6},
	}
	for i, v := range m01 {
		t[v.name] = TableEntry{Group: GroupM01, Index: i, Factor: v.factor, Unit: "V", Kind: KindVoltage}
	}

	t["ACCP"] = TableEntry{Group: GroupM02, Index: 0, Factor: 1, Unit: "counts", Kind: KindCount}
	for i, name := range []string{"TDAT", "TMTR", "TAIR", "TSMP", "TPSP", "TNC", "TSYN"} {
		t[name] = TableEntry{Group: GroupM02, Index: i + 1, Factor: 1, Unit: "C", Kind: KindTemperature}
	}

	for i, name := range []string{"R350", "TTCN", "TTED", "TWIN", "TMIX", "TAMP", "TND", "R600"} {
		t[name] = TableEntry{Group: GroupPt, Index: i, Factor: 1, Unit: "ohm", Kind: KindResistance}
	}

	for i, name := range []string{"ND1OFF", "ND2OFF", "ND3OFF", "ND1ON", "ND2ON", "ND3ON"} {
		t[name] = TableEntry{Group: GroupAux, Index: i, Factor: 1, Unit: "counts", Kind: KindCount}
	}
	return t
}

// Variable is one decoded telemetry value.
type Variable struct {
	Name   string
	Raw    int
	Factor float64
	Value  float64
	Unit   string
}

// Valid reports whether the value decoded to a number.
func (v Variable) Valid() bool {
	return !math.IsNaN(v.Value)
}

// Record is the decoded telemetry for one scan position.
type Record struct {
	Time        time.Time
	Status      StatusWord
	StatusValid bool
	Variables   map[string]Variable
}

// Names returns the variable names in sorted order.
func (r Record) Names() []string {
	names := make([]string, 0, len(r.Variables))
	for n := range r.Variables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get looks up a variable by name.
func (r Record) Get(name string) (Variable, bool) {
	v, ok := r.Variables[name]
	return v, ok
}

// Decoder applies a calibration table to raw scan positions.
type Decoder struct {
	table CalibrationTable
	opts  CalibrationOptions
	now   func() time.Time
}

// NewDecoder creates a decoder for table.
func NewDecoder(table CalibrationTable, opts CalibrationOptions) *Decoder {
	return &Decoder{table: table, opts: opts, now: time.Now}
}

// Decode calibrates every table variable present in pos. Bad counts become
// NaN values; decoding never fails.
func (d *Decoder) Decode(pos RawScanPosition) Record {
	rec := Record{
		Time:        d.now(),
		Status:      pos.Status.Masked(),
		StatusValid: pos.StatusValid,
		Variables:   make(map[string]Variable, len(d.table)),
	}

	pt := pos.Pt
	for i, c := range pt {
		if d.opts.IsMissing(c) {
			pt[i] = Missing
		}
	}
	ohms := CalibratePt(pt)

	for name, e := range d.table {
		raw := pos.Count(e.Group, e.Index)
		v := Variable{Name: name, Raw: raw, Factor: e.Factor, Unit: e.Unit}

		switch {
		case d.opts.IsMissing(raw):
			v.Value = math.NaN()
		case e.Kind == KindVoltage:
			v.Value = DecodeVoltage(raw, e.Factor)
		case e.Kind == KindTemperature:
			v.Value = DecodeTemperature(raw)
		case e.Kind == KindResistance && e.Group == GroupPt:
			v.Value = ohms[e.Index]
		case e.Kind == KindCount:
			factor := e.Factor
			if factor == 0 {
				factor = 1
			}
			v.Value = float64(raw) * factor
		default:
			v.Value = math.NaN()
		}
		rec.Variables[name] = v
	}
	return rec
}
