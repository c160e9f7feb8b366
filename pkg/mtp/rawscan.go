// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Group names a raw line group within a scan record.
type Group string

// Raw line groups
const (
	GroupBrightness Group = "B"
	GroupM01        Group = "M01"
	GroupM02        Group = "M02"
	GroupPt         Group = "Pt"
	GroupAux        Group = "E"
)

// Size returns the number of counts in the group, 0 if unknown.
func (g Group) Size() int {
	switch g {
	case GroupBrightness:
		return BrightnessCount
	case GroupM01, GroupM02:
		return MuxCount
	case GroupPt:
		return PtCount
	case GroupAux:
		return AuxCount
	}
	return 0
}

// RawScanPosition holds the raw line groups collected at one mirror
// position. Counts that were not received are Missing.
type RawScanPosition struct {
	Attitude    string
	Brightness  [BrightnessCount]int
	M01         [MuxCount]int
	M02         [MuxCount]int
	Pt          [PtCount]int
	Aux         [AuxCount]int
	Status      StatusWord
	StatusValid bool
}

// NewRawScanPosition returns a position with every count Missing.
func NewRawScanPosition() RawScanPosition {
	var p RawScanPosition
	fillMissing(p.Brightness[:])
	fillMissing(p.M01[:])
	fillMissing(p.M02[:])
	fillMissing(p.Pt[:])
	fillMissing(p.Aux[:])
	return p
}

// Count returns the raw count at index within group, or Missing.
func (p *RawScanPosition) Count(g Group, index int) int {
	counts := p.group(g)
	if index < 0 || index >= len(counts) {
		return Missing
	}
	return counts[index]
}

func (p *RawScanPosition) group(g Group) []int {
	switch g {
	case GroupBrightness:
		return p.Brightness[:]
	case GroupM01:
		return p.M01[:]
	case GroupM02:
		return p.M02[:]
	case GroupPt:
		return p.Pt[:]
	case GroupAux:
		return p.Aux[:]
	}
	return nil
}

// ParseLine folds one raw line into the position. It returns false for
// lines that belong to no group (IWG1 relay lines, blanks).
func (p *RawScanPosition) ParseLine(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.HasPrefix(line, PrefixM01):
		parseCounts(p.M01[:], line[len(PrefixM01):])
	case strings.HasPrefix(line, PrefixM02):
		parseCounts(p.M02[:], line[len(PrefixM02):])
	case strings.HasPrefix(line, PrefixPt):
		parseCounts(p.Pt[:], line[len(PrefixPt):])
	case strings.HasPrefix(line, PrefixAttitude+" "):
		p.Attitude = strings.TrimSpace(line[len(PrefixAttitude):])
		p.Status, p.StatusValid = ParseStatusToken(p.Attitude)
	case strings.HasPrefix(line, PrefixBrightness+" "):
		parseCounts(p.Brightness[:], line[len(PrefixBrightness):])
	case strings.HasPrefix(line, PrefixAux+" "):
		parseCounts(p.Aux[:], line[len(PrefixAux):])
	default:
		return false
	}
	return true
}

// Lines formats the position as raw record text, one line per group.
func (p *RawScanPosition) Lines() []string {
	return []string{
		PrefixAttitude + " " + p.Attitude,
		PrefixBrightness + formatCounts(p.Brightness[:], 6),
		PrefixM01 + formatCounts(p.M01[:], 4),
		PrefixM02 + formatCounts(p.M02[:], 4),
		PrefixPt + formatCounts(p.Pt[:], 6),
		PrefixAux + formatCounts(p.Aux[:], 6),
	}
}

// ReadRawRecords splits raw record text into positions. A record starts at
// each A line; lines before the first A line are ignored. fn is called once
// per record in order and may stop the scan by returning an error.
func ReadRawRecords(r io.Reader, fn func(RawScanPosition) error) error {
	scanner := bufio.NewScanner(r)
	var current RawScanPosition
	started := false

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, PrefixAttitude+" ") {
			if started {
				if err := fn(current); err != nil {
					return err
				}
			}
			current = NewRawScanPosition()
			started = true
		}
		if started {
			current.ParseLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading raw records: %w", err)
	}
	if started {
		return fn(current)
	}
	return nil
}

// parseCounts fills dst from whitespace separated fields. Absent or
// unparsable fields stay Missing.
func parseCounts(dst []int, text string) {
	fillMissing(dst)
	for i, f := range strings.Fields(text) {
		if i >= len(dst) {
			break
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		dst[i] = v
	}
}

func formatCounts(counts []int, width int) string {
	var b strings.Builder
	for _, c := range counts {
		b.WriteByte(' ')
		if c == Missing {
			b.WriteString(strings.Repeat("-", width))
			continue
		}
		b.WriteString(fmt.Sprintf("%0*d", width, c))
	}
	return b.String()
}

func fillMissing(dst []int) {
	for i := range dst {
		dst[i] = Missing
	}
}
