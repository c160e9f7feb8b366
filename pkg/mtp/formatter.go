// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"fmt"
	"math"
	"strings"
)

// FormatRecord formats a decoded record into a human-readable string
func FormatRecord(r Record) string {
	var b strings.Builder

	timestamp := r.Time.Format("15:04:05.000")
	status := "n/a"
	if r.StatusValid {
		status = fmt.Sprintf("%s (0x%X)", r.Status, uint8(r.Status))
	}
	b.WriteString(fmt.Sprintf("[%s] RECORD vars=%d status=%s\n", timestamp, len(r.Variables), status))

	for _, name := range r.Names() {
		b.WriteString("  ")
		b.WriteString(FormatVariable(r.Variables[name]))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatVariable formats one variable as "NAME = value unit (raw N)"
func FormatVariable(v Variable) string {
	raw := "missing"
	if v.Raw != Missing {
		raw = fmt.Sprintf("%d", v.Raw)
	}
	return fmt.Sprintf("%-8s = %s (raw %s)", v.Name, FormatValue(v.Value, v.Unit), raw)
}

// FormatValue formats a value with its unit, or NaN
func FormatValue(value float64, unit string) string {
	if math.IsNaN(value) {
		return "NaN"
	}
	switch unit {
	case "C":
		return fmt.Sprintf("%.2f°C", value)
	case "ohm":
		return fmt.Sprintf("%.2f Ω", value)
	case "V":
		return fmt.Sprintf("%.3f V", value)
	case "counts", "":
		return fmt.Sprintf("%.0f", value)
	}
	return fmt.Sprintf("%.3f %s", value, unit)
}

// FormatRawLine formats a raw probe line for logs
func FormatRawLine(l RawLine) string {
	mark := ""
	if !l.Terminated {
		mark = " (timeout)"
	}
	cmd := "-"
	if l.Command != "" {
		cmd = printable(l.Command)
	}
	return fmt.Sprintf("cmd=%s %q%s", cmd, l.Data, mark)
}
