// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

// printRecord writes a decoded record with NaN values and quality issues
// highlighted.
func printRecord(w io.Writer, rec mtp.Record, issues []mtp.QualityIssue) {
	lines := strings.Split(strings.TrimRight(mtp.FormatRecord(rec), "\n"), "\n")
	fmt.Fprintln(w, bold("%s", lines[0]))
	for _, line := range lines[1:] {
		if strings.Contains(line, "= NaN") {
			line = color.YellowString("%s", line)
		}
		fmt.Fprintln(w, line)
	}
	for i := range issues {
		fmt.Fprintf(w, "  %s %s\n", issueMark(issues[i].Type), issues[i].Error())
	}
}

func issueMark(t mtp.AnomalyType) string {
	if t == mtp.AnomalyMissing {
		return color.New(color.Bold, color.FgYellow).Sprint("?")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

// stateString colours a session state for terminal output.
func stateString(s mtp.SessionState) string {
	switch s {
	case mtp.StateResponding:
		return color.GreenString(s.String())
	case mtp.StateRecovering:
		return color.YellowString(s.String())
	case mtp.StatePowerCycleRequired:
		return color.New(color.Bold, color.FgRed).Sprint(s.String())
	}
	return s.String()
}

// openOutput opens path for writing, or returns nil for an empty path.
func openOutput(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %v", path, err)
	}
	return f, nil
}
