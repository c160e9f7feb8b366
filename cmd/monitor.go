// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

var (
	monitorNoStatus bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive scan monitor",
	Long: `Run the scan cycle with a live terminal display of the link state,
session statistics, the latest decoded position and recent events.

Log output is suppressed while the display is active.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorNoStatus, "no-status", false, "Skip the status query after each position")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Log lines would tear the alternate screen
	logrus.SetOutput(io.Discard)

	var p *tea.Program
	acq := newAcquisition(conn, cfg, func(from, to mtp.SessionState) {
		p.Send(stateMsg{from: from, to: to})
	})
	acq.pollStatus = !monitorNoStatus
	acq.onEvent = func(message string, isError bool) {
		p.Send(eventMsg{message: message, isError: isError})
	}
	acq.onRecord = func(_ mtp.RawScanPosition, rec mtp.Record, issues []mtp.QualityIssue) {
		p.Send(recordMsg{rec: rec, issues: issues})
	}

	p = tea.NewProgram(newMonitorModel(connInfo, acq.stats))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := acq.run(ctx)
		p.Send(scanDoneMsg{err: err})
	}()

	_, runErr := p.Run()
	cancel()
	<-done

	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}
