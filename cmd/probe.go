// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the link by running one establish pass",
	Long: `Run link detection once: wait for the boot banner, send the version query,
then the abort sequence. The probe is never retried.

Exit codes:
  0 - Probe is responding
  1 - Probe needs a power cycle (or timeout)
  2 - Connection error

Useful for checking the serial cable or WebSocket bridge before a flight.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds for the establish pass")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("mtpctl - Probe Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", probeTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(probeTimeout)*time.Second)
	defer cancel()

	acq := newAcquisition(conn, cfg, nil)
	state, err := acq.session.Establish(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "TIMEOUT: establish did not finish within %d seconds\n", probeTimeout)
		conn.Close()
		os.Exit(1)
	}

	switch state {
	case mtp.StateResponding:
		fmt.Printf("SUCCESS: Probe is %s\n", stateString(state))
		if status, ok, err := acq.session.PollStatus(ctx); err == nil && ok {
			fmt.Printf("  Status: %s (0x%X)\n", status, uint8(status))
		}
		conn.Close()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "FAILED: Probe is %s, power cycle the probe\n", stateString(state))
		conn.Close()
		os.Exit(1)
	}

	return nil
}
