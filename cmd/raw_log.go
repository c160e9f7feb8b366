// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

var (
	rawLogSend []string
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display every line the probe emits",
	Long: `Continuously print the raw lines arriving from the probe, with a timestamp
and the command that was last sent.

Use --send to issue commands first (repeatable, e.g. --send V --send "N 1").
Lines are read without any session logic; nothing is retried or recovered.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringArrayVar(&rawLogSend, "send", nil, "Command to send before listening (repeatable)")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("mtpctl - Raw Line Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch := mtp.NewChannel(conn, cfg.SessionConfig(logrus.StandardLogger()).Channel)
	for _, command := range rawLogSend {
		if err := ch.Send(ctx, command); err != nil {
			return err
		}
	}

	for {
		lines, err := ch.ReadLines(ctx, 1)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// For WebSocket connections, a read error means the
			// connection is permanently closed
			if errors.Is(err, ErrConnectionClosed) {
				logrus.Info("Connection closed")
				return nil
			}
			return err
		}
		for _, line := range lines {
			if len(line.Data) == 0 && !line.Terminated {
				continue
			}
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), mtp.FormatRawLine(line))
		}
	}
}
