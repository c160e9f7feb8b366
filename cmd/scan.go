// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/mtpctl/internal/api"
	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

var (
	scanCount         int
	scanInterval      time.Duration
	scanArchivePath   string
	scanRawPath       string
	scanHTTPAddr      string
	scanNoStatus      bool
	scanStatsInterval time.Duration
	scanQuiet         bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the scan cycle and decode each position",
	Long: `Establish the probe link and repeatedly scan the current mirror position.

Each position runs the noise diode off, a change-frequency/integrate/read
triple, noise diode on, a second triple and noise diode off. The counts are
decoded with the calibration table and checked for sensor faults.

When the probe stops answering, the link is recovered with the version query
and the abort sequence. If that fails too the probe needs a power cycle; scan
waits and retries until it answers again.

Outputs:
  stdout       decoded records (suppress with --quiet)
  --archive    CBOR record archive
  --raw        raw record text, readable by 'mtpctl decode'
  --http       JSON API with the latest record and session status`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVarP(&scanCount, "count", "n", 0, "Number of positions to scan (0 = until interrupted)")
	scanCmd.Flags().DurationVar(&scanInterval, "interval", 0, "Pause between positions")
	scanCmd.Flags().StringVar(&scanArchivePath, "archive", "", "Write decoded records to a CBOR archive")
	scanCmd.Flags().StringVar(&scanRawPath, "raw", "", "Write raw record text to a file")
	scanCmd.Flags().StringVar(&scanHTTPAddr, "http", "", "Serve latest record and status on this address (e.g. :8080)")
	scanCmd.Flags().BoolVar(&scanNoStatus, "no-status", false, "Skip the status query after each position")
	scanCmd.Flags().DurationVar(&scanStatsInterval, "stats-interval", time.Minute, "Print statistics at this interval (0 = never)")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "Do not print records")
}

func runScan(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	archiveFile, err := openOutput(scanArchivePath)
	if err != nil {
		return err
	}
	var archive *mtp.ArchiveWriter
	if archiveFile != nil {
		defer archiveFile.Close()
		archive = mtp.NewArchiveWriter(archiveFile)
	}

	rawFile, err := openOutput(scanRawPath)
	if err != nil {
		return err
	}
	if rawFile != nil {
		defer rawFile.Close()
	}

	fmt.Printf("mtpctl - Scan\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	acq := newAcquisition(conn, cfg, func(from, to mtp.SessionState) {
		if !scanQuiet {
			fmt.Printf("[%s] session %s -> %s\n", time.Now().Format("15:04:05.000"), from, stateString(to))
		}
	})
	acq.count = scanCount
	acq.interval = scanInterval
	acq.pollStatus = !scanNoStatus

	var server *api.Server
	if scanHTTPAddr != "" {
		server = api.New(acq.stats, acq.session.State, logrus.StandardLogger())
	}

	acq.onEvent = func(message string, isError bool) {
		if isError {
			logrus.Warn(message)
		} else {
			logrus.Info(message)
		}
	}
	acq.onRecord = func(raw mtp.RawScanPosition, rec mtp.Record, issues []mtp.QualityIssue) {
		if !scanQuiet {
			printRecord(os.Stdout, rec, issues)
		}
		if archive != nil {
			if err := archive.Write(rec); err != nil {
				logrus.WithError(err).Error("archive write failed")
			}
		}
		if rawFile != nil {
			if _, err := fmt.Fprintln(rawFile, strings.Join(raw.Lines(), "\n")); err != nil {
				logrus.WithError(err).Error("raw record write failed")
			}
		}
		if server != nil {
			server.Publish(rec, issues)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	scanCtx, scanDone := context.WithCancel(gctx)
	g.Go(func() error {
		defer scanDone()
		return acq.run(scanCtx)
	})
	if server != nil {
		g.Go(func() error {
			return server.ListenAndServe(scanCtx, scanHTTPAddr)
		})
	}
	if scanStatsInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(scanStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-scanCtx.Done():
					return nil
				case <-ticker.C:
					fmt.Print(acq.stats.Snapshot().String())
				}
			}
		})
	}

	err = g.Wait()
	fmt.Printf("\n%s", acq.stats.Snapshot().String())
	return err
}
