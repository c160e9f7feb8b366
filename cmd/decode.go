// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

var (
	decodeArchivePath string
	decodeFromArchive bool
	decodeIssuesOnly  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode raw record text offline",
	Long: `Decode raw scan records (A, B, M01:, M02:, Pt:, E lines) from a file, or
stdin when no file is given, and print the calibrated values.

Lines that are not part of a record, such as IWG1 relay lines, are skipped.
With --from-archive the input is a CBOR archive written by 'mtpctl scan'.

No probe connection is needed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVar(&decodeArchivePath, "archive", "", "Also write decoded records to a CBOR archive")
	decodeCmd.Flags().BoolVar(&decodeFromArchive, "from-archive", false, "Input is a CBOR archive instead of raw text")
	decodeCmd.Flags().BoolVar(&decodeIssuesOnly, "issues-only", false, "Only print records with quality issues")
}

func runDecode(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %v", args[0], err)
		}
		defer f.Close()
		in = f
	}

	archiveFile, err := openOutput(decodeArchivePath)
	if err != nil {
		return err
	}
	var archive *mtp.ArchiveWriter
	if archiveFile != nil {
		defer archiveFile.Close()
		archive = mtp.NewArchiveWriter(archiveFile)
	}

	stats := mtp.NewStatistics()
	emit := func(rec mtp.Record) error {
		issues := mtp.ValidateRecord(rec, cfg.Calibration)
		stats.RecordPosition(rec, issues)
		if !decodeIssuesOnly || len(issues) > 0 {
			printRecord(cmd.OutOrStdout(), rec, issues)
		}
		if archive != nil {
			return archive.Write(rec)
		}
		return nil
	}

	if decodeFromArchive {
		err = mtp.ReadArchive(in, emit)
	} else {
		decoder := cfg.Decoder()
		err = mtp.ReadRawRecords(in, func(raw mtp.RawScanPosition) error {
			return emit(decoder.Decode(raw))
		})
	}
	if err != nil {
		return err
	}

	c := stats.Snapshot()
	fmt.Fprintf(cmd.ErrOrStderr(), "%d records, %d NaN values, %d quality issues\n",
		c.Positions, c.NaNValues, c.QualityIssues)
	return nil
}
