// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/mtpctl/internal/config"
	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
	logLevel   = "info"

	// cfg is resolved before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mtpctl",
	Short: "Microwave Temperature Profiler probe controller",
	Long: `mtpctl - A CLI tool for driving and monitoring the Microwave Temperature
Profiler (MTP) probe.

Runs the scan cycle against the probe, recovers the serial link when the probe
stops answering, and decodes the raw telemetry into engineering units.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

Settings are read from --config (YAML), then MTP_* environment variables
(a .env file in the working directory is honoured), then flags.

For WebSocket authentication, the password is read from the MTP_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", mtp.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level (trace, debug, info, warn, error)")
}

func setup(cmd *cobra.Command, args []string) error {
	if err := setupLogger(); err != nil {
		return err
	}
	return loadConfig(cmd)
}

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.StampMilli,
		})
	}
	return nil
}

// loadConfig resolves cfg. Flags set on the command line win over the
// file and environment.
func loadConfig(cmd *cobra.Command) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Port = portName
	}
	if flags.Changed("baud") {
		c.Baud = baudRate
	}
	if flags.Changed("url") {
		c.URL = wsURL
	}
	if flags.Changed("username") {
		c.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		c.NoSSLVerify = wsNoSSLVerify
	}
	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	logrus.WithFields(logrus.Fields{
		"port":        cfg.Port,
		"url":         cfg.URL,
		"lineTimeout": cfg.LineTimeout,
		"settle":      cfg.SettleTime,
	}).Debug("configuration loaded")
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
