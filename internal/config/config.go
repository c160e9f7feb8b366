// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config resolves mtpctl settings from defaults, a YAML file and
// MTP_* environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MTP_"

// Config is the resolved configuration.
type Config struct {
	// Connection
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`

	// Protocol timing
	LineTimeout   time.Duration `yaml:"line_timeout"`
	QuietInterval time.Duration `yaml:"quiet_interval"`
	SettleTime    time.Duration `yaml:"settle_time"`
	Backoff       time.Duration `yaml:"backoff"`

	// Link detection
	BootBanner  string `yaml:"boot_banner"`
	AbortMarker string `yaml:"abort_marker"`
	VerifyEcho  bool   `yaml:"verify_echo"`

	Frequencies []string `yaml:"frequencies"`

	// Decode
	LegacyOverflowFilter bool                 `yaml:"legacy_overflow_filter"`
	Calibration          mtp.CalibrationTable `yaml:"calibration"`
}

// Default returns the built-in configuration.
func Default() *Config {
	freqs := make([]string, 0, len(mtp.DefaultFrequencies))
	for _, f := range mtp.DefaultFrequencies {
		freqs = append(freqs, string(f))
	}
	return &Config{
		Port:          mtp.DefaultDevice,
		Baud:          mtp.DefaultBaudRate,
		LineTimeout:   mtp.DefaultLineTimeout,
		QuietInterval: mtp.DefaultQuietInterval,
		SettleTime:    mtp.DefaultSettleTime,
		Backoff:       mtp.DefaultRecoveryBackoff,
		BootBanner:    mtp.DefaultBootBanner,
		AbortMarker:   mtp.DefaultAbortMarker,
		Frequencies:   freqs,
		Calibration:   mtp.DefaultCalibrationTable(),
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment variables. A .env file in the
// working directory is loaded into the environment first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("ignoring unreadable .env file")
	}

	c := Default()
	if path != "" {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values; a calibration section replaces the whole
// table.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read config file %s", path)
	}
	// yaml.v3 merges into existing maps.
	table := c.Calibration
	c.Calibration = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		c.Calibration = table
		return pkgerrors.Wrapf(err, "failed to parse config file %s", path)
	}
	if c.Calibration == nil {
		c.Calibration = table
	}
	logrus.WithField("path", path).Debug("loaded config file")
	return nil
}

// ApplyEnv overlays MTP_* variables found by lookup onto c.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return pkgerrors.Wrapf(err, "invalid %s%s", EnvPrefix, key)
		}
		*dst = d
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return pkgerrors.Wrapf(err, "invalid %s%s", EnvPrefix, key)
		}
		*dst = b
		return nil
	}

	str("PORT", &c.Port)
	str("URL", &c.URL)
	str("USERNAME", &c.Username)
	str("BOOT_BANNER", &c.BootBanner)
	str("ABORT_MARKER", &c.AbortMarker)

	if v, ok := lookup(EnvPrefix + "BAUD"); ok {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return pkgerrors.Wrapf(err, "invalid %sBAUD", EnvPrefix)
		}
		c.Baud = baud
	}
	if v, ok := lookup(EnvPrefix + "FREQUENCIES"); ok {
		c.Frequencies = splitList(v)
	}

	for key, dst := range map[string]*time.Duration{
		"LINE_TIMEOUT":   &c.LineTimeout,
		"QUIET_INTERVAL": &c.QuietInterval,
		"SETTLE_TIME":    &c.SettleTime,
		"BACKOFF":        &c.Backoff,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*bool{
		"NO_SSL_VERIFY":          &c.NoSSLVerify,
		"VERIFY_ECHO":            &c.VerifyEcho,
		"LEGACY_OVERFLOW_FILTER": &c.LegacyOverflowFilter,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the protocol engine cannot run with.
func (c *Config) Validate() error {
	if c.LineTimeout <= 0 {
		return pkgerrors.Errorf("line timeout must be positive, got %v", c.LineTimeout)
	}
	if c.SettleTime < 0 {
		return pkgerrors.Errorf("settle time must not be negative, got %v", c.SettleTime)
	}
	if c.Backoff <= 0 {
		return pkgerrors.Errorf("recovery backoff must be positive, got %v", c.Backoff)
	}
	if c.URL == "" && c.Baud <= 0 {
		return pkgerrors.Errorf("baud rate must be positive, got %d", c.Baud)
	}
	if len(c.Frequencies) != len(mtp.DefaultFrequencies) {
		return pkgerrors.Errorf("expected %d frequency codes, got %d", len(mtp.DefaultFrequencies), len(c.Frequencies))
	}
	for _, f := range c.Frequencies {
		if f == "" {
			return pkgerrors.New("frequency codes must not be empty")
		}
	}
	if err := c.Calibration.Validate(); err != nil {
		return pkgerrors.Wrap(err, "invalid calibration table")
	}
	return nil
}

// SessionConfig converts c into probe session settings.
func (c *Config) SessionConfig(logger logrus.FieldLogger) mtp.SessionConfig {
	var freqs [3]mtp.FrequencyCode
	for i := range freqs {
		if i < len(c.Frequencies) {
			freqs[i] = mtp.FrequencyCode(c.Frequencies[i])
		}
	}

	var verify mtp.EchoVerifier
	if c.VerifyEcho {
		verify = mtp.PrefixEchoVerifier
	}

	return mtp.SessionConfig{
		Channel: mtp.ChannelConfig{
			LineTimeout:   c.LineTimeout,
			QuietInterval: c.QuietInterval,
			Verify:        verify,
			Logger:        logger,
		},
		Scan: mtp.ScanConfig{
			SettleTime:  c.SettleTime,
			Frequencies: freqs,
		},
		BootBanner:  c.BootBanner,
		AbortMarker: c.AbortMarker,
		Backoff:     c.Backoff,
		Logger:      logger,
	}
}

// Decoder builds a record decoder from the calibration settings.
func (c *Config) Decoder() *mtp.Decoder {
	return c.DecoderFor(c.Calibration)
}

// DecoderFor builds a decoder for table with the configured options.
func (c *Config) DecoderFor(table mtp.CalibrationTable) *mtp.Decoder {
	return mtp.NewDecoder(table, mtp.CalibrationOptions{
		LegacyOverflowFilter: c.LegacyOverflowFilter,
	})
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
