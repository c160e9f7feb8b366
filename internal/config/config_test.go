// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mtpctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_Valid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, mtp.DefaultLineTimeout, c.LineTimeout)
	assert.Equal(t, []string{"28182", "28805", "29940"}, c.Frequencies)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
port: /dev/ttyUSB0
baud: 19200
line_timeout: 200ms
settle_time: 400ms
boot_banner: MTPH
frequencies: ["1", "2", "3"]
calibration:
  TAIR:
    group: M02
    index: 3
    factor: 1
    unit: C
    kind: temperature
`)

	c := Default()
	require.NoError(t, c.LoadFile(path))

	assert.Equal(t, "/dev/ttyUSB0", c.Port)
	assert.Equal(t, 19200, c.Baud)
	assert.Equal(t, 200*time.Millisecond, c.LineTimeout)
	assert.Equal(t, 400*time.Millisecond, c.SettleTime)
	assert.Equal(t, mtp.DefaultQuietInterval, c.QuietInterval, "absent keys keep defaults")
	assert.Equal(t, "MTPH", c.BootBanner)
	assert.Equal(t, []string{"1", "2", "3"}, c.Frequencies)
	require.Len(t, c.Calibration, 1)
	assert.Equal(t, mtp.KindTemperature, c.Calibration["TAIR"].Kind)
	assert.NoError(t, c.Validate())
}

func TestLoadFile_Errors(t *testing.T) {
	c := Default()
	err := c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	err = c.LoadFile(writeFile(t, "baud: [not a number"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(envMap(map[string]string{
		"MTP_PORT":                   "/dev/ttyS1",
		"MTP_BAUD":                   "4800",
		"MTP_LINE_TIMEOUT":           "1s",
		"MTP_FREQUENCIES":            " 10, 20 ,30",
		"MTP_VERIFY_ECHO":            "true",
		"MTP_LEGACY_OVERFLOW_FILTER": "1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS1", c.Port)
	assert.Equal(t, 4800, c.Baud)
	assert.Equal(t, time.Second, c.LineTimeout)
	assert.Equal(t, []string{"10", "20", "30"}, c.Frequencies)
	assert.True(t, c.VerifyEcho)
	assert.True(t, c.LegacyOverflowFilter)
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"MTP_BAUD", "fast"},
		{"MTP_BACKOFF", "ten seconds"},
		{"MTP_NO_SSL_VERIFY", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := Default().ApplyEnv(envMap(map[string]string{tt.key: tt.value}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"zero line timeout", func(c *Config) { c.LineTimeout = 0 }, "line timeout"},
		{"negative settle", func(c *Config) { c.SettleTime = -time.Second }, "settle time"},
		{"zero backoff", func(c *Config) { c.Backoff = 0 }, "backoff"},
		{"zero baud", func(c *Config) { c.Baud = 0 }, "baud"},
		{"two frequencies", func(c *Config) { c.Frequencies = []string{"1", "2"} }, "frequency codes"},
		{"empty frequency", func(c *Config) { c.Frequencies = []string{"1", "", "3"} }, "must not be empty"},
		{"bad calibration", func(c *Config) {
			c.Calibration = mtp.CalibrationTable{"X": {Group: "Q", Kind: mtp.KindCount}}
		}, "invalid calibration table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_WebSocketIgnoresBaud(t *testing.T) {
	c := Default()
	c.URL = "ws://bridge.local/ws"
	c.Baud = 0
	assert.NoError(t, c.Validate())
}

func TestSessionConfig(t *testing.T) {
	c := Default()
	c.Frequencies = []string{"1", "2", "3"}
	c.VerifyEcho = true

	sc := c.SessionConfig(logrus.New())
	assert.Equal(t, [3]mtp.FrequencyCode{"1", "2", "3"}, sc.Scan.Frequencies)
	assert.Equal(t, c.LineTimeout, sc.Channel.LineTimeout)
	assert.Equal(t, c.Backoff, sc.Backoff)
	assert.NotNil(t, sc.Channel.Verify)
	assert.Equal(t, mtp.DefaultBootBanner, sc.BootBanner)
}
