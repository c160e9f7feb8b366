// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ============================================================
// Scripted probe stream
// ============================================================

// fakeProbe is an in-memory Stream. Every complete CRLF command written to
// it is recorded and passed to respond, whose return value is queued for
// reading. An empty read sleeps for the current read timeout and returns
// (0, nil), like a serial port.
type fakeProbe struct {
	mu       sync.Mutex
	written  []string
	inbuf    []byte
	out      []byte
	respond  func(cmd string) string
	timeout  time.Duration
	writeErr error
	readErr  error
}

func newFakeProbe(respond func(cmd string) string) *fakeProbe {
	return &fakeProbe{respond: respond, timeout: time.Millisecond}
}

func (f *fakeProbe) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.inbuf = append(f.inbuf, p...)
	for {
		idx := bytes.Index(f.inbuf, []byte(LineTerminator))
		if idx < 0 {
			break
		}
		cmd := string(f.inbuf[:idx])
		f.inbuf = f.inbuf[idx+len(LineTerminator):]
		f.written = append(f.written, cmd)
		if f.respond != nil {
			f.out = append(f.out, f.respond(cmd)...)
		}
	}
	return len(p), nil
}

func (f *fakeProbe) Read(p []byte) (int, error) {
	f.mu.Lock()
	if len(f.out) > 0 {
		n := copy(p, f.out)
		f.out = f.out[n:]
		f.mu.Unlock()
		return n, nil
	}
	if f.readErr != nil {
		err := f.readErr
		f.mu.Unlock()
		return 0, err
	}
	t := f.timeout
	f.mu.Unlock()

	time.Sleep(t)
	return 0, nil
}

func (f *fakeProbe) SetReadTimeout(t time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = t
	return nil
}

// emit queues unsolicited output.
func (f *fakeProbe) emit(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, s...)
}

func (f *fakeProbe) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

func (f *fakeProbe) count(cmd string) int {
	n := 0
	for _, c := range f.commands() {
		if c == cmd {
			n++
		}
	}
	return n
}

func (f *fakeProbe) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// ============================================================
// Responders
// ============================================================

// healthyProbe answers every command with an echo and an ack. R replies
// carry an increasing count starting at 1001 so order is observable, and V
// replies carry the banner and status.
func healthyProbe(status int) func(cmd string) string {
	reads := 0
	return func(cmd string) string {
		switch {
		case cmd == CmdVersion:
			return fmt.Sprintf("V\r\n%s.c-101103>101208\r\nST:%02d\r\n", DefaultBootBanner, status)
		case cmd == CmdRead:
			reads++
			return fmt.Sprintf("R\r\nR28:%06d\r\n", 1000+reads)
		case strings.HasPrefix(cmd, CmdFrequency), cmd == CmdIntegrate, cmd == CmdNoiseOn, cmd == CmdNoiseOff:
			return cmd + "\r\nOK\r\n"
		}
		return ""
	}
}

// silentProbe never answers.
func silentProbe(string) string { return "" }

// ============================================================
// Test configs
// ============================================================

func testChannelConfig() ChannelConfig {
	return ChannelConfig{
		LineTimeout:   20 * time.Millisecond,
		QuietInterval: time.Millisecond,
	}
}

func testScanConfig() ScanConfig {
	return ScanConfig{SettleTime: time.Millisecond}
}
