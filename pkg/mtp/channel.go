// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrEchoMismatch is returned by Exchange when an installed EchoVerifier
// rejects the reply lines.
var ErrEchoMismatch = errors.New("reply does not echo command")

// Stream is the duplex byte stream the probe is attached to.
//
// A Read that returns (0, nil) means the read timeout set with
// SetReadTimeout elapsed without data, as with go.bug.st/serial ports.
type Stream interface {
	io.Reader
	io.Writer
	SetReadTimeout(t time.Duration) error
}

// RawLine is one framed response from the probe, tagged with the command
// that was last sent when it arrived.
type RawLine struct {
	Command    string
	Data       []byte
	Terminated bool // false when the line timed out before its delimiter
}

// Text returns the line content without the terminator.
func (l RawLine) Text() string {
	return string(l.Data)
}

// Contains reports whether the line holds marker.
func (l RawLine) Contains(marker string) bool {
	return marker != "" && bytes.Contains(l.Data, []byte(marker))
}

// Raw returns the line bytes as received, terminator included.
func (l RawLine) Raw() []byte {
	if !l.Terminated {
		return append([]byte(nil), l.Data...)
	}
	out := make([]byte, 0, len(l.Data)+len(LineTerminator))
	out = append(out, l.Data...)
	return append(out, LineTerminator...)
}

// EchoVerifier inspects the reply to a command. Returning an error makes
// Exchange fail with ErrEchoMismatch. The probe firmware gives no guarantee
// that replies echo the command, so no verifier is installed by default.
type EchoVerifier func(command string, lines []RawLine) error

// PrefixEchoVerifier accepts a reply whose first line starts with the
// command text.
func PrefixEchoVerifier(command string, lines []RawLine) error {
	if len(lines) == 0 || !bytes.HasPrefix(lines[0].Data, []byte(command)) {
		return fmt.Errorf("expected echo of %q", command)
	}
	return nil
}

// ChannelConfig holds command channel timing.
type ChannelConfig struct {
	LineTimeout   time.Duration
	QuietInterval time.Duration
	Verify        EchoVerifier
	Logger        logrus.FieldLogger
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	if c.LineTimeout <= 0 {
		c.LineTimeout = DefaultLineTimeout
	}
	if c.QuietInterval == 0 {
		c.QuietInterval = DefaultQuietInterval
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// Channel frames commands and replies over a Stream. It is not safe for
// concurrent use; Session serializes access.
type Channel struct {
	stream      Stream
	cfg         ChannelConfig
	pending     []byte
	readBuf     []byte
	lastWrite   time.Time
	lastCommand string
	now         func() time.Time
}

// NewChannel wraps stream. Zero timings fall back to the defaults; a
// negative QuietInterval disables the write spacing.
func NewChannel(stream Stream, cfg ChannelConfig) *Channel {
	return &Channel{
		stream:  stream,
		cfg:     cfg.withDefaults(),
		readBuf: make([]byte, 64),
		now:     time.Now,
	}
}

// Send writes cmd followed by CRLF, first waiting out the quiet interval
// if the previous write was too recent.
func (c *Channel) Send(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.lastWrite.IsZero() {
		if wait := c.cfg.QuietInterval - c.now().Sub(c.lastWrite); wait > 0 {
			if err := sleepContext(ctx, wait); err != nil {
				return err
			}
		}
	}

	frame := []byte(cmd + LineTerminator)
	n, err := c.stream.Write(frame)
	c.lastWrite = c.now()
	if err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	if n < len(frame) {
		return fmt.Errorf("write %q: %w", cmd, io.ErrShortWrite)
	}
	c.lastCommand = cmd
	c.cfg.Logger.WithField("cmd", printable(cmd)).Debug("sent")
	return nil
}

// ReadLines reads n lines. A line that does not complete within the line
// timeout is returned partial (or empty) with Terminated unset; the call
// never blocks longer than n timeouts. Errors are only returned for context
// cancellation and stream failures.
func (c *Channel) ReadLines(ctx context.Context, n int) ([]RawLine, error) {
	lines := make([]RawLine, 0, n)
	for i := 0; i < n; i++ {
		line, err := c.readLine(ctx)
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Listen reads n lines that were not requested by any command.
func (c *Channel) Listen(ctx context.Context, n int) ([]RawLine, error) {
	c.lastCommand = ""
	return c.ReadLines(ctx, n)
}

// Exchange sends cmd and reads n reply lines.
func (c *Channel) Exchange(ctx context.Context, cmd string, n int) ([]RawLine, error) {
	return c.ExchangeWait(ctx, cmd, n, 0)
}

// ExchangeWait sends cmd, waits for wait, then reads n reply lines.
func (c *Channel) ExchangeWait(ctx context.Context, cmd string, n int, wait time.Duration) ([]RawLine, error) {
	if err := c.Send(ctx, cmd); err != nil {
		return nil, err
	}
	if wait > 0 {
		if err := sleepContext(ctx, wait); err != nil {
			return nil, err
		}
	}
	lines, err := c.ReadLines(ctx, n)
	if err != nil {
		return lines, err
	}
	if c.cfg.Verify != nil {
		if verr := c.cfg.Verify(cmd, lines); verr != nil {
			return lines, fmt.Errorf("%w: %v", ErrEchoMismatch, verr)
		}
	}
	return lines, nil
}

func (c *Channel) readLine(ctx context.Context) (RawLine, error) {
	deadline := c.now().Add(c.cfg.LineTimeout)
	for {
		if idx := bytes.IndexByte(c.pending, LineDelimiter); idx >= 0 {
			data := bytes.TrimSuffix(c.pending[:idx], []byte{'\r'})
			line := RawLine{
				Command:    c.lastCommand,
				Data:       append([]byte(nil), data...),
				Terminated: true,
			}
			c.pending = append(c.pending[:0], c.pending[idx+1:]...)
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return RawLine{}, err
		}

		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			line := RawLine{
				Command: c.lastCommand,
				Data:    append([]byte(nil), c.pending...),
			}
			c.pending = c.pending[:0]
			c.cfg.Logger.WithFields(logrus.Fields{
				"cmd":     printable(c.lastCommand),
				"partial": len(line.Data),
			}).Debug("line timeout")
			return line, nil
		}

		if err := c.stream.SetReadTimeout(remaining); err != nil {
			return RawLine{}, fmt.Errorf("set read timeout: %w", err)
		}
		n, err := c.stream.Read(c.readBuf)
		if n > 0 {
			c.pending = append(c.pending, c.readBuf[:n]...)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return RawLine{}, ctxErr
			}
			return RawLine{}, fmt.Errorf("read: %w", err)
		}
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// printable escapes control characters for logs.
func printable(s string) string {
	return fmt.Sprintf("%q", s)
}
