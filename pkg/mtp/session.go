// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Session errors
var (
	// ErrNotResponding is returned when a command is requested while the
	// session is not in StateResponding.
	ErrNotResponding = errors.New("probe is not responding")

	// ErrScanAborted is returned when a communication failure interrupted a
	// command sequence. The session is left in StateRecovering.
	ErrScanAborted = errors.New("scan aborted")
)

// SessionState is the link state of a probe session.
type SessionState int

// Session states
const (
	StateUnknown SessionState = iota
	StateResponding
	StateRecovering
	StatePowerCycleRequired
)

func (s SessionState) String() string {
	switch s {
	case StateUnknown:
		return "UNKNOWN"
	case StateResponding:
		return "RESPONDING"
	case StateRecovering:
		return "RECOVERING"
	case StatePowerCycleRequired:
		return "POWER_CYCLE_REQUIRED"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// SessionConfig configures a probe session.
type SessionConfig struct {
	Channel ChannelConfig
	Scan    ScanConfig

	// BootBanner is the firmware identification substring.
	BootBanner string
	// AbortMarker is the substring echoed after the abort sequence.
	AbortMarker string
	// Backoff is the wait between establish attempts in Maintain.
	Backoff time.Duration

	// OnStateChange, if set, is called on every state transition.
	OnStateChange func(from, to SessionState)

	Logger logrus.FieldLogger
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.BootBanner == "" {
		c.BootBanner = DefaultBootBanner
	}
	if c.AbortMarker == "" {
		c.AbortMarker = DefaultAbortMarker
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultRecoveryBackoff
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Channel.Logger == nil {
		c.Channel.Logger = c.Logger
	}
	return c
}

// Session owns the probe link. It establishes and recovers responsiveness
// and is the only path to the scan cycle, so at most one command is ever in
// flight.
type Session struct {
	cmdMu sync.Mutex // held for every command sequence

	stateMu sync.RWMutex
	state   SessionState

	ch   *Channel
	scan *ScanCycle
	cfg  SessionConfig
	log  logrus.FieldLogger
}

// NewSession creates a session over stream in StateUnknown.
func NewSession(stream Stream, cfg SessionConfig) *Session {
	cfg = cfg.withDefaults()
	ch := NewChannel(stream, cfg.Channel)
	return &Session{
		state: StateUnknown,
		ch:    ch,
		scan:  NewScanCycle(ch, cfg.Scan),
		cfg:   cfg,
		log:   cfg.Logger,
	}
}

// State returns the current link state.
func (s *Session) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(to SessionState) {
	s.stateMu.Lock()
	from := s.state
	s.state = to
	s.stateMu.Unlock()

	if from == to {
		return
	}
	s.log.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   to.String(),
	}).Debug("session state change")
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(from, to)
	}
}

// Reset records that the operator power-cycled the probe and returns the
// session to StateUnknown.
func (s *Session) Reset() {
	s.setState(StateUnknown)
}

// Establish makes one pass through link detection: unsolicited boot banner,
// version query, then abort sequence. It ends in StateResponding or
// StatePowerCycleRequired and never loops; retrying is the caller's job.
// The only error returned is context cancellation.
//
// A session already in StateResponding is left alone and nothing is sent.
// A session in StatePowerCycleRequired stays there until Reset.
func (s *Session) Establish(ctx context.Context) (SessionState, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	switch s.State() {
	case StateResponding:
		return StateResponding, nil
	case StatePowerCycleRequired:
		return StatePowerCycleRequired, nil
	}

	// Stage 1: the probe may have just booted and printed its banner.
	lines, err := s.ch.Listen(ctx, 1)
	if err := s.checkCtx(ctx, err, "listen"); err != nil {
		return s.State(), err
	}
	if anyContains(lines, s.cfg.BootBanner) {
		s.log.Info("probe boot banner seen")
		s.setState(StateResponding)
		return StateResponding, nil
	}

	// Stage 2: ask for the version string.
	lines, err = s.ch.Exchange(ctx, CmdVersion, linesPerProbe)
	if err := s.checkCtx(ctx, err, "version query"); err != nil {
		return s.State(), err
	}
	if anyContains(lines, s.cfg.BootBanner) {
		s.setState(StateResponding)
		return StateResponding, nil
	}

	// Stage 3: a move command may be stuck; interrupt it.
	s.setState(StateRecovering)
	lines, err = s.ch.Exchange(ctx, CmdAbort, linesPerProbe)
	if err := s.checkCtx(ctx, err, "abort"); err != nil {
		return s.State(), err
	}
	if anyContains(lines, s.cfg.AbortMarker) || anyContains(lines, s.cfg.BootBanner) {
		s.log.Warn("probe recovered after abort sequence")
		s.setState(StateResponding)
		return StateResponding, nil
	}

	s.log.Error("probe not responding to banner, version query or abort; power cycle the probe")
	s.setState(StatePowerCycleRequired)
	return StatePowerCycleRequired, nil
}

// Maintain calls Establish until the probe responds; on a responding
// session it returns at once. Each time the probe needs a power cycle it
// waits the backoff and starts over from StateUnknown. There is no retry
// limit; it returns only when responding or when ctx is done.
func (s *Session) Maintain(ctx context.Context) error {
	for {
		state, err := s.Establish(ctx)
		if err != nil {
			return err
		}
		if state == StateResponding {
			return nil
		}
		s.log.WithField("backoff", s.cfg.Backoff).Info("waiting for probe power cycle")
		if err := sleepContext(ctx, s.cfg.Backoff); err != nil {
			return err
		}
		s.Reset()
	}
}

// ScanPosition runs the full noise off/on scan at the current mirror
// position. A communication failure moves the session to StateRecovering
// and returns ErrScanAborted.
func (s *Session) ScanPosition(ctx context.Context) (Position, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	if s.State() != StateResponding {
		return Position{}, ErrNotResponding
	}
	p, err := s.scan.ScanPosition(ctx)
	if err != nil {
		return Position{}, s.abort(ctx, err)
	}
	return p, nil
}

// PollStatus sends a version/status query and extracts the status word.
// ok is false when the reply carried no status field.
func (s *Session) PollStatus(ctx context.Context) (status StatusWord, ok bool, err error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	if s.State() != StateResponding {
		return 0, false, ErrNotResponding
	}
	lines, err := s.ch.Exchange(ctx, CmdVersion, linesPerProbe)
	if err != nil {
		return 0, false, s.abort(ctx, err)
	}
	for _, l := range lines {
		if st, found := ParseStatusToken(l.Text()); found {
			return st, true, nil
		}
	}
	return 0, false, nil
}

func (s *Session) abort(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.log.WithError(err).Warn("command sequence failed, link needs recovery")
	s.setState(StateRecovering)
	return fmt.Errorf("%w: %v", ErrScanAborted, err)
}

// checkCtx returns ctx's error if it is done. Other failures are logged and
// swallowed; the detection stage simply does not match.
func (s *Session) checkCtx(ctx context.Context, err error, stage string) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.log.WithError(err).WithField("stage", stage).Debug("link detection stage failed")
	return nil
}

func anyContains(lines []RawLine, marker string) bool {
	for _, l := range lines {
		if l.Contains(marker) {
			return true
		}
	}
	return false
}
