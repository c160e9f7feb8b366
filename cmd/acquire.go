// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/mtpctl/internal/config"
	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

// acquisition runs the scan loop over one probe session.
type acquisition struct {
	session *mtp.Session
	decoder *mtp.Decoder
	table   mtp.CalibrationTable
	stats   *mtp.Statistics

	pollStatus bool
	interval   time.Duration
	count      int // positions to scan, 0 for no limit

	// Optional hooks, called from the scan goroutine
	onRecord func(raw mtp.RawScanPosition, rec mtp.Record, issues []mtp.QualityIssue)
	onEvent  func(message string, isError bool)
}

// liveGroups are the raw record groups a live scan fills.
var liveGroups = []mtp.Group{mtp.GroupAux}

// newAcquisition builds a session over conn. onStateChange, if set, is
// called after statistics are updated for each transition. Only variables
// of liveGroups are decoded and validated.
func newAcquisition(conn Connection, c *config.Config, onStateChange func(from, to mtp.SessionState)) *acquisition {
	stats := mtp.NewStatistics()
	sc := c.SessionConfig(logrus.StandardLogger())
	sc.OnStateChange = func(from, to mtp.SessionState) {
		stats.RecordTransition(from, to)
		logrus.WithFields(logrus.Fields{
			"from": from.String(),
			"to":   to.String(),
		}).Info("probe session state")
		if onStateChange != nil {
			onStateChange(from, to)
		}
	}

	table := c.Calibration.Subset(liveGroups...)
	return &acquisition{
		session:    mtp.NewSession(conn, sc),
		decoder:    c.DecoderFor(table),
		table:      table,
		stats:      stats,
		pollStatus: true,
	}
}

func (a *acquisition) event(message string, isError bool) {
	if a.onEvent != nil {
		a.onEvent(message, isError)
	}
}

// run scans positions until ctx is done or count is reached. Aborted scans
// are counted and the session is re-established; only ctx ends the loop
// early, and that is not an error.
func (a *acquisition) run(ctx context.Context) error {
	scanned := 0
	for a.count == 0 || scanned < a.count {
		if a.session.State() != mtp.StateResponding {
			if err := a.session.Maintain(ctx); err != nil {
				return ignoreCancel(err)
			}
		}

		raw, err := a.scanOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, mtp.ErrScanAborted) {
				a.stats.RecordAbort()
				a.event(fmt.Sprintf("scan aborted: %v", err), true)
				continue
			}
			return err
		}

		rec := a.decoder.Decode(raw)
		issues := mtp.ValidateRecord(rec, a.table)
		a.stats.RecordPosition(rec, issues)
		for i := range issues {
			a.event(issues[i].Error(), issues[i].Type != mtp.AnomalyMissing)
		}
		if a.onRecord != nil {
			a.onRecord(raw, rec, issues)
		}
		scanned++

		if a.interval > 0 {
			t := time.NewTimer(a.interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
	}
	return nil
}

// scanOnce measures one position and folds it into a raw record: the
// noise-diode counts fill the E line, the status word the A line. A failed
// status poll leaves the status invalid; the next pass recovers the link.
func (a *acquisition) scanOnce(ctx context.Context) (mtp.RawScanPosition, error) {
	pos, err := a.session.ScanPosition(ctx)
	if err != nil {
		return mtp.RawScanPosition{}, err
	}
	raw := positionRecord(time.Now(), pos)

	if a.pollStatus {
		status, ok, err := a.session.PollStatus(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return mtp.RawScanPosition{}, err
			}
			a.event(fmt.Sprintf("status poll failed: %v", err), true)
			return raw, nil
		}
		if ok {
			raw.Status, raw.StatusValid = status, true
			raw.Attitude += fmt.Sprintf(" ST:%02d", uint8(status))
		}
	}
	return raw, nil
}

// positionRecord converts a scanned position into a raw record.
func positionRecord(at time.Time, pos mtp.Position) mtp.RawScanPosition {
	raw := mtp.NewRawScanPosition()
	raw.Attitude = at.UTC().Format("20060102T150405")
	raw.Aux = pos.Counts()
	return raw
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
