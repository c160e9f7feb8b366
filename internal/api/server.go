// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api serves the latest decoded scan record and session status over
// HTTP while a scan runs.
package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/mtpctl/pkg/mtp"
)

// Server holds the most recent scan results for HTTP clients.
type Server struct {
	mu     sync.RWMutex
	latest *mtp.Record
	issues []mtp.QualityIssue

	stats *mtp.Statistics
	state func() mtp.SessionState
	log   logrus.FieldLogger
}

// New creates a server reporting stats and the session state returned by
// state.
func New(stats *mtp.Statistics, state func() mtp.SessionState, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{stats: stats, state: state, log: logger}
}

// Publish replaces the latest record.
func (s *Server) Publish(rec mtp.Record, issues []mtp.QualityIssue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &rec
	s.issues = issues
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(s.log))
	router.GET("/status", s.getStatus)
	router.GET("/record/latest", s.getLatestRecord)
	router.GET("/record/latest/:name", s.getVariable)

	return router
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infof("http server listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type statusResponse struct {
	State            string  `json:"state"`
	Uptime           string  `json:"uptime"`
	Positions        uint64  `json:"positions"`
	AbortedScans     uint64  `json:"aborted_scans"`
	Recoveries       uint64  `json:"recoveries"`
	PowerCycleEvents uint64  `json:"power_cycle_events"`
	NaNValues        uint64  `json:"nan_values"`
	QualityIssues    uint64  `json:"quality_issues"`
	PositionRate     float64 `json:"positions_per_minute"`
}

// variableResponse carries NaN as a null value; encoding/json rejects NaN.
type variableResponse struct {
	Name  string   `json:"name"`
	Raw   int      `json:"raw"`
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

type recordResponse struct {
	Time      time.Time          `json:"time"`
	Status    *string            `json:"status"`
	Variables []variableResponse `json:"variables"`
	Issues    []string           `json:"issues"`
}

func toVariableResponse(v mtp.Variable) variableResponse {
	out := variableResponse{Name: v.Name, Raw: v.Raw, Unit: v.Unit}
	if !math.IsNaN(v.Value) && !math.IsInf(v.Value, 0) {
		value := v.Value
		out.Value = &value
	}
	return out
}

func (s *Server) getStatus(c *gin.Context) {
	counters := s.stats.Snapshot()
	state := counters.LastState
	if s.state != nil {
		state = s.state()
	}
	c.IndentedJSON(http.StatusOK, statusResponse{
		State:            state.String(),
		Uptime:           time.Since(counters.StartTime).Round(time.Second).String(),
		Positions:        counters.Positions,
		AbortedScans:     counters.AbortedScans,
		Recoveries:       counters.Recoveries,
		PowerCycleEvents: counters.PowerCycleEvents,
		NaNValues:        counters.NaNValues,
		QualityIssues:    counters.QualityIssues,
		PositionRate:     counters.PositionRate,
	})
}

func (s *Server) getLatestRecord(c *gin.Context) {
	s.mu.RLock()
	rec, issues := s.latest, s.issues
	s.mu.RUnlock()

	if rec == nil {
		c.IndentedJSON(http.StatusNotFound, "no record yet")
		return
	}

	resp := recordResponse{
		Time:      rec.Time,
		Variables: make([]variableResponse, 0, len(rec.Variables)),
		Issues:    make([]string, 0, len(issues)),
	}
	if rec.StatusValid {
		status := rec.Status.String()
		resp.Status = &status
	}
	for _, name := range rec.Names() {
		resp.Variables = append(resp.Variables, toVariableResponse(rec.Variables[name]))
	}
	for i := range issues {
		resp.Issues = append(resp.Issues, issues[i].Error())
	}
	c.IndentedJSON(http.StatusOK, resp)
}

func (s *Server) getVariable(c *gin.Context) {
	name := c.Param("name")

	s.mu.RLock()
	rec := s.latest
	s.mu.RUnlock()

	if rec == nil {
		c.IndentedJSON(http.StatusNotFound, "no record yet")
		return
	}
	v, ok := rec.Get(name)
	if !ok {
		c.IndentedJSON(http.StatusNotFound, "unknown variable "+name)
		return
	}
	c.IndentedJSON(http.StatusOK, toVariableResponse(v))
}
