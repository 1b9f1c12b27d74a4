// Package api exposes the tuner over HTTP. Jobs are submitted as documents
// in the same schema as the YAML job file; runs execute in the background and
// are polled for progress and results.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/zuqini/CLTune/internal/config"
	"github.com/zuqini/CLTune/internal/device"
	"github.com/zuqini/CLTune/internal/harness"
	"github.com/zuqini/CLTune/internal/logger"
)

// ErrRunActive is returned when deleting a run that has not finished.
var ErrRunActive = errors.New("run is still active")

// Server handles the tuning API. Runs execute one at a time per Server on a
// background goroutine; the device is shared, so concurrent timing would
// distort measurements.
type Server struct {
	store *RunStore
	dev   device.Device
	log   logger.Logger
	clock func() time.Time

	execMu sync.Mutex
	wg     sync.WaitGroup
}

// NewServer creates a Server tuning on the given device.
func NewServer(store *RunStore, dev device.Device, log logger.Logger) *Server {
	if store == nil {
		store = NewRunStore()
	}
	return &Server{
		store: store,
		dev:   dev,
		log:   log,
		clock: time.Now,
	}
}

// Register mounts the API routes.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/runs", s.handleCreateRun)
	e.GET("/v1/runs", s.handleListRuns)
	e.GET("/v1/runs/:id", s.handleGetRun)
	e.GET("/v1/runs/:id/results", s.handleRunResults)
	e.POST("/v1/runs/:id/cancel", s.handleCancelRun)
	e.DELETE("/v1/runs/:id", s.handleDeleteRun)
	e.GET("/v1/device", s.handleDeviceInfo)
	e.GET("/healthz", s.handleHealth)
}

// Wait blocks until every launched run has finished. Used on shutdown and in
// tests.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleCreateRun(c *echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	// The request body is a job document in the YAML job-file schema; YAML
	// parses JSON bodies too.
	job, err := config.Parse(body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	run := s.store.Create(job.Kernel.Entry, strategyName(job), s.clock())
	s.launch(run.ID, job)
	s.log.Info("run created", "id", run.ID, "job", job.Summary())
	return c.JSON(http.StatusAccepted, run)
}

func (s *Server) handleListRuns(c *echo.Context) error {
	return c.JSON(http.StatusOK, RunList{Runs: s.store.List()})
}

func (s *Server) handleGetRun(c *echo.Context) error {
	run, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "run not found")
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleRunResults(c *echo.Context) error {
	run, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "run not found")
	}
	if !run.Status.Terminal() {
		return writeError(c, http.StatusConflict, "run_active", "run has not finished")
	}
	return c.JSON(http.StatusOK, ResultsResponse{
		ID:         run.ID,
		Status:     run.Status,
		Best:       run.Best,
		BestTimeMS: run.BestTimeMS,
		Trials:     run.Trials,
	})
}

func (s *Server) handleCancelRun(c *echo.Context) error {
	run, ok := s.store.Cancel(c.Param("id"))
	if !ok {
		return writeNotFound(c, "run not found")
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleDeleteRun(c *echo.Context) error {
	id := c.Param("id")
	deleted, err := s.store.Delete(id)
	if errors.Is(err, ErrRunActive) {
		return writeError(c, http.StatusConflict, "run_active", "cancel the run before deleting it")
	}
	if !deleted {
		return writeNotFound(c, "run not found")
	}
	return c.JSON(http.StatusOK, DeleteRunResponse{ID: id, Deleted: true})
}

func (s *Server) handleDeviceInfo(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.dev.Info())
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// launch starts the tuning run in the background. The store's cancel hook
// aborts it via context.
func (s *Server) launch(id string, job *config.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		s.execMu.Lock()
		defer s.execMu.Unlock()

		tn, err := job.Build(s.dev, s.log.With("run", id))
		if err != nil {
			s.store.finish(id, RunFailed, err.Error(), nil, 0, nil, s.clock())
			return
		}
		s.store.setRunning(id, cancel, tn.Progress)

		if err := tn.Tune(ctx); err != nil {
			status := RunFailed
			if errors.Is(err, context.Canceled) {
				status = RunCancelled
			}
			s.store.finish(id, status, err.Error(), nil, 0, nil, s.clock())
			s.log.Warn("run finished with error", "id", id, "error", err)
			return
		}

		var (
			trials []Trial
			best   map[string]int
			bestMS float64
		)
		for _, rep := range tn.Reports() {
			for _, res := range rep.Table() {
				trial := Trial{
					Parameters: res.Configuration,
					Status:     res.Status.String(),
				}
				if res.Status == harness.StatusSuccess {
					trial.TimeMS = float64(res.Time) / float64(time.Millisecond)
				}
				trials = append(trials, trial)
			}
			if b, ok := rep.Best(); ok {
				if ms := rep.BestTimeMS(); bestMS == 0 || ms < bestMS {
					best = b.Configuration
					bestMS = ms
				}
			}
		}
		s.store.finish(id, RunCompleted, "", best, bestMS, trials, s.clock())
		s.log.Info("run completed", "id", id, "best_ms", bestMS)
	}()
}

func strategyName(job *config.Job) string {
	if job.Strategy.Name == "" {
		return "full"
	}
	return job.Strategy.Name
}
