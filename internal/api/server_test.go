package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/zuqini/CLTune/internal/device"
	"github.com/zuqini/CLTune/internal/logger"
)

const vectorAddJobJSON = `{
  "kernel": {
    "source": "builtin://vector_add",
    "entry": "vector_add",
    "global": [64],
    "local": [8],
    "parameters": [{"name": "VW", "values": [1, 2, 4]}],
    "modifiers": [{"target": "global", "op": "div", "params": ["VW"]}]
  },
  "reference": {"entry": "vector_add_reference", "global": [64], "local": [8]},
  "repeats": 1,
  "seed": 5,
  "arguments": [
    {"scalar": 64, "type": "int32"},
    {"buffer": 64, "type": "float32", "direction": "input", "init": "linear"},
    {"buffer": 64, "type": "float32", "direction": "input", "init": "random"},
    {"buffer": 64, "type": "float32", "direction": "output"}
  ]
}`

func newTestServer() (*echo.Echo, *Server) {
	log := logger.JSON(io.Discard, slog.LevelError)
	server := NewServer(NewRunStore(), device.NewCPU(), log)
	e := echo.New()
	server.Register(e)
	return e, server
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRunLifecycle(t *testing.T) {
	e, server := newTestServer()

	createRec := doJSON(t, e, http.MethodPost, "/v1/runs", vectorAddJobJSON)
	if createRec.Code != http.StatusAccepted {
		t.Fatalf("create status: got %d body=%s", createRec.Code, createRec.Body.String())
	}
	var created Run
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected run id")
	}
	if created.Kernel != "vector_add" || created.Strategy != "full" {
		t.Errorf("run metadata: kernel=%q strategy=%q", created.Kernel, created.Strategy)
	}

	server.Wait()

	getRec := doJSON(t, e, http.MethodGet, "/v1/runs/"+created.ID, "")
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: got %d", getRec.Code)
	}
	var fetched Run
	if err := json.Unmarshal(getRec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if fetched.Status != RunCompleted {
		t.Fatalf("run status: got %q (error %q)", fetched.Status, fetched.Error)
	}
	if fetched.Progress != 1 {
		t.Errorf("progress: got %v, want 1", fetched.Progress)
	}
	if fetched.BestTimeMS <= 0 {
		t.Errorf("best time: got %v, want > 0", fetched.BestTimeMS)
	}

	resultsRec := doJSON(t, e, http.MethodGet, "/v1/runs/"+created.ID+"/results", "")
	if resultsRec.Code != http.StatusOK {
		t.Fatalf("results status: got %d", resultsRec.Code)
	}
	var results ResultsResponse
	if err := json.Unmarshal(resultsRec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results.Trials) != 3 {
		t.Errorf("trials: got %d, want 3", len(results.Trials))
	}
	if len(results.Best) == 0 {
		t.Error("expected best parameters")
	}

	deleteRec := doJSON(t, e, http.MethodDelete, "/v1/runs/"+created.ID, "")
	if deleteRec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", deleteRec.Code)
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/runs/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", rec.Code)
	}
}

func TestCreateRunRejectsInvalidJob(t *testing.T) {
	e, _ := newTestServer()

	rec := doJSON(t, e, http.MethodPost, "/v1/runs", `{"kernel": {"entry": ""}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "kernel.entry") {
		t.Errorf("error should name the missing field: %s", rec.Body.String())
	}
}

func TestFailedRunReportsError(t *testing.T) {
	e, server := newTestServer()

	// VW {3,5} with a multiple-of-2 constraint leaves an empty valid set.
	job := `{
	  "kernel": {
	    "source": "builtin://vector_add",
	    "entry": "vector_add",
	    "global": [8],
	    "parameters": [
	      {"name": "VW", "values": [3, 5]},
	      {"name": "W", "values": [2]}
	    ],
	    "constraints": [{"target": "VW", "operands": ["W"], "operators": []}]
	  }
	}`
	rec := doJSON(t, e, http.MethodPost, "/v1/runs", job)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var created Run
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	server.Wait()

	run, ok := server.store.Get(created.ID)
	if !ok {
		t.Fatal("run disappeared")
	}
	if run.Status != RunFailed {
		t.Fatalf("status: got %q", run.Status)
	}
	if !strings.Contains(run.Error, "no configuration") {
		t.Errorf("error: got %q", run.Error)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	e, server := newTestServer()

	for i := 0; i < 2; i++ {
		if rec := doJSON(t, e, http.MethodPost, "/v1/runs", vectorAddJobJSON); rec.Code != http.StatusAccepted {
			t.Fatalf("create %d: got %d", i, rec.Code)
		}
	}
	server.Wait()

	rec := doJSON(t, e, http.MethodGet, "/v1/runs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status: got %d", rec.Code)
	}
	var list RunList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Runs) != 2 {
		t.Fatalf("runs: got %d, want 2", len(list.Runs))
	}
	if list.Runs[0].CreatedAt.Before(list.Runs[1].CreatedAt) {
		t.Error("runs should list newest first")
	}
}

func TestDeleteActiveRunConflicts(t *testing.T) {
	_, server := newTestServer()

	run := server.store.Create("vector_add", "full", server.clock())
	server.store.setRunning(run.ID, func() {}, func() float64 { return 0.5 })

	if _, err := server.store.Delete(run.ID); err == nil {
		t.Fatal("expected ErrRunActive")
	}

	snapshot, _ := server.store.Get(run.ID)
	if snapshot.Progress != 0.5 {
		t.Errorf("progress: got %v, want 0.5", snapshot.Progress)
	}
}

func TestDeviceInfoAndHealth(t *testing.T) {
	e, _ := newTestServer()

	rec := doJSON(t, e, http.MethodGet, "/v1/device", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("device status: got %d", rec.Code)
	}
	var info device.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.MaxComputeUnits <= 0 {
		t.Errorf("compute units: got %d", info.MaxComputeUnits)
	}

	if rec := doJSON(t, e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("health status: got %d", rec.Code)
	}
}
