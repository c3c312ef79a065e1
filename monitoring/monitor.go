// Package monitoring turns model runs into a web service that viewers fetch
// time steps from.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/gnomeview/datarecording"
	"github.com/sarchlab/gnomeview/runner"
	"github.com/sarchlab/gnomeview/timestep"
)

// Monitor serves model runs over HTTP.
type Monitor struct {
	scenario    runner.Scenario
	recorder    datarecording.DataRecorder
	reader      datarecording.DataReader
	portNumber  int
	openBrowser bool

	runsLock     sync.Mutex
	runs         map[string]*runner.Run
	progressBars map[string]*ProgressBar
}

// NewMonitor creates a new Monitor that starts runs of the default
// scenario.
func NewMonitor() *Monitor {
	return &Monitor{
		scenario:     runner.DefaultScenario(),
		runs:         make(map[string]*runner.Run),
		progressBars: make(map[string]*ProgressBar),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithScenario sets the scenario that new runs follow. An invalid scenario
// is ignored and the previous one is kept.
func (m *Monitor) WithScenario(s runner.Scenario) *Monitor {
	if err := s.Validate(); err != nil {
		fmt.Fprintf(os.Stderr,
			"Scenario rejected by the monitoring server: %v. "+
				"Keeping the current scenario.\n", err)

		return m
	}

	m.scenario = s

	return m
}

// WithDataRecording sets where produced steps are recorded and read back
// from.
func (m *Monitor) WithDataRecording(
	recorder datarecording.DataRecorder,
	reader datarecording.DataReader,
) *Monitor {
	m.recorder = recorder
	m.reader = reader

	return m
}

// WithBrowser makes StartServer open the service in a web browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// Router returns the routes of the service.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/model", m.createRun).Methods(http.MethodPost)
	r.HandleFunc("/model/{id}", m.getRun).Methods(http.MethodGet)
	r.HandleFunc("/model/{id}", m.updateRun).Methods(http.MethodPut)
	r.HandleFunc("/model/{id}", m.deleteRun).Methods(http.MethodDelete)
	r.HandleFunc("/model/{id}/runner", m.startRun).Methods(http.MethodPost)
	r.HandleFunc("/model/{id}/runner", m.nextStep).Methods(http.MethodGet)
	r.HandleFunc("/model/{id}/steps/{step:[0-9]+}", m.getStep).
		Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server and serves until ctx is
// done.
func (m *Monitor) StartServer(ctx context.Context) error {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return errors.Wrap(err, "listening")
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Serving model runs at %s\n", url)

	if m.openBrowser {
		if err := browser.OpenURL(url + "/api/progress"); err != nil {
			log.Warn().Err(err).Msg("cannot open browser")
		}
	}

	server := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutting down server")
		}
	}()

	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

type createRunRsp struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type runnerRsp struct {
	ExpectedTimeSteps []timestep.ExpectedTimeStep `json:"expected_time_steps,omitempty"`
	TimeStep          timestep.TimeStep           `json:"time_step"`
}

type scenarioReq struct {
	StartTime *time.Time `json:"start_time"`
	TimeStep  string     `json:"time_step"`
	Duration  string     `json:"duration"`
}

// apply overrides the fields of s that the request sets.
func (req scenarioReq) apply(s runner.Scenario) (runner.Scenario, error) {
	if req.StartTime != nil {
		s.StartTime = req.StartTime.UTC()
	}

	if req.TimeStep != "" {
		d, err := time.ParseDuration(req.TimeStep)
		if err != nil {
			return s, errors.Wrap(err, "time_step")
		}

		s.TimeStep = d
	}

	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			return s, errors.Wrap(err, "duration")
		}

		s.Duration = d
	}

	return s, nil
}

type errorRsp struct {
	Error string `json:"error"`
}

func (m *Monitor) createRun(w http.ResponseWriter, _ *http.Request) {
	var sink runner.StepSink
	if m.recorder != nil {
		sink = m.recorder
	}

	run := runner.NewRun(m.scenario, sink)

	m.runsLock.Lock()
	m.runs[run.ID] = run
	m.progressBars[run.ID] = &ProgressBar{
		ID:        run.ID,
		Name:      "run " + run.ID,
		StartTime: time.Now(),
		Total:     uint64(run.NumTimeSteps()),
	}
	m.runsLock.Unlock()

	log.Info().Str("run", run.ID).Int("steps", run.NumTimeSteps()).
		Msg("run created")

	writeJSON(w, http.StatusCreated, createRunRsp{
		ID:      run.ID,
		Message: "Created a new model.",
	})
}

func (m *Monitor) getRun(w http.ResponseWriter, r *http.Request) {
	run, _ := m.findRunOr404(w, r)
	if run == nil {
		return
	}

	m.dumpRun(w, run.Snapshot())
}

func (m *Monitor) dumpRun(w http.ResponseWriter, state runner.RunState) {
	w.Header().Set("Content-Type", "application/json")

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&state)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		log.Error().Err(err).Str("run", state.ID).Msg("serializing run")
	}
}

func (m *Monitor) updateRun(w http.ResponseWriter, r *http.Request) {
	run, bar := m.findRunOr404(w, r)
	if run == nil {
		return
	}

	req := scenarioReq{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decoding scenario"))
		return
	}

	s, err := req.apply(run.Snapshot().Scenario)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := run.SetScenario(s); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	bar.Reset(uint64(run.NumTimeSteps()), time.Now())

	log.Info().Str("run", run.ID).Int("steps", run.NumTimeSteps()).
		Msg("run updated")

	m.dumpRun(w, run.Snapshot())
}

func (m *Monitor) deleteRun(w http.ResponseWriter, r *http.Request) {
	run, _ := m.findRunOr404(w, r)
	if run == nil {
		return
	}

	m.runsLock.Lock()
	delete(m.runs, run.ID)
	delete(m.progressBars, run.ID)
	m.runsLock.Unlock()

	log.Info().Str("run", run.ID).Msg("run deleted")

	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) startRun(w http.ResponseWriter, r *http.Request) {
	run, bar := m.findRunOr404(w, r)
	if run == nil {
		return
	}

	step, err := run.Start()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	bar.Restart(time.Now())
	bar.SetFinished(uint64(run.Progress()))

	writeJSON(w, http.StatusOK, runnerRsp{
		ExpectedTimeSteps: run.ExpectedTimeSteps(),
		TimeStep:          step,
	})
}

func (m *Monitor) nextStep(w http.ResponseWriter, r *http.Request) {
	run, bar := m.findRunOr404(w, r)
	if run == nil {
		return
	}

	step, err := run.Next()
	if errors.Is(err, runner.ErrRunFinished) {
		writeError(w, http.StatusGone, err)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	rsp := runnerRsp{TimeStep: step}

	// A run that was never started, or whose scenario was replaced, begins
	// again at step 0. Viewers have no expected steps for it yet.
	if step.ID == 0 {
		bar.Restart(time.Now())
		rsp.ExpectedTimeSteps = run.ExpectedTimeSteps()
	}

	bar.SetFinished(uint64(run.Progress()))

	writeJSON(w, http.StatusOK, rsp)
}

func (m *Monitor) getStep(w http.ResponseWriter, r *http.Request) {
	run, _ := m.findRunOr404(w, r)
	if run == nil {
		return
	}

	if m.reader == nil || m.recorder == nil {
		writeError(w, http.StatusNotFound,
			errors.New("step recording is disabled"))
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["step"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := m.recorder.Flush(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	entry, err := m.reader.Step(r.Context(), run.ID, id)
	if errors.Is(err, datarecording.ErrStepNotRecorded) {
		writeError(w, http.StatusNotFound, err)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, entry.TimeStep())
}

func (m *Monitor) findRunOr404(
	w http.ResponseWriter,
	r *http.Request,
) (*runner.Run, *ProgressBar) {
	id := mux.Vars(r)["id"]

	m.runsLock.Lock()
	run := m.runs[id]
	bar := m.progressBars[id]
	m.runsLock.Unlock()

	if run == nil {
		writeError(w, http.StatusNotFound,
			errors.Errorf("model %s not found", id))
	}

	return run, bar
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.runsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.runsLock.Unlock()

	writeJSON(w, http.StatusOK, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()

	process, err := process.NewProcess(int32(pid))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	cpuPercent, err := process.CPUPercent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	memorySize, err := process.MemoryInfo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, prof)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("encoding response")
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		log.Warn().Err(err).Msg("writing response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorRsp{Error: err.Error()})
}
